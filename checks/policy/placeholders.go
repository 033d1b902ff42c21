// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package policy

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.chromium.org/infra/build/srccheck/presubmit"
)

// checkPlaceholders parses text as the body of a <msg> element.
// Malformed markup is an error; '$' in text outside a placeholder
// element is a warning.
func checkPlaceholders(text string) []presubmit.Result {
	d := xml.NewDecoder(strings.NewReader("<msg>" + text + "</msg>"))
	var results []presubmit.Result
	depth := 0
	closed := false
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil && closed {
			line, col := d.InputPos()
			err = fmt.Errorf("junk after document element: line %d, column %d", line, col)
		}
		if err != nil {
			return []presubmit.Result{presubmit.NewError(fmt.Sprintf(
				"Error when checking for missing placeholders: %v in:\n"+
					"!<Policy Start>!\n%s\n<Policy End>!", err, text))}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			closed = depth == 0
		case xml.CharData:
			if depth == 1 && strings.Contains(string(t), "$") {
				results = append(results, presubmit.NewPromptWarning(fmt.Sprintf(
					"Character '$' found outside of a placeholder in '%s'. "+
						"Should it be in a placeholder ?", text)))
			}
		}
	}
	return results
}
