// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmit

import (
	"fmt"
	"io"
	"strings"
)

var sections = []struct {
	severity Severity
	title    string
}{
	{Error, "** Presubmit ERRORS **"},
	{PromptWarning, "** Presubmit Warnings **"},
	{Notify, "** Presubmit Messages **"},
}

// Format writes results grouped by severity, errors first.
func Format(w io.Writer, results []Result) error {
	for _, sec := range sections {
		var rs []Result
		for _, r := range results {
			if r.Severity == sec.severity {
				rs = append(rs, r)
			}
		}
		if len(rs) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w, sec.title); err != nil {
			return err
		}
		for _, r := range rs {
			var sb strings.Builder
			sb.WriteString(r.Message)
			sb.WriteString("\n")
			for _, item := range r.Items {
				fmt.Fprintf(&sb, "  %s\n", item)
			}
			if r.LongText != "" {
				fmt.Fprintf(&sb, "\n%s\n", strings.TrimRight(r.LongText, "\n"))
			}
			sb.WriteString("\n")
			if _, err := io.WriteString(w, sb.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
