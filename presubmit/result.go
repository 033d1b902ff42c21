// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmit

import (
	"encoding/json"
	"fmt"
)

// Severity is a severity of a presubmit result.
type Severity int

const (
	// Notify is an informational message. It never fails a run.
	Notify Severity = iota
	// PromptWarning asks the author to confirm before proceeding.
	PromptWarning
	// Error blocks the change.
	Error
)

func (s Severity) String() string {
	switch s {
	case Notify:
		return "notify"
	case PromptWarning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalJSON encodes severity as its name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is a diagnostic reported by a presubmit check.
type Result struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Items are usually file paths the message is about.
	Items    []string `json:"items,omitempty"`
	LongText string   `json:"long_text,omitempty"`
}

// NewError returns an error result.
func NewError(msg string, items ...string) Result {
	return Result{Severity: Error, Message: msg, Items: items}
}

// NewPromptWarning returns a warning result.
func NewPromptWarning(msg string, items ...string) Result {
	return Result{Severity: PromptWarning, Message: msg, Items: items}
}

// NewNotify returns an informational result.
func NewNotify(msg string, items ...string) Result {
	return Result{Severity: Notify, Message: msg, Items: items}
}

// WithLongText returns a copy of r with long text set.
func (r Result) WithLongText(text string) Result {
	r.LongText = text
	return r
}

// Failed reports whether results contain any error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Severity == Error {
			return true
		}
	}
	return false
}
