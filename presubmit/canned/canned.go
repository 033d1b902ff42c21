// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package canned provides presubmit checks shared by several presubmits.
package canned

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/presubmit"
)

// CheckChangeHasNoTabs reports changed lines containing a tab character.
func CheckChangeHasNoTabs(in *presubmit.Input, filter func(*presubmit.AffectedFile) bool) []presubmit.Result {
	var tabs []string
	for _, f := range in.Change.AffectedSourceFiles(filter) {
		for _, line := range f.ChangedContents() {
			if strings.Contains(line.Text, "\t") {
				tabs = append(tabs, fmt.Sprintf("%s:%d", f.LocalPath(), line.Num))
			}
		}
	}
	if len(tabs) == 0 {
		return nil
	}
	return []presubmit.Result{presubmit.NewError("Found a tab character in:", tabs...)}
}

// DisallowNewJsFiles reports added .js files accepted by filter.
func DisallowNewJsFiles(in *presubmit.Input, filter func(*presubmit.AffectedFile) bool) []presubmit.Result {
	var files []string
	for _, f := range in.Change.AffectedFiles(filter) {
		if f.Action == presubmit.Added && path.Ext(f.LocalPath()) == ".js" {
			files = append(files, f.LocalPath())
		}
	}
	if len(files) == 0 {
		return nil
	}
	return []presubmit.Result{presubmit.NewError(
		"Disallowed JS file(s) found in new files. Please use TypeScript (.ts) instead.",
		files...)}
}

// RunUnitTests runs each test through interpreter (e.g. "python3"),
// reporting failing tests as errors.
// Test paths are slash-separated and relative to the repository root.
func RunUnitTests(ctx context.Context, in *presubmit.Input, interpreter []string, tests []string) ([]presubmit.Result, error) {
	var results []presubmit.Result
	for _, test := range tests {
		args := append(append([]string(nil), interpreter...), test)
		res, err := in.Runner.Run(ctx, &execute.Cmd{
			ID:   "unittest:" + test,
			Args: args,
			Dir:  in.Change.Root,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to run %s: %w", test, err)
		}
		if res.ExitCode != 0 {
			results = append(results, presubmit.NewError(
				fmt.Sprintf("%s failed (exit=%d)", test, res.ExitCode)).WithLongText(res.Output()))
		}
	}
	return results, nil
}

// RunExternal runs an external tool command with files appended to it.
// A non-zero exit yields one result of the given severity carrying the
// tool output. An empty command means the tool is not configured and
// nothing is reported.
func RunExternal(ctx context.Context, in *presubmit.Input, name string, cmd []string, files []string, severity presubmit.Severity) ([]presubmit.Result, error) {
	if len(cmd) == 0 {
		log.Infof("%s is not configured; skipped", name)
		return nil, nil
	}
	if len(files) == 0 {
		return nil, nil
	}
	args := append(append([]string(nil), cmd...), files...)
	res, err := in.Runner.Run(ctx, &execute.Cmd{
		ID:   name,
		Args: args,
		Dir:  in.Change.Root,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	if res.ExitCode == 0 {
		return nil, nil
	}
	r := presubmit.Result{
		Severity: severity,
		Message:  fmt.Sprintf("%s reported problems:", name),
		Items:    files,
		LongText: res.Output(),
	}
	return []presubmit.Result{r}, nil
}

// LocalPaths returns local paths of files.
func LocalPaths(files []*presubmit.AffectedFile) []string {
	var paths []string
	for _, f := range files {
		paths = append(paths, f.LocalPath())
	}
	return paths
}
