// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/srccheck/execute/executetest"
	"go.chromium.org/infra/build/srccheck/presubmit"
)

func TestSelect(t *testing.T) {
	suites := Suites(Tools{}, &executetest.Fake{})
	if diff := cmp.Diff([]string{"autofill", "file_manager", "policy", "webui"}, Names(suites)); diff != "" {
		t.Errorf("Names diff -want +got:\n%s", diff)
	}

	selected, err := Select(suites, []string{"webui", "policy"})
	if err != nil {
		t.Fatalf("Select(suites, [webui policy])=_, %v; want nil error", err)
	}
	var got []string
	for _, s := range selected {
		got = append(got, s.Name)
	}
	if diff := cmp.Diff([]string{"policy", "webui"}, got); diff != "" {
		t.Errorf("Select diff -want +got:\n%s", diff)
	}

	_, err = Select(suites, []string{"unknown"})
	if err == nil {
		t.Errorf("Select(suites, [unknown])=_, nil; want error")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	change := &presubmit.Change{
		Root: t.TempDir(),
		Files: []*presubmit.AffectedFile{
			{
				Path:     "ui/webui/resources/cr_elements/new.js",
				Action:   presubmit.Added,
				NewLines: []string{"export const x = 1;"},
			},
			{
				Path:     "components/autofill/core/browser/a.cc",
				Action:   presubmit.Added,
				NewLines: []string{"auto t = base::Time::Now();"},
			},
		},
	}
	runner := &executetest.Fake{}
	suites := Suites(Tools{}, runner)
	report, err := Run(ctx, change, runner, suites, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("Run(...)=_, %v; want nil error", err)
	}

	if report.RunID == "" {
		t.Errorf("report.RunID is empty")
	}
	var names []string
	for _, s := range report.Suites {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"autofill", "webui"}, names); diff != "" {
		t.Errorf("suites diff -want +got:\n%s", diff)
	}
	if !report.Failed() {
		t.Errorf("report.Failed()=false; want true")
	}
	results := report.Results()
	if len(results) != 2 {
		t.Fatalf("report.Results()=%v; want 2 results", results)
	}
	if results[0].Severity != presubmit.PromptWarning {
		t.Errorf("results[0]=%v; want autofill warning", results[0])
	}
	want := presubmit.NewError(
		"Disallowed JS file(s) found in new files. Please use TypeScript (.ts) instead.",
		"ui/webui/resources/cr_elements/new.js")
	if diff := cmp.Diff(want, results[1]); diff != "" {
		t.Errorf("results[1] diff -want +got:\n%s", diff)
	}
	if len(runner.Calls) != 0 {
		t.Errorf("runner.Calls=%q; want no external commands", runner.Cmdlines())
	}
}

func TestToolsFromCommands(t *testing.T) {
	got := ToolsFromCommands(map[string][]string{
		"python": {"vpython3"},
		"format": {"git", "cl", "format"},
	})
	want := Tools{
		Python: []string{"vpython3"},
		Format: []string{"git", "cl", "format"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToolsFromCommands diff -want +got:\n%s", diff)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	change := &presubmit.Change{
		Root: t.TempDir(),
		Files: []*presubmit.AffectedFile{
			{
				Path:     "components/autofill/core/browser/a.cc",
				Action:   presubmit.Added,
				NewLines: []string{"int x;"},
			},
		},
	}
	runner := &executetest.Fake{}
	report, err := Run(ctx, change, runner, Suites(Tools{}, runner), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run(canceled ctx)=%v, %v; want %v", report, err, context.Canceled)
	}
}
