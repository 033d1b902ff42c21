// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestChangedContents(t *testing.T) {
	for _, tc := range []struct {
		name     string
		old, new []string
		want     []ChangedLine
	}{
		{
			name: "added",
			new:  []string{"a", "b"},
			want: []ChangedLine{{1, "a"}, {2, "b"}},
		},
		{
			name: "deleted",
			old:  []string{"a", "b"},
		},
		{
			name: "modified",
			old:  []string{"a", "b", "c"},
			new:  []string{"a", "x", "c", "d"},
			want: []ChangedLine{{2, "x"}, {4, "d"}},
		},
		{
			name: "unchanged",
			old:  []string{"a", "b"},
			new:  []string{"a", "b"},
		},
		{
			name: "removed-line",
			old:  []string{"a", "b", "c"},
			new:  []string{"a", "c"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := &AffectedFile{Path: "foo.cc", Action: Modified, OldLines: tc.old, NewLines: tc.new}
			got := f.ChangedContents()
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ChangedContents() diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines([]byte("a\r\nb\n\nc\n"))
	want := []string{"a", "b", "", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitLines diff -want +got:\n%s", diff)
	}
	if got := SplitLines(nil); len(got) != 0 {
		t.Errorf("SplitLines(nil)=%q; want empty", got)
	}
}

func TestParseTags(t *testing.T) {
	got := ParseTags(`Fix policy loading

Some description with a = sign.
BUG=123
BYPASS_POLICY_COMPATIBILITY_CHECK = urgent fix
R=owner@chromium.org
lowercase=ignored
NOT A TAG=x
`)
	want := map[string]string{
		"BUG":                               "123",
		"BYPASS_POLICY_COMPATIBILITY_CHECK": "urgent fix",
		"R":                                 "owner@chromium.org",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseTags diff -want +got:\n%s", diff)
	}
}

func TestUnder(t *testing.T) {
	for _, tc := range []struct {
		p, dir string
		want   bool
	}{
		{"components/policy/resources/PRESUBMIT.py", "components/policy/resources/PRESUBMIT.py", true},
		{"components/policy/resources/templates/messages.yaml", "components/policy/resources/templates", true},
		{"components/policy/resources/templates2/x", "components/policy/resources/templates", false},
		{"components/policy", "components/policy/resources", false},
	} {
		if got := Under(tc.p, tc.dir); got != tc.want {
			t.Errorf("Under(%q, %q)=%t; want %t", tc.p, tc.dir, got, tc.want)
		}
	}
}

func TestAffectedFiles(t *testing.T) {
	c := &Change{
		Files: []*AffectedFile{
			{Path: "a.cc", Action: Added},
			{Path: "b.cc", Action: Deleted},
			{Path: "third_party/c.cc", Action: Modified},
			{Path: "d.txt", Action: Modified},
		},
	}
	var got []string
	for _, f := range c.AffectedSourceFiles(FilterSourceFile) {
		got = append(got, f.Path)
	}
	if diff := cmp.Diff([]string{"a.cc"}, got); diff != "" {
		t.Errorf("AffectedSourceFiles diff -want +got:\n%s", diff)
	}
	if n := len(c.AffectedTestableFiles()); n != 3 {
		t.Errorf("len(AffectedTestableFiles())=%d; want 3", n)
	}
	if !c.Touches("third_party") {
		t.Errorf("Touches(third_party)=false; want true")
	}
	if c.Touches("components") {
		t.Errorf("Touches(components)=true; want false")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	in := &Input{Change: &Change{}}
	results := Run(ctx, in, []Check{
		{
			Name: "first",
			Run: func(context.Context, *Input) ([]Result, error) {
				return []Result{NewPromptWarning("warn")}, nil
			},
		},
		{
			Name: "broken",
			Run: func(context.Context, *Input) ([]Result, error) {
				return []Result{NewPromptWarning("partial")}, errors.New("bad yaml")
			},
		},
		{
			Name: "last",
			Run: func(context.Context, *Input) ([]Result, error) {
				return []Result{NewError("err", "a.cc")}, nil
			},
		},
	})
	want := []Result{
		NewPromptWarning("warn"),
		NewError("broken: unable to run the check: bad yaml"),
		NewError("err", "a.cc"),
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("Run diff -want +got:\n%s", diff)
	}
	if !Failed(results) {
		t.Errorf("Failed(results)=false; want true")
	}
	if Failed(results[:1]) {
		t.Errorf("Failed(warnings)=true; want false")
	}
}

func TestFormat(t *testing.T) {
	var sb strings.Builder
	err := Format(&sb, []Result{
		NewPromptWarning("check this", "a.cc"),
		NewError("broken").WithLongText("details\n"),
	})
	if err != nil {
		t.Fatalf("Format(...)=%v; want nil", err)
	}
	want := `** Presubmit ERRORS **
broken

details

** Presubmit Warnings **
check this
  a.cc

`
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("Format diff -want +got:\n%s", diff)
	}
}
