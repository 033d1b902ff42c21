// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package version

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf, "srccheck v0.1", &debug.BuildInfo{
		GoVersion: "go1.24.2",
		Settings: []debug.BuildSetting{
			{Key: "-trimpath", Value: "true"},
			{Key: "vcs.revision", Value: "0123abc"},
			{Key: "vcs.modified", Value: "false"},
		},
	})
	want := "srccheck v0.1\ngo\tgo1.24.2\nbuild\tvcs.revision=0123abc\nbuild\tvcs.modified=false\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printVersion diff -want +got:\n%s", diff)
	}

	buf.Reset()
	printVersion(&buf, "srccheck v0.1", nil)
	if got, want := buf.String(), "srccheck v0.1\n"; got != want {
		t.Errorf("printVersion(nil)=%q; want %q", got, want)
	}
}
