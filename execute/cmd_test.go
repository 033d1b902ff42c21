// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"context"
	"errors"
	"testing"
)

type staticRunner struct {
	res *Result
}

func (r staticRunner) Run(context.Context, *Cmd) (*Result, error) {
	return r.res, nil
}

func TestResultOutput(t *testing.T) {
	for _, tc := range []struct {
		name string
		res  *Result
		want string
	}{
		{
			name: "stdout-only",
			res:  &Result{Stdout: []byte("ok\n")},
			want: "ok",
		},
		{
			name: "both",
			res:  &Result{Stdout: []byte("out"), Stderr: []byte("err\n")},
			want: "out\nerr",
		},
		{
			name: "empty",
			res:  &Result{},
			want: "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.res.Output(); got != tc.want {
				t.Errorf("Output()=%q; want %q", got, tc.want)
			}
		})
	}
}

func TestOutput(t *testing.T) {
	ctx := context.Background()
	out, err := Output(ctx, staticRunner{res: &Result{Stdout: []byte("hello")}}, &Cmd{Args: []string{"echo"}})
	if err != nil || string(out) != "hello" {
		t.Errorf("Output(...)=%q, %v; want %q, nil", out, err, "hello")
	}

	_, err = Output(ctx, staticRunner{res: &Result{ExitCode: 2}}, &Cmd{Args: []string{"false"}})
	var eerr ExitError
	if !errors.As(err, &eerr) || eerr.ExitCode != 2 {
		t.Errorf("Output(...)=_, %v; want ExitError{2}", err)
	}
}
