// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/srccheck/execute"
)

// LocalExec implements execute.Runner interface that runs commands locally.
type LocalExec struct{}

// Run runs cmd with LocalExec.
func Run(ctx context.Context, cmd *execute.Cmd) (*execute.Result, error) {
	return LocalExec{}.Run(ctx, cmd)
}

// Run runs a cmd.
func (LocalExec) Run(ctx context.Context, cmd *execute.Cmd) (*execute.Result, error) {
	args, err := commandLine(cmd)
	if err != nil {
		return nil, err
	}
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	s := time.Now()
	err = c.Run()
	var eerr *exec.ExitError
	if err != nil && !errors.As(err, &eerr) {
		return nil, fmt.Errorf("failed to run %s: %w", cmd, err)
	}
	res := &execute.Result{
		ExitCode: exitCode(err),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	log.Debugf("%s exit=%d stdout=%d stderr=%d in %s", cmd, res.ExitCode, len(res.Stdout), len(res.Stderr), time.Since(s))
	return res, nil
}

func commandLine(cmd *execute.Cmd) ([]string, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("no arguments in the command. ID: %s", cmd.ID)
	}
	if !cmd.Shell {
		return cmd.Args, nil
	}
	if len(cmd.Args) != 1 {
		return nil, fmt.Errorf("shell command must be a single string, got %q", cmd.Args)
	}
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/c", cmd.Args[0]}, nil
	}
	return []string{"sh", "-c", cmd.Args[0]}, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		return w.ExitStatus()
	}
	return 1
}
