// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs external commands for presubmit checks and tools.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// Cmd includes all the information required to run an external command.
type Cmd struct {
	// ID is used for logging.
	ID string

	// Args holds command line arguments.
	Args []string

	// Env specifies the environment of the process.
	// If nil, the command inherits the environment of the caller.
	Env []string

	// Dir is the working directory of the command.
	// Empty means the current directory.
	Dir string

	// Shell runs Args[0] through the platform shell
	// (`cmd /c` on windows, `sh -c` elsewhere).
	// Args must contain exactly one element.
	Shell bool
}

// String returns a loggable form of the command.
func (c *Cmd) String() string {
	if c.ID != "" {
		return fmt.Sprintf("%s: %q", c.ID, c.Args)
	}
	return fmt.Sprintf("%q", c.Args)
}

// Result is a result of a finished command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Output returns stdout and stderr combined, stdout first.
func (r *Result) Output() string {
	var buf bytes.Buffer
	buf.Write(r.Stdout)
	if len(r.Stdout) > 0 && len(r.Stderr) > 0 && !bytes.HasSuffix(r.Stdout, []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.Write(r.Stderr)
	return strings.TrimRight(buf.String(), "\n")
}

// Err returns ExitError if the command exited with non-zero code.
func (r *Result) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	return ExitError{ExitCode: r.ExitCode}
}

// Runner runs a command.
// Run returns an error only if the command could not run;
// a non-zero exit is reported in Result.ExitCode.
type Runner interface {
	Run(ctx context.Context, cmd *Cmd) (*Result, error)
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}

// Output runs cmd and returns its stdout.
// It returns an error wrapping ExitError if the command failed.
func Output(ctx context.Context, r Runner, cmd *Cmd) ([]byte, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return res.Stdout, fmt.Errorf("%s: %w\n%s", cmd, err, res.Stderr)
	}
	return res.Stdout, nil
}
