// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package updateidl provides update_idl subcommand to regenerate updater
// IDL COM headers and type libraries.
package updateidl

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/execute/localexec"
	"go.chromium.org/infra/build/srccheck/idl"
)

const usage = `update IDL COM headers/TLB after updating IDL template

This tool must be run from a Windows machine at the source root directory.

 $ srccheck update_idl
`

// Cmd returns the Command for the `update_idl` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "update_idl",
		ShortDesc: "update IDL COM headers/TLB",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			return &run{}
		},
	}
}

type run struct {
	subcommands.CommandRunBase
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n%s", a.GetName(), usage)
		return 2
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	err = updateAll(ctx, localexec.LocalExec{}, runtime.GOOS, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func updateAll(ctx context.Context, runner execute.Runner, goos, cwd string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	err := idl.CheckEnvironment(ctx, runner, goos, cwd)
	if err != nil {
		return err
	}
	u := &idl.Updater{Runner: runner, Root: cwd}
	return u.UpdateAll(ctx)
}
