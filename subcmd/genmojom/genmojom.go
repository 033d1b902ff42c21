// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package genmojom provides gen_mojom subcommand to generate a mojom enum
// from a feature list.
package genmojom

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/srccheck/mojomgen"
)

const usage = `generate a mojom enum from a feature list

 $ srccheck gen_mojom -input <features.yaml> [-output <file.mojom>]

Writes to stdout if -output is not given.
`

// Cmd returns the Command for the `gen_mojom` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "gen_mojom <args>...",
		ShortDesc: "generate a mojom enum from a feature list",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	input  string
	output string
}

func (c *run) init() {
	c.Flags.StringVar(&c.input, "input", "", "feature list in YAML")
	c.Flags.StringVar(&c.output, "output", "", "mojom file to write. empty writes to stdout")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	err := c.run(os.Stdout)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
			return 2
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(stdout io.Writer) error {
	if c.input == "" {
		return fmt.Errorf("-input is required: %w", flag.ErrHelp)
	}
	buf, err := os.ReadFile(c.input)
	if err != nil {
		return err
	}
	l, err := mojomgen.Parse(buf)
	if err != nil {
		return fmt.Errorf("%s: %w", c.input, err)
	}
	var out bytes.Buffer
	err = mojomgen.Generate(&out, l, filepath.ToSlash(filepath.Base(c.input)))
	if err != nil {
		return fmt.Errorf("%s: %w", c.input, err)
	}
	if c.output == "" {
		_, err = stdout.Write(out.Bytes())
		return err
	}
	// keep mtime of unchanged output for incremental builds.
	if cur, err := os.ReadFile(c.output); err == nil && bytes.Equal(cur, out.Bytes()) {
		log.Infof("%s is up to date", c.output)
		return nil
	}
	log.Infof("write %s", c.output)
	return os.WriteFile(c.output, out.Bytes(), 0644)
}
