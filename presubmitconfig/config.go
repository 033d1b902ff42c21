// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package presubmitconfig provides the Starlark config for `srccheck check`.
//
// A config file defines `init(ctx)` returning
//
//	module("config", suites=[...], commands={...})
//
// suites names the presubmit suites to run, and commands maps an external
// tool name to its command line.
package presubmitconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

const (
	configEntryPoint = "init"

	// DefaultConfig is the config used when none is given.
	DefaultConfig = "@builtin//main.star"
)

// Config is a presubmit config.
type Config struct {
	// Suites are names of suites to run.
	Suites []string

	// Commands maps external tool name to command line.
	Commands map[string][]string
}

// Command returns the command line of the tool, or nil if not configured.
func (c *Config) Command(name string) []string {
	return c.Commands[name]
}

// Params are parameters passed to the config as ctx.
type Params struct {
	// Root is the repository root, exposed as ctx.fs.
	Root string
	// Flags are command line flags, exposed as ctx.flags.
	Flags map[string]string
	// Files are the affected files, exposed as ctx.files.
	Files []string
}

// Error is an error raised by Starlark code of the config.
type Error struct {
	entry string
	fn    starlark.Value
	err   *starlark.EvalError
}

func (e Error) Error() string {
	if fn, ok := e.fn.(*starlark.Function); ok {
		return fmt.Sprintf("failed to run %s[%s:%s]: %v", e.entry, fn.Position(), fn.Name(), e.err)
	}
	return fmt.Sprintf("failed to run %s[%s]: %v", e.entry, e.fn, e.err)
}

// Backtrace returns the Starlark call stack.
func (e Error) Backtrace() string {
	return e.err.CallStack.String()
}

func (e Error) Unwrap() error {
	return e.err
}

// Load loads the config file fname and runs its `init`.
// fname may be `@<repo>//` prefixed to select repository; the
// `builtin` repository is always available.
func Load(ctx context.Context, fname string, params Params, repos map[string]fs.FS) (*Config, error) {
	if repos == nil {
		repos = map[string]fs.FS{}
	}
	repos[builtinRepo] = builtinStar

	loader := &repoLoader{
		ctx:         ctx,
		repos:       repos,
		predeclared: builtinModule(),
	}
	thread := &starlark.Thread{
		Name: "load",
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: loader.Load,
	}
	thread.SetLocal("modulename", fname)
	globals, err := loader.Load(thread, fname)
	if err != nil {
		log.Warnf("thread:%s failed to exec file %s: %v", thread.Name, fname, err)
		var eerr *starlark.EvalError
		if errors.As(err, &eerr) {
			log.Warnf("stacktrace:\n%s", eerr.Backtrace())
		}
		return nil, err
	}
	fun, ok := globals[configEntryPoint]
	if !ok {
		return nil, fmt.Errorf("%s is not defined in %s", configEntryPoint, fname)
	}
	if _, ok := fun.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%s %s is not callable in %s", configEntryPoint, fun.Type(), fname)
	}

	thread = &starlark.Thread{
		Name: configEntryPoint,
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: func(*starlark.Thread, string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load is not allowed in init")
		},
	}
	hctx := starlarkstruct.FromStringDict(starlark.String("ctx"), map[string]starlark.Value{
		"flags": starFlags(params.Flags),
		"files": packList(params.Files),
		"fs":    starFS(params.Root),
	})
	ret, err := starlark.Call(thread, fun, []starlark.Value{hctx}, nil)
	if err != nil {
		log.Warnf("thread:%s failed to run %s: %v", thread.Name, configEntryPoint, err)
		var eerr *starlark.EvalError
		if errors.As(err, &eerr) {
			log.Warnf("stacktrace:\n%s", eerr.Backtrace())
			return nil, Error{entry: configEntryPoint, fn: fun, err: eerr}
		}
		return nil, fmt.Errorf("failed to run %s: %w", configEntryPoint, err)
	}
	m, ok := ret.(*starlarkstruct.Module)
	if !ok {
		return nil, fmt.Errorf("%s returned %s, want module", configEntryPoint, ret.Type())
	}
	return unpackConfig(m)
}

func unpackConfig(m *starlarkstruct.Module) (*Config, error) {
	cfg := &Config{Commands: make(map[string][]string)}
	s, err := m.Attr("suites")
	if err != nil {
		return nil, fmt.Errorf("no suites in %v: %w", m, err)
	}
	cfg.Suites, err = unpackList(s)
	if err != nil {
		return nil, fmt.Errorf("bad suites: %w", err)
	}
	c, err := m.Attr("commands")
	if err != nil {
		return nil, fmt.Errorf("no commands in %v: %w", m, err)
	}
	commands, ok := c.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("commands %v, want dict", c.Type())
	}
	for _, item := range commands.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("commands key %v, want string", item[0].Type())
		}
		args, err := unpackList(item[1])
		if err != nil {
			return nil, fmt.Errorf("bad command %q: %w", name, err)
		}
		cfg.Commands[name] = args
	}
	log.Infof("config: suites=%q commands=%d", cfg.Suites, len(cfg.Commands))
	return cfg, nil
}
