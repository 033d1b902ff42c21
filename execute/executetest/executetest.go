// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package executetest provides a fake execute.Runner for tests.
package executetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.chromium.org/infra/build/srccheck/execute"
)

// Fake is a fake runner.
// Commands are matched by the space-joined prefix of their args.
type Fake struct {
	mu sync.Mutex

	// Handlers maps command line prefix to handler.
	// The longest matching prefix wins.
	Handlers map[string]func(cmd *execute.Cmd) (*execute.Result, error)

	// Calls records all commands run, in order.
	Calls []*execute.Cmd
}

// Handle registers a handler returning a fixed result for prefix.
func (f *Fake) Handle(prefix string, res *execute.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Handlers == nil {
		f.Handlers = make(map[string]func(*execute.Cmd) (*execute.Result, error))
	}
	f.Handlers[prefix] = func(*execute.Cmd) (*execute.Result, error) {
		return res, nil
	}
}

// Run implements execute.Runner.
func (f *Fake) Run(ctx context.Context, cmd *execute.Cmd) (*execute.Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	cmdline := strings.Join(cmd.Args, " ")
	var h func(*execute.Cmd) (*execute.Result, error)
	matched := -1
	for prefix, handler := range f.Handlers {
		if strings.HasPrefix(cmdline, prefix) && len(prefix) > matched {
			h = handler
			matched = len(prefix)
		}
	}
	f.mu.Unlock()
	if h == nil {
		return nil, fmt.Errorf("executetest: unexpected command %q", cmd.Args)
	}
	return h(cmd)
}

// Cmdlines returns the recorded commands as space-joined strings.
func (f *Fake) Cmdlines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s []string
	for _, c := range f.Calls {
		s = append(s, strings.Join(c.Args, " "))
	}
	return s
}
