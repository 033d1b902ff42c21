// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmitconfig

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
)

// repoLoader is a Starlark repository loader.
type repoLoader struct {
	ctx         context.Context
	repos       map[string]fs.FS
	predeclared starlark.StringDict
}

// Load loads a Starlark module.
// A module may be `@<repo>//` prefix to select repository. Otherwise it
// is relative to the loading module, or a file on local disk.
func (r *repoLoader) Load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	curname := thread.Local("modulename").(string)
	log.Debugf("load %s from %s", module, curname)
	var curRepo string
	if m, n, ok := strings.Cut(curname, "//"); ok && strings.HasPrefix(m, "@") {
		curRepo = m[1:]
		curname = n
	}
	var repo, fname string
	if strings.HasPrefix(module, "@") {
		m, n, ok := strings.Cut(module, "//")
		if !ok {
			return nil, fmt.Errorf("failed to parse module: %q", module)
		}
		repo = m[1:]
		fname = n
	} else {
		fname = module
		if module != curname && !path.IsAbs(fname) {
			fname = path.Join(path.Dir(curname), module)
		}
		repo = curRepo
	}
	fullname := fname
	if repo != "" {
		fullname = fmt.Sprintf("@%s//%s", repo, fname)
	}
	var buf []byte
	var err error
	if repo != "" {
		repoFS, ok := r.repos[repo]
		if !ok {
			return nil, fmt.Errorf("no such repository defined %q", repo)
		}
		buf, err = fs.ReadFile(repoFS, fname)
	} else {
		buf, err = os.ReadFile(fname)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", fullname, err)
	}
	t := &starlark.Thread{
		Name: "module " + fullname,
		Print: func(thread *starlark.Thread, msg string) {
			log.Infof("thread:%s %s", thread.Name, msg)
		},
		Load: r.Load,
	}
	t.SetLocal("modulename", fullname)
	return starlark.ExecFile(t, fullname, buf, r.predeclared)
}
