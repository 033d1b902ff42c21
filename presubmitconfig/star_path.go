// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmitconfig

import (
	"fmt"
	"path"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"go.chromium.org/infra/build/srccheck/presubmit"
)

// starPath returns path module for slash-separated repository paths.
//
//	base(fname)
//	dir(fname)
//	ext(fname)
//	join(...)
//	under(fname, dir)
func starPath() starlark.Value {
	pathModule := &starlarkstruct.Module{
		Name: "path",
		Members: map[string]starlark.Value{
			"base":  starlark.NewBuiltin("base", starPathUnary(path.Base)),
			"dir":   starlark.NewBuiltin("dir", starPathUnary(path.Dir)),
			"ext":   starlark.NewBuiltin("ext", starPathUnary(path.Ext)),
			"join":  starlark.NewBuiltin("join", starPathJoin),
			"under": starlark.NewBuiltin("under", starPathUnder),
		},
	}
	pathModule.Freeze()
	return pathModule
}

func starPathUnary(f func(string) string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var fname string
		err := starlark.UnpackArgs(fn.Name(), args, kwargs, "fname", &fname)
		if err != nil {
			return starlark.None, err
		}
		return starlark.String(f(fname)), nil
	}
}

// Starlark function `path.join(...)` to return joined path name.
func starPathJoin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var elems []string
	for _, v := range args {
		s, ok := starlark.AsString(v)
		if !ok {
			return starlark.None, fmt.Errorf("join: for parameter elems: got %s, want string", v.Type())
		}
		elems = append(elems, s)
	}
	return starlark.String(path.Join(elems...)), nil
}

// Starlark function `path.under(fname, dir)` to check fname is dir or below dir.
func starPathUnder(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fname, dir string
	err := starlark.UnpackArgs("under", args, kwargs, "fname", &fname, "dir", &dir)
	if err != nil {
		return starlark.None, err
	}
	return starlark.Bool(presubmit.Under(fname, dir)), nil
}
