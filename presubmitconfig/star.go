// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmitconfig

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	starjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

const builtinRepo = "builtin"

// embeds these Starlark files for @builtin.
//
//go:embed main.star tools.star
var builtinStar embed.FS

func builtinModule() starlark.StringDict {
	runtimeModule := &starlarkstruct.Module{
		Name: "runtime",
		Members: map[string]starlark.Value{
			"num_cpu": starlark.MakeInt(runtime.NumCPU()),
			"os":      starlark.String(runtime.GOOS),
			"arch":    starlark.String(runtime.GOARCH),
		},
	}
	runtimeModule.Freeze()
	return starlark.StringDict{
		"runtime": runtimeModule,
		"path":    starPath(),
		"json":    starjson.Module,
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"module":  starlark.NewBuiltin("module", starlarkstruct.MakeModule),
	}
}

// Starlark value to access flags.
func starFlags(flags map[string]string) starlark.Value {
	dict := starlark.NewDict(len(flags))
	for k, v := range flags {
		dict.SetKey(starlark.String(k), starlark.String(v))
	}
	return dict
}

func packList(list []string) starlark.Value {
	values := make([]starlark.Value, 0, len(list))
	for _, elem := range list {
		values = append(values, starlark.String(elem))
	}
	return starlark.NewList(values)
}

func unpackList(v starlark.Value) ([]string, error) {
	iterator := starlark.Iterate(v)
	if iterator == nil {
		return nil, fmt.Errorf("got %v; want iterator", v.Type())
	}
	defer iterator.Done()
	var elem starlark.Value
	var list []string
	for iterator.Next(&elem) {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, fmt.Errorf("got %v in %v; want string", elem.Type(), v.Type())
		}
		list = append(list, s)
	}
	return list, nil
}

// starFS returns fs module over the repository at root.
//
//	read(fname): reads a file.
//	exists(fname): check if fname exists.
func starFS(root string) starlark.Value {
	receiver := starFSReceiver{root: root}
	return starlarkstruct.FromStringDict(starlark.String("fs"), map[string]starlark.Value{
		"read":   starlark.NewBuiltin("read", starFSRead).BindReceiver(receiver),
		"exists": starlark.NewBuiltin("exists", starFSExists).BindReceiver(receiver),
	})
}

type starFSReceiver struct {
	root string
}

func (r starFSReceiver) String() string {
	return fmt.Sprintf("fs[%s]", r.root)
}

func (starFSReceiver) Type() string          { return "fs" }
func (starFSReceiver) Freeze()               {}
func (starFSReceiver) Truth() starlark.Bool  { return starlark.True }
func (starFSReceiver) Hash() (uint32, error) { return 0, errors.New("fs is not hashable") }

func (r starFSReceiver) path(fname string) (string, error) {
	if r.root == "" {
		return "", errors.New("fs is not available")
	}
	if !filepath.IsLocal(filepath.FromSlash(fname)) {
		return "", fmt.Errorf("%q is not in the repository", fname)
	}
	return filepath.Join(r.root, filepath.FromSlash(fname)), nil
}

// Starlark function `fs.read(fname)` to read contents of fname.
func starFSRead(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c, ok := fn.Receiver().(starFSReceiver)
	if !ok {
		return starlark.None, fmt.Errorf("unexpected receiver: %v", fn.Receiver())
	}
	var fname string
	err := starlark.UnpackArgs("read", args, kwargs, "fname", &fname)
	if err != nil {
		return starlark.None, err
	}
	p, err := c.path(fname)
	if err != nil {
		return starlark.None, err
	}
	buf, err := os.ReadFile(p)
	if err != nil {
		return starlark.None, err
	}
	return starlark.String(buf), nil
}

// Starlark function `fs.exists(fname)` to check if fname exists.
func starFSExists(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c, ok := fn.Receiver().(starFSReceiver)
	if !ok {
		return starlark.None, fmt.Errorf("unexpected receiver: %v", fn.Receiver())
	}
	var fname string
	err := starlark.UnpackArgs("exists", args, kwargs, "fname", &fname)
	if err != nil {
		return starlark.None, err
	}
	p, err := c.path(fname)
	if err != nil {
		return starlark.None, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return starlark.False, nil
	}
	if err != nil {
		return starlark.None, err
	}
	return starlark.True, nil
}
