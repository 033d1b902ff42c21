// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gitchange builds a presubmit change from a git checkout.
package gitchange

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/presubmit"
)

// Root returns the top-level directory of the git checkout containing dir.
func Root(ctx context.Context, runner execute.Runner, dir string) (string, error) {
	out, err := execute.Output(ctx, runner, &execute.Cmd{
		ID:   "git-toplevel",
		Args: []string{"git", "rev-parse", "--show-toplevel"},
		Dir:  dir,
	})
	if err != nil {
		return "", fmt.Errorf("failed to find git checkout root: %w", err)
	}
	return filepath.FromSlash(strings.TrimSpace(string(out))), nil
}

// New returns a change of the working tree in root relative to base
// (e.g. "origin/main" or "HEAD~1").
func New(ctx context.Context, runner execute.Runner, root, base string) (*presubmit.Change, error) {
	// paths are NUL-terminated and not C-quoted, so non-ASCII names can be
	// passed back to git show as is.
	out, err := git(ctx, runner, root, "-c", "core.quotePath=false", "diff", "--name-status", "--no-renames", "-z", base)
	if err != nil {
		return nil, err
	}
	entries, err := parseNameStatus(out)
	if err != nil {
		return nil, err
	}
	c := &presubmit.Change{Root: root}
	for _, ent := range entries {
		f := &presubmit.AffectedFile{Path: ent.path, Action: ent.action}
		if ent.action != presubmit.Added {
			buf, err := git(ctx, runner, root, "show", base+":"+ent.path)
			if err != nil {
				return nil, err
			}
			f.OldLines = presubmit.SplitLines(buf)
		}
		if ent.action != presubmit.Deleted {
			buf, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ent.path)))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			f.NewLines = presubmit.SplitLines(buf)
		}
		c.Files = append(c.Files, f)
	}
	desc, err := git(ctx, runner, root, "log", "-1", "--format=%B")
	if err != nil {
		log.Warnf("failed to get change description: %v", err)
	}
	c.Tags = presubmit.ParseTags(string(desc))
	log.Infof("change from %s: %d files, tags=%v", base, len(c.Files), c.Tags)
	return c, nil
}

func git(ctx context.Context, runner execute.Runner, root string, args ...string) ([]byte, error) {
	id := "git"
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		id += "-" + args[i]
		break
	}
	return execute.Output(ctx, runner, &execute.Cmd{
		ID:   id,
		Args: append([]string{"git"}, args...),
		Dir:  root,
	})
}

type nameStatus struct {
	action presubmit.Action
	path   string
}

// parseNameStatus parses `git diff --name-status --no-renames -z` output,
// i.e. NUL-terminated status and path fields.
func parseNameStatus(buf []byte) ([]nameStatus, error) {
	fields := strings.Split(strings.TrimSuffix(string(buf), "\x00"), "\x00")
	if len(fields) == 1 && fields[0] == "" {
		return nil, nil
	}
	var entries []nameStatus
	for i := 0; i < len(fields); i += 2 {
		status := fields[i]
		if status == "" || i+1 >= len(fields) || fields[i+1] == "" {
			return nil, fmt.Errorf("unexpected git diff output at field %d: %q", i, status)
		}
		p := fields[i+1]
		var action presubmit.Action
		switch status[0] {
		case 'A':
			action = presubmit.Added
		case 'D':
			action = presubmit.Deleted
		case 'M', 'T':
			action = presubmit.Modified
		default:
			return nil, fmt.Errorf("unsupported git status %q for %s", status, p)
		}
		entries = append(entries, nameStatus{action: action, path: p})
	}
	return entries, nil
}
