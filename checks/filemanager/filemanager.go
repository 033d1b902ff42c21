// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package filemanager provides the presubmit checks for ui/file_manager.
package filemanager

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.chromium.org/infra/build/srccheck/presubmit"
	"go.chromium.org/infra/build/srccheck/presubmit/canned"
)

const (
	// Dir is the directory the checks apply to.
	Dir = "ui/file_manager"
	// FileNamesPath lists the TypeScript sources of the app.
	FileNamesPath = Dir + "/file_names.gni"
)

// Checker holds the external tools used by the file_manager checks.
type Checker struct {
	WebDevStyle []string
}

// Checks returns the file_manager checks in the order they run.
func (c *Checker) Checks() []presubmit.Check {
	return []presubmit.Check{
		{Name: "CheckNoNewJs", Run: CheckNoNewJs},
		{Name: "CheckFileNamesGni", Run: CheckFileNamesGni},
		{Name: "CheckWebDevStyle", Run: c.CheckWebDevStyle},
	}
}

func underDir(f *presubmit.AffectedFile) bool {
	return presubmit.Under(f.LocalPath(), Dir)
}

// CheckNoNewJs reports new JS files; the app is written in TypeScript.
func CheckNoNewJs(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	return canned.DisallowNewJsFiles(in, func(f *presubmit.AffectedFile) bool {
		return underDir(f) && !strings.HasSuffix(f.LocalPath(), ".eslintrc.js")
	}), nil
}

// CheckFileNamesGni reports new TypeScript files missing from
// file_names.gni.
func CheckFileNamesGni(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	var added []string
	for _, f := range in.Change.AffectedFiles(underDir) {
		p := f.LocalPath()
		if f.Action != presubmit.Added || path.Ext(p) != ".ts" || strings.HasSuffix(p, ".d.ts") {
			continue
		}
		added = append(added, p)
	}
	if len(added) == 0 {
		return nil, nil
	}
	gni, err := fileNamesGni(in)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, p := range added {
		rel := strings.TrimPrefix(p, Dir+"/")
		if !strings.Contains(gni, fmt.Sprintf("%q", rel)) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return []presubmit.Result{presubmit.NewPromptWarning(
		fmt.Sprintf("New TypeScript file(s) not listed in %s:", FileNamesPath),
		missing...)}, nil
}

// fileNamesGni returns file_names.gni as of the change.
func fileNamesGni(in *presubmit.Input) (string, error) {
	for _, f := range in.Change.AffectedFiles(nil) {
		if f.LocalPath() == FileNamesPath && f.Action != presubmit.Deleted {
			return in.ReadFile(f), nil
		}
	}
	buf, err := in.ReadRepoFile(FileNamesPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", FileNamesPath, err)
	}
	return string(buf), nil
}

// CheckWebDevStyle runs the web dev style checker on changed web sources.
func (c *Checker) CheckWebDevStyle(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	files := canned.LocalPaths(in.Change.AffectedSourceFiles(func(f *presubmit.AffectedFile) bool {
		if !underDir(f) {
			return false
		}
		switch path.Ext(f.LocalPath()) {
		case ".js", ".ts", ".html", ".css":
			return true
		}
		return false
	}))
	return canned.RunExternal(ctx, in, "web_dev_style", c.WebDevStyle, files, presubmit.Error)
}
