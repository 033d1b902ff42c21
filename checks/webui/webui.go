// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package webui provides the presubmit checks for ui/webui/resources.
package webui

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.chromium.org/infra/build/srccheck/presubmit"
	"go.chromium.org/infra/build/srccheck/presubmit/canned"
)

// Dir is the directory the checks apply to.
const Dir = "ui/webui/resources"

const translationsGuidance = `

Don't embed translations directly in shared UI code. Instead, inject your
translation from the place using the shared code. For an example: see
<cr-dialog>#closeText (http://bit.ly/2eLEsqh).`

var (
	sharedKeywords = []string{"i18n("}
	htmlKeywords   = append(append([]string(nil), sharedKeywords...), "$i18n{")
	jsKeywords     = append(append([]string(nil), sharedKeywords...), "I18nBehavior", "loadTimeData.get")

	// legacy files in js/ and tools/ may stay in JS.
	jsAllowedPrefixes = cleanAll(
		"ui/webui/resources/js/assert.js",
		"ui/webui/resources/js/dom_automation_controller.js",
		"ui/webui/resources/js/cr",
		"ui/webui/resources/js/ios/",
		"ui/webui/resources/js/load_time_data.m.js",
		"ui/webui/resources/js/load_time_data_deprecated.js",
		"ui/webui/resources/js/promise_resolver.js",
		"ui/webui/resources/js/util.js",
		"ui/webui/resources/js/util_deprecated.js",
		"ui/webui/resources/tools/",
	)
	// externs and eslint configs must be JS.
	jsAllowedSuffixes = []string{"_externs.js", ".eslintrc.js"}
)

func cleanAll(paths ...string) []string {
	var cleaned []string
	for _, p := range paths {
		cleaned = append(cleaned, path.Clean(p))
	}
	return cleaned
}

// Checker holds the external tools used by the webui checks.
// An empty command disables the check using it.
type Checker struct {
	Svgo        []string
	WebDevStyle []string
	Format      []string
	// Python runs unit tests. Defaults to python3.
	Python []string
}

// Checks returns the webui checks in the order they run.
func (c *Checker) Checks() []presubmit.Check {
	return []presubmit.Check{
		{Name: "CheckForTranslations", Run: CheckForTranslations},
		{Name: "CheckSvgsOptimized", Run: c.CheckSvgsOptimized},
		{Name: "CheckWebDevStyle", Run: c.CheckWebDevStyle},
		{Name: "CheckNoDisallowedJS", Run: CheckNoDisallowedJS},
		{Name: "CheckJsModulizer", Run: c.CheckJsModulizer},
		{Name: "CheckGenerateGrd", Run: c.CheckGenerateGrd},
		{Name: "CheckPatchFormatted", Run: c.CheckPatchFormatted},
	}
}

func underDir(f *presubmit.AffectedFile) bool {
	return presubmit.Under(f.LocalPath(), Dir)
}

// CheckForTranslations reports changed lines embedding translations in
// shared UI code.
func CheckForTranslations(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	var errs []string
	for _, f := range in.Change.AffectedFiles(underDir) {
		p := f.LocalPath()
		if strings.HasSuffix(p, "i18n_behavior.js") || strings.Contains(p, "cr_components") {
			continue
		}
		var keywords []string
		switch path.Ext(p) {
		case ".js":
			keywords = jsKeywords
		case ".html":
			keywords = htmlKeywords
		default:
			continue
		}
		for _, line := range f.ChangedContents() {
			if containsAny(line.Text, keywords) {
				errs = append(errs, fmt.Sprintf("%s:%d\n%s", p, line.Num, line.Text))
			}
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return []presubmit.Result{presubmit.NewError(strings.Join(errs, "\n") + translationsGuidance)}, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// sourcesWithExt returns non-deleted files under Dir with one of exts.
func sourcesWithExt(in *presubmit.Input, exts ...string) []string {
	return canned.LocalPaths(in.Change.AffectedSourceFiles(func(f *presubmit.AffectedFile) bool {
		if !underDir(f) {
			return false
		}
		for _, ext := range exts {
			if path.Ext(f.LocalPath()) == ext {
				return true
			}
		}
		return false
	}))
}

// CheckSvgsOptimized runs svgo on changed SVG files.
func (c *Checker) CheckSvgsOptimized(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	return canned.RunExternal(ctx, in, "svgo", c.Svgo, sourcesWithExt(in, ".svg"), presubmit.Error)
}

// CheckWebDevStyle runs the web dev style checker on changed web sources.
func (c *Checker) CheckWebDevStyle(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	files := sourcesWithExt(in, ".js", ".ts", ".html", ".css")
	return canned.RunExternal(ctx, in, "web_dev_style", c.WebDevStyle, files, presubmit.Error)
}

func allowJS(f *presubmit.AffectedFile) bool {
	p := f.LocalPath()
	for _, prefix := range jsAllowedPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, suffix := range jsAllowedSuffixes {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// CheckNoDisallowedJS reports new JS files outside the legacy allow-list.
func CheckNoDisallowedJS(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	return canned.DisallowNewJsFiles(in, func(f *presubmit.AffectedFile) bool {
		return underDir(f) && !allowJS(f)
	}), nil
}

// runToolTests runs tools/<test> when a file named script changed.
func (c *Checker) runToolTests(ctx context.Context, in *presubmit.Input, script, test string) ([]presubmit.Result, error) {
	changed := false
	for _, f := range in.Change.AffectedFiles(underDir) {
		if path.Base(f.LocalPath()) == script {
			changed = true
			break
		}
	}
	if !changed {
		return nil, nil
	}
	python := c.Python
	if len(python) == 0 {
		python = []string{"python3"}
	}
	return canned.RunUnitTests(ctx, in, python, []string{path.Join(Dir, "tools", test)})
}

// CheckJsModulizer runs js_modulizer tests when js_modulizer.py changed.
func (c *Checker) CheckJsModulizer(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	return c.runToolTests(ctx, in, "js_modulizer.py", "js_modulizer_test.py")
}

// CheckGenerateGrd runs generate_grd tests when generate_grd.py changed.
func (c *Checker) CheckGenerateGrd(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	return c.runToolTests(ctx, in, "generate_grd.py", "generate_grd_test.py")
}

// CheckPatchFormatted runs the formatter in dry-run mode, including JS.
func (c *Checker) CheckPatchFormatted(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	files := canned.LocalPaths(in.Change.AffectedSourceFiles(func(f *presubmit.AffectedFile) bool {
		return underDir(f) && presubmit.FilterSourceFile(f)
	}))
	return canned.RunExternal(ctx, in, "format", c.Format, files, presubmit.PromptWarning)
}
