// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmit

import (
	"regexp"
)

var (
	defaultFilesToCheck = compileAll(
		`.+\.c$`, `.+\.cc$`, `.+\.cpp$`, `.+\.h$`, `.+\.m$`, `.+\.mm$`,
		`.+\.inl$`, `.+\.asm$`, `.+\.hxx$`, `.+\.hpp$`, `.+\.s$`, `.+\.S$`,
		`.+\.java$`, `.+\.kt$`, `.+\.swift$`,
		`.+\.js$`, `.+\.ts$`, `.+\.html$`, `.+\.css$`,
		`.+\.py$`, `.+\.sh$`, `.+\.pl$`, `.+\.go$`, `.+\.rs$`,
		`.+\.mojom$`, `.+\.fidl$`, `.+\.gn$`, `.+\.gni$`, `.+\.bat$`,
	)
	defaultFilesToSkip = compileAll(
		`^testing_support/google_appengine/`,
		`(^|/)third_party/`,
		`(^|/)\.git/`,
		`(^|/)\.svn/`,
		`^out/`,
		`^out[^/]*/`,
		`(^|/)gen/`,
		`(^|/)node_modules/`,
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	var res []*regexp.Regexp
	for _, e := range exprs {
		res = append(res, regexp.MustCompile(e))
	}
	return res
}

func matchAny(res []*regexp.Regexp, p string) bool {
	for _, re := range res {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// FilterSourceFile is the default source file filter.
// It accepts well-known source extensions outside third_party and
// build output directories.
func FilterSourceFile(f *AffectedFile) bool {
	return matchAny(defaultFilesToCheck, f.Path) && !matchAny(defaultFilesToSkip, f.Path)
}
