// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package presubmit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/srccheck/execute"
)

// Input is passed to presubmit checks.
type Input struct {
	Change *Change

	// Dir is the slash-separated repository-relative directory of the
	// presubmit being run, e.g. "components/policy/resources".
	Dir string

	// Runner runs external tools.
	Runner execute.Runner
}

// ReadFile returns new contents of an affected file.
func (in *Input) ReadFile(f *AffectedFile) string {
	return strings.Join(f.NewLines, "\n")
}

// ReadRepoFile reads a file at slash-separated path relative to the
// repository root.
func (in *Input) ReadRepoFile(p string) ([]byte, error) {
	return os.ReadFile(filepath.Join(in.Change.Root, filepath.FromSlash(p)))
}

// Check is a presubmit check.
type Check struct {
	Name string
	// Run returns diagnostics. A non-nil error is an infrastructure
	// failure such as a missing tool, not a validation failure.
	Run func(ctx context.Context, in *Input) ([]Result, error)
}

// Run runs checks in order and returns combined results in check order.
// An infrastructure failure of one check becomes a single error result
// for that check; other checks still run.
func Run(ctx context.Context, in *Input, checks []Check) []Result {
	var results []Result
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			results = append(results, NewError(fmt.Sprintf("%s: %v", c.Name, err)))
			return results
		}
		log.Debugf("run %s in %s", c.Name, in.Dir)
		rs, err := c.Run(ctx, in)
		if err != nil {
			log.Warnf("%s failed: %v", c.Name, err)
			if errors.Is(err, context.Canceled) {
				results = append(results, NewError(fmt.Sprintf("%s: canceled", c.Name)))
				continue
			}
			results = append(results, NewError(fmt.Sprintf("%s: unable to run the check: %v", c.Name, err)))
			continue
		}
		log.Debugf("%s: %d results", c.Name, len(rs))
		results = append(results, rs...)
	}
	return results
}
