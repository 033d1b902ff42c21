// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package checks registers the presubmit suites and runs them on a change.
package checks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/srccheck/checks/autofill"
	"go.chromium.org/infra/build/srccheck/checks/filemanager"
	"go.chromium.org/infra/build/srccheck/checks/policy"
	"go.chromium.org/infra/build/srccheck/checks/webui"
	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/presubmit"
)

// Tools are command lines of external tools used by checks.
// An empty command disables the check that needs it.
type Tools struct {
	Python            []string
	Svgo              []string
	WebDevStyle       []string
	Format            []string
	PolicySyntaxCheck []string
}

// ToolsFromCommands returns tools from a name to command line map, as
// configured in the presubmit config.
func ToolsFromCommands(commands map[string][]string) Tools {
	return Tools{
		Python:            commands["python"],
		Svgo:              commands["svgo"],
		WebDevStyle:       commands["web_dev_style"],
		Format:            commands["format"],
		PolicySyntaxCheck: commands["policy_syntax_check"],
	}
}

// Suite is a presubmit suite: checks of a directory.
type Suite struct {
	Name string
	// Dir is the slash-separated repository-relative directory.
	// The suite runs when a file under Dir is affected.
	Dir    string
	Checks []presubmit.Check
}

// Suites returns all suites.
func Suites(tools Tools, runner execute.Runner) []Suite {
	var syntax policy.TemplateChecker
	if len(tools.PolicySyntaxCheck) > 0 {
		syntax = policy.ExecTemplateChecker{Runner: runner, Cmd: tools.PolicySyntaxCheck}
	}
	webuiChecker := &webui.Checker{
		Svgo:        tools.Svgo,
		WebDevStyle: tools.WebDevStyle,
		Format:      tools.Format,
		Python:      tools.Python,
	}
	fileManagerChecker := &filemanager.Checker{WebDevStyle: tools.WebDevStyle}
	return []Suite{
		{Name: "policy", Dir: policy.Dir, Checks: policy.New(syntax).Checks()},
		{Name: "autofill", Dir: autofill.Dir, Checks: autofill.Checks()},
		{Name: "webui", Dir: webui.Dir, Checks: webuiChecker.Checks()},
		{Name: "file_manager", Dir: filemanager.Dir, Checks: fileManagerChecker.Checks()},
	}
}

// Select returns the suites with the given names, in the order of suites.
func Select(suites []Suite, names []string) ([]Suite, error) {
	known := make(map[string]bool)
	for _, s := range suites {
		known[s.Name] = true
	}
	want := make(map[string]bool)
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("unknown suite %q", name)
		}
		want[name] = true
	}
	var selected []Suite
	for _, s := range suites {
		if want[s.Name] {
			selected = append(selected, s)
		}
	}
	return selected, nil
}

// SuiteResult is results of a suite.
type SuiteResult struct {
	Name    string             `json:"name"`
	Dir     string             `json:"dir"`
	Results []presubmit.Result `json:"results"`
}

// Report is results of a run.
type Report struct {
	RunID  string        `json:"run_id"`
	Suites []SuiteResult `json:"suites"`
}

// Results returns results of all suites, in suite order.
func (r *Report) Results() []presubmit.Result {
	var results []presubmit.Result
	for _, s := range r.Suites {
		results = append(results, s.Results...)
	}
	return results
}

// Failed reports whether any suite reported an error.
func (r *Report) Failed() bool {
	return presubmit.Failed(r.Results())
}

// Options are options of Run.
type Options struct {
	// Jobs limits suites running concurrently. <= 0 means no limit.
	Jobs int
}

// Run runs the suites whose directory has an affected file.
// Suites run concurrently; the report keeps suite order.
// It returns an error if ctx is canceled before all suites ran.
func Run(ctx context.Context, change *presubmit.Change, runner execute.Runner, suites []Suite, opts Options) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	var active []Suite
	for _, s := range suites {
		if change.Touches(s.Dir) {
			active = append(active, s)
			continue
		}
		log.Debugf("run:%s skip %s: no affected files in %s", report.RunID, s.Name, s.Dir)
	}
	report.Suites = make([]SuiteResult, len(active))
	eg, ctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		eg.SetLimit(opts.Jobs)
	}
	for i, s := range active {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("suite %s not run: %w", s.Name, err)
			}
			started := time.Now()
			in := &presubmit.Input{
				Change: change,
				Dir:    s.Dir,
				Runner: runner,
			}
			results := presubmit.Run(ctx, in, s.Checks)
			log.Infof("run:%s %s: %d results in %s", report.RunID, s.Name, len(results), time.Since(started))
			report.Suites[i] = SuiteResult{Name: s.Name, Dir: s.Dir, Results: results}
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Names returns sorted names of suites.
func Names(suites []Suite) []string {
	var names []string
	for _, s := range suites {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
