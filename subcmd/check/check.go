// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package check provides check subcommand to run presubmit checks.
package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/srccheck/checks"
	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/execute/localexec"
	"go.chromium.org/infra/build/srccheck/presubmit"
	"go.chromium.org/infra/build/srccheck/presubmit/gitchange"
	"go.chromium.org/infra/build/srccheck/presubmitconfig"
	"go.chromium.org/infra/build/srccheck/ui"
)

const usage = `run presubmit checks

Runs presubmit checks of policy resources, autofill, webui resources and
file_manager on the change of the git checkout against <base>.

 $ srccheck check -C <dir> [-base <base>] [-config <config>]

The policy templates syntax check runs only when the config sets the
policy_syntax_check command to a wrapper that prints
{"errors": [...], "warnings": [...]} as JSON. The builtin config leaves it
unset, so the check is skipped.

Exits with 1 if any check reported an error.
`

// configRepoDirEnv is used when -config_repo_dir is not set.
const configRepoDirEnv = "SRCCHECK_CONFIG_REPO_DIR"

// errFailed is returned when a check reported an error.
var errFailed = errors.New("presubmit failed")

// Cmd returns the Command for the `check` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "check <args>...",
		ShortDesc: "run presubmit checks",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir           string
	base          string
	config        string
	configRepoDir string
	suites        string
	offline       bool
	jobs          int
	jsonOutput    string
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "directory in the git checkout")
	c.Flags.StringVar(&c.base, "base", "HEAD", "git revision to compare the working tree with")
	c.Flags.StringVar(&c.config, "config", presubmitconfig.DefaultConfig, "presubmit config file. @config// refers to -config_repo_dir")
	c.Flags.StringVar(&c.configRepoDir, "config_repo_dir", "", "directory of @config repository")
	c.Flags.StringVar(&c.suites, "suites", "", "comma separated suites to run. empty runs suites set by config")
	c.Flags.BoolVar(&c.offline, "offline", false, "don't run external tools")
	c.Flags.IntVar(&c.jobs, "j", 0, "number of suites to run concurrently. 0 means no limit")
	c.Flags.StringVar(&c.jsonOutput, "json_output", "", "filename to write results in JSON")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n%s", a.GetName(), usage)
		return 2
	}
	if v := env[configRepoDirEnv]; c.configRepoDir == "" && v.Exists {
		c.configRepoDir = v.Value
	}
	err := c.run(ctx, localexec.LocalExec{}, os.Stdout)
	if err != nil {
		switch {
		case errors.Is(err, errFailed):
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) flags() map[string]string {
	flags := map[string]string{
		"base": c.base,
	}
	if c.suites != "" {
		flags["suites"] = c.suites
	}
	if c.offline {
		flags["offline"] = "true"
	}
	return flags
}

func (c *run) run(ctx context.Context, runner execute.Runner, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	root, err := gitchange.Root(ctx, runner, c.dir)
	if err != nil {
		return err
	}
	change, err := gitchange.New(ctx, runner, root, c.base)
	if err != nil {
		return err
	}
	log.Infof("%d affected files in %s against %s", len(change.Files), root, c.base)
	if len(change.Files) == 0 {
		fmt.Fprintln(w, "no affected files")
		return nil
	}

	repos := map[string]fs.FS{}
	if c.configRepoDir != "" {
		repos["config"] = os.DirFS(c.configRepoDir)
	}
	cfg, err := presubmitconfig.Load(ctx, c.config, presubmitconfig.Params{
		Root:  root,
		Flags: c.flags(),
		Files: affectedPaths(change),
	}, repos)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", c.config, err)
	}
	suites, err := checks.Select(checks.Suites(checks.ToolsFromCommands(cfg.Commands), runner), cfg.Suites)
	if err != nil {
		return fmt.Errorf("%w: %w", flag.ErrHelp, err)
	}

	spin := ui.Default.NewSpinner()
	spin.Start("running presubmit checks")
	report, err := checks.Run(ctx, change, runner, suites, checks.Options{Jobs: c.jobs})
	if err != nil {
		spin.Stop(err)
		return err
	}
	results := report.Results()
	spin.Done("%d results", len(results))

	if c.jsonOutput != "" {
		err := writeJSON(c.jsonOutput, report)
		if err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	err = presubmit.Format(&buf, results)
	if err != nil {
		return err
	}
	out := buf.String()
	if ui.IsTerminal() {
		out = colorize(out)
	}
	_, err = io.WriteString(w, out)
	if err != nil {
		return err
	}
	for _, s := range report.Suites {
		ui.Default.PrintLines("\n", summary(s))
	}
	if report.Failed() {
		return errFailed
	}
	return nil
}

func affectedPaths(change *presubmit.Change) []string {
	var paths []string
	for _, f := range change.Files {
		paths = append(paths, f.LocalPath())
	}
	return paths
}

func summary(s checks.SuiteResult) string {
	counts := map[presubmit.Severity]int{}
	for _, r := range s.Results {
		counts[r.Severity]++
	}
	msg := fmt.Sprintf("%s: %d errors, %d warnings", s.Name, counts[presubmit.Error], counts[presubmit.PromptWarning])
	switch {
	case counts[presubmit.Error] > 0:
		return ui.SGR(ui.Red, msg)
	case counts[presubmit.PromptWarning] > 0:
		return ui.SGR(ui.Yellow, msg)
	}
	return ui.SGR(ui.Green, msg)
}

// colorize highlights the section titles of a formatted report.
func colorize(s string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, line := range lines {
		title := strings.TrimSuffix(line, "\n")
		switch title {
		case "** Presubmit ERRORS **":
			lines[i] = ui.SGR(ui.Red, title) + "\n"
		case "** Presubmit Warnings **":
			lines[i] = ui.SGR(ui.Yellow, title) + "\n"
		case "** Presubmit Messages **":
			lines[i] = ui.SGR(ui.Bold, title) + "\n"
		}
	}
	return strings.Join(lines, "")
}

func writeJSON(fname string, report *checks.Report) error {
	buf, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	return os.WriteFile(fname, buf, 0644)
}
