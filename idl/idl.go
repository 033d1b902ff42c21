// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package idl regenerates the updater IDL COM headers and type libraries
// after the IDL template changed.
//
// It builds the IDL target for each configuration; when the checked-in
// files are stale, the build fails and prints the copy command that
// rebaselines them, which is then run.
package idl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/ui"
)

const (
	// Target is the GN target generating the IDL outputs.
	Target = "chrome/updater/app/server/win:updater_idl_idl_idl_action"

	// OutputDir is the build directory, relative to the source root.
	OutputDir = `out\idl_update`
)

var (
	// ErrUnexpectedOutput is returned when the build failed without the
	// rebaseline instructions.
	ErrUnexpectedOutput = errors.New("unexpected autoninja error, or update this tool if the output format is changed")

	// ErrEnvironment is returned when the tool doesn't run on Windows at
	// the source root.
	ErrEnvironment = errors.New("bad running environment")
)

// Config is a build configuration.
type Config struct {
	TargetCPU     string
	ChromeBranded bool
}

func (c Config) String() string {
	return fmt.Sprintf("target_cpu=%s is_chrome_branded=%t", c.TargetCPU, c.ChromeBranded)
}

// Args returns args.gn contents for the config.
func (c Config) Args() string {
	return fmt.Sprintf(`target_cpu="%s"
use_goma=true
is_chrome_branded=%t
is_debug=true
enable_nacl=false
blink_symbol_level=0
v8_symbol_level=0
`, c.TargetCPU, c.ChromeBranded)
}

// Configs returns all configurations to update, in order.
func Configs() []Config {
	var configs []Config
	for _, cpu := range []string{"arm64", "x64", "x86"} {
		for _, branded := range []bool{true, false} {
			configs = append(configs, Config{TargetCPU: cpu, ChromeBranded: branded})
		}
	}
	return configs
}

// Updater updates IDL outputs.
type Updater struct {
	Runner execute.Runner
	// Root is the source root directory.
	Root string
	// UI reports progress. nil uses ui.Default.
	UI ui.UI
}

func (u *Updater) ui() ui.UI {
	if u.UI == nil {
		return ui.Default
	}
	return u.UI
}

// UpdateAll updates IDL outputs for all configurations.
// It stops at the first failure.
func (u *Updater) UpdateAll(ctx context.Context) error {
	for _, cfg := range Configs() {
		err := u.Update(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg, err)
		}
	}
	return nil
}

// Update updates IDL outputs for cfg.
func (u *Updater) Update(ctx context.Context, cfg Config) error {
	spin := u.ui().NewSpinner()
	spin.Start("Updating IDL files for %s CPU, chrome_branded: %t", cfg.TargetCPU, cfg.ChromeBranded)
	updated, err := u.update(ctx, cfg)
	switch {
	case err != nil:
		spin.Stop(err)
	case updated:
		spin.Done("updated")
	default:
		spin.Done("no update is needed")
	}
	return err
}

func (u *Updater) update(ctx context.Context, cfg Config) (bool, error) {
	outDir := filepath.Join(u.Root, "out", "idl_update")
	err := os.MkdirAll(outDir, 0755)
	if err != nil {
		return false, err
	}
	err = u.genArgs(ctx, cfg, outDir)
	if err != nil {
		return false, err
	}
	return u.buildAndUpdate(ctx)
}

// genArgs generates the build directory with default args, then
// overwrites args.gn. Passing the values with --args is fragile on the
// Windows command line.
func (u *Updater) genArgs(ctx context.Context, cfg Config, outDir string) error {
	argsPath := filepath.Join(outDir, "args.gn")
	log.Infof("Generating %s with default values.", argsPath)
	_, err := execute.Output(ctx, u.Runner, &execute.Cmd{
		ID:   "gn-gen",
		Args: []string{"gn.bat", "gen", OutputDir},
		Dir:  u.Root,
	})
	if err != nil {
		return fmt.Errorf("gn gen failed: %w", err)
	}
	log.Infof("Write %s with desired config.", argsPath)
	return os.WriteFile(argsPath, []byte(cfg.Args()), 0644)
}

func (u *Updater) buildAndUpdate(ctx context.Context) (bool, error) {
	log.Infof("Check if update is needed by building the target...")
	res, err := u.Runner.Run(ctx, &execute.Cmd{
		ID:   "autoninja",
		Args: []string{"autoninja.bat", "-C", OutputDir, Target},
		Dir:  u.Root,
	})
	if err != nil {
		return false, fmt.Errorf("autoninja failed to run: %w", err)
	}
	if res.ExitCode == 0 {
		log.Infof("No update is needed.")
		return false, nil
	}
	cmdline, err := extractUpdateCommand(string(res.Stdout))
	if err != nil {
		return false, err
	}
	log.Infof("Updating IDL COM headers/TLB by [ %s ]...", cmdline)
	_, err = execute.Output(ctx, u.Runner, &execute.Cmd{
		ID:    "rebaseline",
		Args:  []string{cmdline},
		Dir:   u.Root,
		Shell: true,
	})
	if err != nil {
		return false, fmt.Errorf("rebaseline failed: %w", err)
	}
	return true, nil
}

// extractUpdateCommand returns the copy command printed by a failed build.
// The last three lines must be the rebaseline banner, the command, and
// the ninja failure.
func extractUpdateCommand(stdout string) (string, error) {
	lines := strings.Split(strings.TrimRight(strings.ReplaceAll(stdout, "\r\n", "\n"), "\n"), "\n")
	n := len(lines)
	if n < 3 ||
		!strings.Contains(lines[n-1], "ninja: build stopped: subcommand failed.") ||
		!strings.Contains(lines[n-2], "copy /y") ||
		!strings.Contains(lines[n-3], "To rebaseline:") {
		log.Warnf("autoninja stdout:\n%s", stdout)
		return "", ErrUnexpectedOutput
	}
	return strings.TrimSpace(lines[n-2]), nil
}

// CheckEnvironment checks that the tool runs on Windows (goos) from the
// source root (cwd).
func CheckEnvironment(ctx context.Context, runner execute.Runner, goos, cwd string) error {
	if goos != "windows" {
		return fmt.Errorf("%w: this tool must run from Windows platform", ErrEnvironment)
	}
	out, err := execute.Output(ctx, runner, &execute.Cmd{
		ID:   "git-toplevel",
		Args: []string{"git.bat", "rev-parse", "--show-toplevel"},
		Dir:  cwd,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to run git for finding source root directory: %w", ErrEnvironment, err)
	}
	root, err := filepath.Abs(strings.TrimSpace(string(out)))
	if err != nil {
		return fmt.Errorf("%w: failed to get source root directory: %w", ErrEnvironment, err)
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("%w: unexpected failure to get source root directory: %w", ErrEnvironment, err)
	}
	if !strings.EqualFold(filepath.Clean(cwd), root) {
		return fmt.Errorf("%w: this tool must run from project root folder. CWD: [%s] vs ACTUAL:[%s]", ErrEnvironment, strings.ToLower(cwd), strings.ToLower(root))
	}
	return nil
}
