// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// srccheck runs Chromium source checks and source generators.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/srccheck/subcmd/check"
	"go.chromium.org/infra/build/srccheck/subcmd/genmojom"
	"go.chromium.org/infra/build/srccheck/subcmd/help"
	"go.chromium.org/infra/build/srccheck/subcmd/updateidl"
	"go.chromium.org/infra/build/srccheck/subcmd/version"
	"go.chromium.org/infra/build/srccheck/ui"
)

const versionStr = "srccheck v0.1.0"

var logLevel = flag.String("log_level", "warn", "log level. debug, info, warn, error or fatal")

func getApplication() *subcommands.DefaultApplication {
	return &subcommands.DefaultApplication{
		Name:  "srccheck",
		Title: "Chromium source checker and generator",
		Commands: []*subcommands.Command{
			check.Cmd(),
			updateidl.Cmd(),
			genmojom.Cmd(),

			help.Cmd(),
			version.Cmd(versionStr),
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			"SRCCHECK_CONFIG_REPO_DIR": {
				Advanced:  true,
				ShortDesc: "directory of @config repository used when -config_repo_dir is not set",
			},
		},
	}
}

func main() {
	os.Exit(srccheckMain(os.Args[1:]))
}

func srccheckMain(args []string) int {
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(out, "global flags:\n")
		flag.PrintDefaults()
	}
	err := flag.CommandLine.Parse(args)
	if err != nil {
		return 2
	}
	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -log_level: %v\n", err)
		return 2
	}
	log.SetLevel(level)

	ui.Init()
	defer ui.Restore()

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	logBuildInfo()
	return subcommands.Run(getApplication(), flag.Args())
}

func logBuildInfo() {
	buildinfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Infof("buildinfo: not available")
		return
	}
	log.Infof("buildinfo: path=%q", buildinfo.Path)
	log.Infof("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
	if log.GetLevel() <= log.DebugLevel {
		for _, m := range buildinfo.Deps {
			log.Debugf("deps module: %s", moduleInfo(m))
		}
		for _, bs := range buildinfo.Settings {
			log.Debugf("build %s=%s", bs.Key, bs.Value)
		}
	}
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
