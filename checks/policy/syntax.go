// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/srccheck/execute"
	"go.chromium.org/infra/build/srccheck/presubmit"
)

// SyntaxRequest is input of a policy template syntax check.
type SyntaxRequest struct {
	// Root is the repository root.
	Root string
	// DeviceProtoPath is the absolute path of chrome_device_policy.proto.
	DeviceProtoPath string
	// Templates are all policy definitions, keyed by path relative to
	// policy_definitions.
	Templates map[string]any
	// Changes are policy definitions changed by the change.
	Changes []PolicyChange
	// CurrentVersion is the current major version, or 0 if unknown.
	// Policies not yet released may change at will.
	CurrentVersion int
	// SkipCompatibilityCheck is set by the bypass tag in the description.
	SkipCompatibilityCheck bool
}

// TemplateChecker validates policy templates.
type TemplateChecker interface {
	Check(ctx context.Context, req *SyntaxRequest) (errs, warnings []string, err error)
}

// CheckPolicyTemplatesSyntax runs the template checker when templates, the
// device policy proto, or the syntax checker itself changed.
func (c *Checker) CheckPolicyTemplatesSyntax(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if c.Syntax == nil {
		return nil, nil
	}
	if !in.Change.Touches(TemplatesPath, DevicePolicyProtoPath, SyntaxCheckPath) {
		return nil, nil
	}
	root := in.Change.RepositoryRoot()
	templates, err := c.Cache.Templates(root)
	if err != nil {
		log.Warnf("failed to load policy templates: %v", err)
		return []presubmit.Result{presubmit.NewError("Unable to load the policy templates.")}, nil
	}
	changes, err := c.Cache.PolicyChanges(in.Change)
	if err != nil {
		return nil, err
	}
	req := &SyntaxRequest{
		Root:                   root,
		DeviceProtoPath:        filepath.Join(root, filepath.FromSlash(DevicePolicyProtoPath)),
		Templates:              templates,
		Changes:                changes,
		CurrentVersion:         c.Cache.CurrentVersion(root),
		SkipCompatibilityCheck: in.Change.HasTag(bypassCompatibilityTag),
	}
	if req.CurrentVersion > 0 {
		log.Infof("Checking policies against current version: %d", req.CurrentVersion)
	}
	errs, warnings, err := c.Syntax.Check(ctx, req)
	if err != nil {
		return nil, err
	}
	templateDir := filepath.Join(root, filepath.FromSlash(TemplatesPath))
	// Warnings are folded into the error so that both are printed together.
	if len(errs) > 0 {
		return []presubmit.Result{presubmit.NewError("Syntax error(s) in file:", templateDir).
			WithLongText(strings.Join(append(errs, warnings...), "\n"))}, nil
	}
	if len(warnings) > 0 {
		return []presubmit.Result{presubmit.NewPromptWarning("Syntax warning(s) in file:", templateDir).
			WithLongText(strings.Join(warnings, "\n"))}, nil
	}
	return nil, nil
}

// ExecTemplateChecker runs an external syntax checker.
//
// The command gets the request as flags and must print
// {"errors": [...], "warnings": [...]} as JSON on stdout.
type ExecTemplateChecker struct {
	Runner execute.Runner
	Cmd    []string
}

type execCheckerOutput struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Check implements TemplateChecker.
func (e ExecTemplateChecker) Check(ctx context.Context, req *SyntaxRequest) ([]string, []string, error) {
	if len(e.Cmd) == 0 {
		return nil, nil, nil
	}
	args := append([]string(nil), e.Cmd...)
	args = append(args, "--device_policy_proto_path="+req.DeviceProtoPath)
	if req.CurrentVersion > 0 {
		args = append(args, fmt.Sprintf("--current_version=%d", req.CurrentVersion))
	}
	if req.SkipCompatibilityCheck {
		args = append(args, "--skip_compatibility_check")
	}
	for _, pc := range req.Changes {
		args = append(args, "--changed_policy="+pc.Policy)
	}
	res, err := e.Runner.Run(ctx, &execute.Cmd{
		ID:   "policy-syntax-check",
		Args: args,
		Dir:  req.Root,
	})
	if err != nil {
		return nil, nil, err
	}
	var out execCheckerOutput
	if jerr := json.Unmarshal(res.Stdout, &out); jerr != nil {
		if res.ExitCode != 0 {
			return []string{res.Output()}, nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected syntax checker output: %w\n%s", jerr, res.Stdout)
	}
	return out.Errors, out.Warnings, nil
}
