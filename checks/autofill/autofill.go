// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package autofill provides the presubmit checks for components/autofill.
package autofill

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.chromium.org/infra/build/srccheck/presubmit"
)

// Dir is the directory the checks apply to.
const Dir = "components/autofill"

const (
	productionSupportFile = "android_webview/java/src/org/chromium/" +
		"android_webview/common/ProductionSupportedFlagList.java"
	generateFlagLabelsPy = "android_webview/tools/generate_flag_labels.py"
)

var (
	baseTimeNowRE      = regexp.MustCompile(`(?m)(base::(Time|TimeTicks)::Now)\(\)`)
	serverFieldCastRE  = regexp.MustCompile(`(?m)_cast<\s*ServerFieldType\b`)
	baseFeatureRE      = regexp.MustCompile(`(?m)\bBASE_FEATURE\s*\(\s*k(\w*)\s*,\s*"(\w*)"`)
	featureNameAllowed = map[[2]string]bool{
		{"AutofillAddressEnhancementVotes", "kAutofillAddressEnhancementVotes"}: true,
	}
)

// Checks returns the autofill checks.
func Checks() []presubmit.Check {
	return []presubmit.Check{
		{Name: "CheckNoBaseTimeCalls", Run: CheckNoBaseTimeCalls},
		{Name: "CheckNoServerFieldTypeCasts", Run: CheckNoServerFieldTypeCasts},
		{Name: "CheckFeatureNames", Run: CheckFeatureNames},
		{Name: "CheckWebViewExposedExperiments", Run: CheckWebViewExposedExperiments},
		{Name: "CheckModificationOfLegacyRegexPatterns", Run: CheckModificationOfLegacyRegexPatterns},
	}
}

func isAutofillSource(f *presubmit.AffectedFile) bool {
	p := f.LocalPath()
	return strings.HasPrefix(p, Dir+"/") && !strings.HasSuffix(p, "PRESUBMIT.py")
}

func isAutofillFeaturesFile(f *presubmit.AffectedFile) bool {
	p := f.LocalPath()
	return strings.HasPrefix(p, Dir+"/") && strings.HasSuffix(p, "features.cc")
}

// filesMatching returns autofill source files whose contents match re.
func filesMatching(in *presubmit.Input, re *regexp.Regexp) []string {
	var files []string
	for _, f := range in.Change.AffectedSourceFiles(presubmit.FilterSourceFile) {
		if !isAutofillSource(f) {
			continue
		}
		if re.MatchString(in.ReadFile(f)) {
			files = append(files, f.LocalPath())
		}
	}
	return files
}

// CheckNoBaseTimeCalls checks that no files call base::Time::Now() or
// base::TimeTicks::Now().
func CheckNoBaseTimeCalls(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	files := filesMatching(in, baseTimeNowRE)
	if len(files) == 0 {
		return nil, nil
	}
	return []presubmit.Result{presubmit.NewPromptWarning(
		"Consider to not call base::Time::Now() or base::TimeTicks::Now() "+
			"directly but use AutofillClock::Now() and "+
			"Autofill::TickClock::NowTicks(), respectively. These clocks can be "+
			"manipulated through TestAutofillClock and TestAutofillTickClock "+
			"for testing purposes, and using AutofillClock and AutofillTickClock "+
			"throughout Autofill code makes sure Autofill tests refers to the "+
			"same (potentially manipulated) clock.",
		files...)}, nil
}

// CheckNoServerFieldTypeCasts checks that no files cast raw integers to
// ServerFieldType.
func CheckNoServerFieldTypeCasts(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	files := filesMatching(in, serverFieldCastRE)
	if len(files) == 0 {
		return nil, nil
	}
	return []presubmit.Result{presubmit.NewPromptWarning(
		"Do not cast raw integers to ServerFieldType to prevent values that "+
			"have no corresponding enum constant or are deprecated. Use "+
			"ToSafeServerFieldType() instead.",
		files...)}, nil
}

// CheckFeatureNames checks that feature names are identical to their
// variable names.
func CheckFeatureNames(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	var results []presubmit.Result
	for _, f := range in.Change.AffectedSourceFiles(presubmit.FilterSourceFile) {
		if !isAutofillFeaturesFile(f) {
			continue
		}
		var mismatches []string
		for _, m := range baseFeatureRE.FindAllStringSubmatch(in.ReadFile(f), -1) {
			constant, feature := m[1], m[2]
			if constant == feature || featureNameAllowed[[2]string{constant, feature}] {
				continue
			}
			mismatches = append(mismatches, fmt.Sprintf("\t%s -- %s", constant, feature))
		}
		if len(mismatches) > 0 {
			results = append(results, presubmit.NewPromptWarning(
				"Feature names should be identical to variable names:\n"+strings.Join(mismatches, "\n"),
				f.LocalPath()))
		}
	}
	return results, nil
}

// CheckWebViewExposedExperiments checks that changes to autofill features
// are considered for WebView.
func CheckWebViewExposedExperiments(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	anyMatches := func(match func(*presubmit.AffectedFile) bool) bool {
		for _, f := range in.Change.AffectedTestableFiles() {
			if match(f) {
				return true
			}
		}
		return false
	}
	isWebViewFeaturesFile := func(f *presubmit.AffectedFile) bool {
		return f.LocalPath() == productionSupportFile
	}
	if anyMatches(isAutofillFeaturesFile) && !anyMatches(isWebViewFeaturesFile) {
		return []presubmit.Result{presubmit.NewPromptWarning(fmt.Sprintf(
			"You may need to modify %s and run %s and follow its "+
				"instructions if your feature affects WebView.",
			productionSupportFile, generateFlagLabelsPy))}, nil
	}
	return nil, nil
}

// CheckModificationOfLegacyRegexPatterns reminds to update internal regex
// patterns when legacy ones are modified.
func CheckModificationOfLegacyRegexPatterns(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	for _, f := range in.Change.AffectedTestableFiles() {
		p := f.LocalPath()
		if strings.HasPrefix(p, Dir+"/") && strings.HasSuffix(p, "legacy_regex_patterns.json") {
			return []presubmit.Result{presubmit.NewPromptWarning(
				"You may need to modify the parsing patterns in src-internal. " +
					"See go/autofill-internal-parsing-patterns for more details. " +
					"Ideally, the legacy patterns should not be modified.")}, nil
		}
	}
	return nil, nil
}
