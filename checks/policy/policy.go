// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package policy provides the presubmit checks for components/policy/resources.
//
// The checks cross-validate the policy registry (policies.yaml) against the
// histogram enums, the policy test cases, the device policy proto mappings
// and the message table. A file that fails to load aborts the check that
// needs it with a single error; no partial results are reported.
package policy

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"go.chromium.org/infra/build/srccheck/presubmit"
	"go.chromium.org/infra/build/srccheck/presubmit/canned"
)

// Checker runs the policy presubmit checks.
type Checker struct {
	// Cache holds files loaded during the run. It must not be nil.
	Cache *Cache

	// Syntax validates changed policy templates. nil skips the syntax check.
	Syntax TemplateChecker
}

// New returns a checker with a fresh cache.
func New(syntax TemplateChecker) *Checker {
	return &Checker{Cache: NewCache(), Syntax: syntax}
}

// Checks returns the checks in the order they run.
func (c *Checker) Checks() []presubmit.Check {
	return []presubmit.Check{
		{Name: "CheckPolicyTestCases", Run: c.CheckPolicyTestCases},
		{Name: "CheckPolicyHistograms", Run: c.CheckPolicyHistograms},
		{Name: "CheckPolicyAtomicGroupsHistograms", Run: c.CheckPolicyAtomicGroupsHistograms},
		{Name: "CheckMessages", Run: c.CheckMessages},
		{Name: "CheckMissingPlaceholders", Run: c.CheckMissingPlaceholders},
		{Name: "CheckDevicePolicyProtos", Run: c.CheckDevicePolicyProtos},
		{Name: "CheckPolicyTemplatesSyntax", Run: c.CheckPolicyTemplatesSyntax},
	}
}

// CheckPolicyTestCases verifies that all defined policies have a test case.
func (c *Checker) CheckPolicyTestCases(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if !in.Change.Touches(TestCasesPath, PoliciesYAMLPath, PresubmitPath) {
		return nil, nil
	}
	root := in.Change.RepositoryRoot()
	tested, err := c.Cache.TestedPolicies(root)
	if err != nil {
		return nil, err
	}
	registry, err := c.Cache.Registry(root)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	for _, name := range registry.Policies {
		if name != "" {
			names[name] = true
		}
	}
	var results []presubmit.Result
	for _, name := range sortedNames(names) {
		if !tested[name] {
			results = append(results, presubmit.NewError(fmt.Sprintf(
				"Policy '%s' was added to policy_templates.json but not "+
					"to src/chrome/test/data/policy/policy_test_cases.json. "+
					"Please update both files.", name)))
		}
	}
	for _, name := range sortedNames(tested) {
		if !names[name] {
			results = append(results, presubmit.NewError(fmt.Sprintf(
				"Policy '%s' is tested by "+
					"src/chrome/test/data/policy/policy_test_cases.json but is not"+
					" defined in policy_templates.json. Please update both files.", name)))
		}
	}
	results = append(results, canned.CheckChangeHasNoTabs(in, func(f *presubmit.AffectedFile) bool {
		return f.LocalPath() == TestCasesPath
	})...)
	return results, nil
}

const regenerateEnums = "To regenerate the policy part of enums.xml, run:\n" +
	"python tools/metrics/histograms/update_policies.py"

// CheckPolicyHistograms verifies that the set of policy ids in the
// registry equals the set of ids in the EnterprisePolicies enum.
func (c *Checker) CheckPolicyHistograms(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if !in.Change.Touches(HistogramsPath, PoliciesYAMLPath, PresubmitPath) {
		return nil, nil
	}
	root := in.Change.RepositoryRoot()
	enum, err := c.Cache.HistogramEnum(root, policiesEnum)
	if err != nil {
		return nil, err
	}
	registry, err := c.Cache.Registry(root)
	if err != nil {
		return nil, err
	}
	return histogramResults(registry.Policies, enum,
		"Policy '%s' (id %d) was added to "+
			"policy_templates.json but not to "+
			"src/tools/metrics/histograms/enums.xml. Please update "+
			"both files. "+regenerateEnums,
		"Policy id %d was found in "+
			"src/tools/metrics/histograms/enums.xml, but no policy with "+
			"this id exists in policy_templates.json. "+regenerateEnums), nil
}

// CheckPolicyAtomicGroupsHistograms verifies that the set of atomic group
// ids in the registry equals the set of ids in the PolicyAtomicGroups enum.
func (c *Checker) CheckPolicyAtomicGroupsHistograms(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if !in.Change.Touches(HistogramsPath, PoliciesYAMLPath, PresubmitPath) {
		return nil, nil
	}
	root := in.Change.RepositoryRoot()
	enum, err := c.Cache.HistogramEnum(root, atomicGroupsEnum)
	if err != nil {
		return nil, err
	}
	registry, err := c.Cache.Registry(root)
	if err != nil {
		return nil, err
	}
	return histogramResults(registry.AtomicGroups, enum,
		"Policy atomic group '%s' (id %d) was added to "+
			"policy_templates.json but not to "+
			"src/tools/metrics/histograms/enums.xml. Please update "+
			"both files. "+regenerateEnums,
		"Policy atomic group id %d was found in "+
			"src/tools/metrics/histograms/enums.xml, but no policy with "+
			"this id exists in policy_templates.json. "+regenerateEnums), nil
}

// histogramResults reports one error per id in the symmetric difference
// of the live registry ids and the enum ids.
func histogramResults(names map[int]string, enum HistogramEnum, missingFormat, extraFormat string) []presubmit.Result {
	missing, extra := diffIDs(liveIDs(names), enum.IDs())
	var results []presubmit.Result
	for _, id := range missing {
		results = append(results, presubmit.NewError(fmt.Sprintf(missingFormat, names[id], id)))
	}
	for _, id := range extra {
		results = append(results, presubmit.NewError(fmt.Sprintf(extraFormat, id)))
	}
	return results
}

// CheckMessages verifies that messages.yaml has the format
// {[key: string]: {text: string, desc: string}}.
func (c *Checker) CheckMessages(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if !in.Change.Touches(MessagesPath, PresubmitPath) {
		return nil, nil
	}
	messages, err := c.Cache.YAMLNode(in.Change.RepositoryRoot(), MessagesPath)
	if err != nil {
		return nil, err
	}
	if messages.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: top level must be a mapping, got %s", MessagesPath, messages.Tag)
	}
	return checkMessages(messages), nil
}

func checkMessages(messages *yaml.Node) []presubmit.Result {
	var results []presubmit.Result
	for _, p := range mappingPairs(messages) {
		k, v := p.key, p.value
		if k.Kind != yaml.ScalarNode || k.ShortTag() != "!!str" {
			results = append(results, presubmit.NewError(
				fmt.Sprintf("Each message key must be a string, invalid key %s", k.Value)))
			continue
		}
		message := k.Value
		if v.Kind != yaml.MappingNode {
			results = append(results, presubmit.NewError(
				fmt.Sprintf("Each message must be a dictionary, invalid message %s", message)))
			continue
		}
		pairs := mappingPairs(v)
		fields := mappingFields(v)
		for _, key := range []string{"desc", "text"} {
			f, ok := fields[key]
			if !ok || f.Kind != yaml.ScalarNode || f.ShortTag() != "!!str" {
				results = append(results, presubmit.NewError(
					fmt.Sprintf("'%s' string key missing in message %s", key, message)))
			}
		}
		for _, vp := range pairs {
			if vkey := vp.key.Value; vkey != "desc" && vkey != "text" {
				results = append(results, presubmit.NewError(
					fmt.Sprintf("In message %s: Unknown key: %s", message, vkey)))
			}
		}
	}
	return results
}

// yamlPair is a key and value of a mapping, with aliases resolved.
type yamlPair struct {
	key, value *yaml.Node
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mappingPairs returns pairs of mapping n in order, expanding "<<" merge
// keys. Explicit keys override merged ones, and earlier merge sources
// override later ones.
func mappingPairs(n *yaml.Node) []yamlPair {
	n = resolveAlias(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	var pairs, merged []yamlPair
	seen := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := resolveAlias(n.Content[i]), resolveAlias(n.Content[i+1])
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			srcs := []*yaml.Node{v}
			if v.Kind == yaml.SequenceNode {
				srcs = v.Content
			}
			for _, src := range srcs {
				merged = append(merged, mappingPairs(src)...)
			}
			continue
		}
		seen[k.Value] = true
		pairs = append(pairs, yamlPair{key: k, value: v})
	}
	for _, p := range merged {
		if seen[p.key.Value] {
			continue
		}
		seen[p.key.Value] = true
		pairs = append(pairs, p)
	}
	return pairs
}

func mappingFields(n *yaml.Node) map[string]*yaml.Node {
	m := make(map[string]*yaml.Node)
	for _, p := range mappingPairs(n) {
		m[p.key.Value] = p.value
	}
	return m
}

// CheckMissingPlaceholders verifies that captions and descriptions of
// changed policies and all messages have well-formed placeholders.
func (c *Checker) CheckMissingPlaceholders(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if !in.Change.Touches(MessagesPath, PolicyDefinitionsPath, PresubmitPath) {
		return nil, nil
	}
	changes, err := c.Cache.PolicyChanges(in.Change)
	if err != nil {
		return nil, err
	}
	messages, err := c.Cache.YAMLNode(in.Change.RepositoryRoot(), MessagesPath)
	if err != nil {
		return nil, err
	}
	var texts []string
	for _, pc := range changes {
		if pc.New == nil {
			continue
		}
		for _, key := range []string{"desc", "text"} {
			if v, ok := pc.New[key]; ok {
				texts = append(texts, fmt.Sprint(v))
			}
		}
	}
	for _, p := range mappingPairs(messages) {
		fields := mappingFields(p.value)
		for _, key := range []string{"desc", "text"} {
			if f, ok := fields[key]; ok {
				texts = append(texts, f.Value)
			}
		}
	}
	var results []presubmit.Result
	for _, text := range texts {
		results = append(results, checkPlaceholders(text)...)
	}
	return results, nil
}

// CheckDevicePolicyProtos verifies that device policy proto paths are
// unique across the primary and legacy maps and that every field of a
// mapped path appears in chrome_device_policy.proto.
//
// The field check is a substring match against the proto text, so a field
// name that occurs anywhere in the file passes.
func (c *Checker) CheckDevicePolicyProtos(ctx context.Context, in *presubmit.Input) ([]presubmit.Result, error) {
	if !in.Change.Touches(DevicePolicyProtoPath, DevicePolicyProtoMapPath, LegacyDevicePolicyProtoMapPath, PresubmitPath) {
		return nil, nil
	}
	root := in.Change.RepositoryRoot()
	protoMap, err := c.Cache.ProtoMap(root)
	if err != nil {
		return nil, err
	}
	legacyProtoMap, err := c.Cache.LegacyProtoMap(root)
	if err != nil {
		return nil, err
	}
	protos, err := c.Cache.DeviceProto(root)
	if err != nil {
		return nil, err
	}
	return checkDevicePolicyProtos(protoMap, legacyProtoMap, protos), nil
}

func checkDevicePolicyProtos(protoMap map[string]string, legacyProtoMap map[string][]string, protos string) []presubmit.Result {
	var results []presubmit.Result
	policies := sortedKeys(protoMap)
	protoPaths := make(map[string]bool)
	for _, policy := range policies {
		protoPath := protoMap[policy]
		if protoPaths[protoPath] {
			results = append(results, presubmit.NewError(fmt.Sprintf(
				"Duplicate proto path %s in %s. "+
					"Did you set the right path for your device policy?",
				protoPath, path.Base(DevicePolicyProtoMapPath))))
		}
		protoPaths[protoPath] = true
	}
	for _, policy := range sortedKeys(legacyProtoMap) {
		for _, protoPath := range legacyProtoMap[policy] {
			if protoPath == "" {
				continue
			}
			if protoPaths[protoPath] {
				results = append(results, presubmit.NewError(fmt.Sprintf(
					"Duplicate proto path %s in "+
						"legacy_device_policy_proto_map.yaml."+
						"Did you set the right path for your device policy?", protoPath)))
			}
			protoPaths[protoPath] = true
		}
	}
	for _, policy := range policies {
		for _, field := range strings.Split(protoMap[policy], ".") {
			if !strings.Contains(protos, field) {
				results = append(results, presubmit.NewError(fmt.Sprintf(
					"Policy '%s': Expected field '%s' not found in "+
						"chrome_device_policy.proto.", policy, field)))
			}
		}
	}
	return results
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedNames(m map[string]bool) []string {
	return sortedKeys(m)
}
