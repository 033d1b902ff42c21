// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package policy

// Repository-relative paths of files the policy presubmit reads or watches.
const (
	Dir                            = "components/policy/resources"
	TestCasesPath                  = "chrome/test/data/policy/policy_test_cases.json"
	PresubmitPath                  = "components/policy/resources/PRESUBMIT.py"
	TemplatesPath                  = "components/policy/resources/templates"
	MessagesPath                   = TemplatesPath + "/messages.yaml"
	PolicyDefinitionsPath          = TemplatesPath + "/policy_definitions"
	PoliciesYAMLPath               = TemplatesPath + "/policies.yaml"
	HistogramsPath                 = "tools/metrics/histograms/enums.xml"
	DevicePolicyProtoPath          = "components/policy/proto/chrome_device_policy.proto"
	DevicePolicyProtoMapPath       = TemplatesPath + "/device_policy_proto_map.yaml"
	LegacyDevicePolicyProtoMapPath = TemplatesPath + "/legacy_device_policy_proto_map.yaml"
	SyntaxCheckPath                = "components/policy/tools/syntax_check_policy_template_json.py"
	VersionPath                    = "chrome/VERSION"
)

const (
	policiesEnum     = "EnterprisePolicies"
	atomicGroupsEnum = "PolicyAtomicGroups"

	bypassCompatibilityTag = "BYPASS_POLICY_COMPATIBILITY_CHECK"
)
