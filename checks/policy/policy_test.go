// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/srccheck/presubmit"
)

func setupRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		fullpath := filepath.Join(root, filepath.FromSlash(name))
		err := os.MkdirAll(filepath.Dir(fullpath), 0755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(fullpath, []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func input(root string, files ...*presubmit.AffectedFile) *presubmit.Input {
	return &presubmit.Input{
		Change: &presubmit.Change{Root: root, Files: files},
		Dir:    Dir,
	}
}

func modified(p string) *presubmit.AffectedFile {
	return &presubmit.AffectedFile{Path: p, Action: presubmit.Modified}
}

const policiesYAML = `policies:
  1: HomepageLocation
  2: HomepageIsNewTabPage
  4: ''
atomic_groups:
  1: Homepage
  2: ''
`

func enumsXML(policyIDs, groupIDs []string) string {
	var sb strings.Builder
	sb.WriteString("<histogram-configuration>\n<enums>\n")
	sb.WriteString(`<enum name="EnterprisePolicies">` + "\n")
	for _, id := range policyIDs {
		sb.WriteString(`  <int value="` + id + `" label="p` + id + `"/>` + "\n")
	}
	sb.WriteString("</enum>\n")
	sb.WriteString(`<enum name="PolicyAtomicGroups">` + "\n")
	for _, id := range groupIDs {
		sb.WriteString(`  <int value="` + id + `" label="g` + id + `"/>` + "\n")
	}
	sb.WriteString("</enum>\n</enums>\n</histogram-configuration>\n")
	return sb.String()
}

func TestCheckPolicyHistograms(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name string
		ids  []string
		want []presubmit.Result
	}{
		{
			name: "consistent",
			ids:  []string{"1", "2"},
		},
		{
			name: "missing-and-extra",
			ids:  []string{"1", "3"},
			want: []presubmit.Result{
				presubmit.NewError("Policy 'HomepageIsNewTabPage' (id 2) was added to " +
					"policy_templates.json but not to " +
					"src/tools/metrics/histograms/enums.xml. Please update " +
					"both files. To regenerate the policy part of enums.xml, run:\n" +
					"python tools/metrics/histograms/update_policies.py"),
				presubmit.NewError("Policy id 3 was found in " +
					"src/tools/metrics/histograms/enums.xml, but no policy with " +
					"this id exists in policy_templates.json. To regenerate the " +
					"policy part of enums.xml, run:\n" +
					"python tools/metrics/histograms/update_policies.py"),
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root := setupRepo(t, map[string]string{
				PoliciesYAMLPath: policiesYAML,
				HistogramsPath:   enumsXML(tc.ids, []string{"1"}),
			})
			c := New(nil)
			got, err := c.CheckPolicyHistograms(ctx, input(root, modified(HistogramsPath)))
			if err != nil {
				t.Fatalf("CheckPolicyHistograms(...)=_, %v; want nil error", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("CheckPolicyHistograms diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestCheckPolicyAtomicGroupsHistograms(t *testing.T) {
	ctx := context.Background()
	root := setupRepo(t, map[string]string{
		PoliciesYAMLPath: policiesYAML,
		HistogramsPath:   enumsXML([]string{"1", "2"}, []string{"2"}),
	})
	c := New(nil)
	got, err := c.CheckPolicyAtomicGroupsHistograms(ctx, input(root, modified(PoliciesYAMLPath)))
	if err != nil {
		t.Fatalf("CheckPolicyAtomicGroupsHistograms(...)=_, %v; want nil error", err)
	}
	if len(got) != 2 {
		t.Fatalf("CheckPolicyAtomicGroupsHistograms(...)=%v; want 2 results", got)
	}
	if !strings.HasPrefix(got[0].Message, "Policy atomic group 'Homepage' (id 1) was added") {
		t.Errorf("got[0]=%q; want missing Homepage", got[0].Message)
	}
	if !strings.HasPrefix(got[1].Message, "Policy atomic group id 2 was found") {
		t.Errorf("got[1]=%q; want extra id 2", got[1].Message)
	}
}

func TestChecksSkipUnwatchedChange(t *testing.T) {
	ctx := context.Background()
	// No files exist; a check that ran would fail to load.
	root := t.TempDir()
	in := input(root, modified("components/autofill/core/foo.cc"))
	c := New(fakeSyntax{})
	results := presubmit.Run(ctx, in, c.Checks())
	if len(results) != 0 {
		t.Errorf("Run(unwatched change)=%v; want no results", results)
	}
}

func TestMalformedInputFailsClosed(t *testing.T) {
	ctx := context.Background()
	root := setupRepo(t, map[string]string{
		PoliciesYAMLPath: policiesYAML,
		HistogramsPath:   "<histogram-configuration><enums><enum name=",
	})
	in := input(root, modified(HistogramsPath))
	c := New(nil)
	results := presubmit.Run(ctx, in, []presubmit.Check{
		{Name: "CheckPolicyHistograms", Run: c.CheckPolicyHistograms},
	})
	if len(results) != 1 || results[0].Severity != presubmit.Error {
		t.Fatalf("Run(malformed enums.xml)=%v; want exactly one error", results)
	}
	if !strings.HasPrefix(results[0].Message, "CheckPolicyHistograms: unable to run the check:") {
		t.Errorf("message=%q; want generic failure", results[0].Message)
	}
}

func TestCheckPolicyTestCases(t *testing.T) {
	ctx := context.Background()
	root := setupRepo(t, map[string]string{
		PoliciesYAMLPath: policiesYAML,
		TestCasesPath: `{
  "-- Template --": {},
  "HomepageLocation": {},
  "HomepageLocation.empty": {},
  "RemovedPolicy": {}
}`,
	})
	c := New(nil)
	got, err := c.CheckPolicyTestCases(ctx, input(root, &presubmit.AffectedFile{
		Path:     TestCasesPath,
		Action:   presubmit.Modified,
		NewLines: []string{"{", "\t\"RemovedPolicy\": {}", "}"},
		OldLines: []string{"{", "}"},
	}))
	if err != nil {
		t.Fatalf("CheckPolicyTestCases(...)=_, %v; want nil error", err)
	}
	want := []presubmit.Result{
		presubmit.NewError("Policy 'HomepageIsNewTabPage' was added to policy_templates.json but not " +
			"to src/chrome/test/data/policy/policy_test_cases.json. Please update both files."),
		presubmit.NewError("Policy 'RemovedPolicy' is tested by " +
			"src/chrome/test/data/policy/policy_test_cases.json but is not" +
			" defined in policy_templates.json. Please update both files."),
		presubmit.NewError("Found a tab character in:", TestCasesPath+":2"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CheckPolicyTestCases diff -want +got:\n%s", diff)
	}
}

func TestCheckMessages(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name     string
		messages string
		want     []presubmit.Result
	}{
		{
			name: "valid",
			messages: `doc_feature:
  desc: Feature
  text: Supported features
`,
		},
		{
			name: "missing-text",
			messages: `doc_feature:
  desc: Feature
`,
			want: []presubmit.Result{
				presubmit.NewError("'text' string key missing in message doc_feature"),
			},
		},
		{
			name: "non-string-key",
			messages: `42:
  desc: Feature
  text: x
`,
			want: []presubmit.Result{
				presubmit.NewError("Each message key must be a string, invalid key 42"),
			},
		},
		{
			name: "not-a-dict",
			messages: `doc_feature: just text
`,
			want: []presubmit.Result{
				presubmit.NewError("Each message must be a dictionary, invalid message doc_feature"),
			},
		},
		{
			name: "unknown-key-and-non-string-desc",
			messages: `doc_feature:
  desc: [a]
  text: x
  extra: y
`,
			want: []presubmit.Result{
				presubmit.NewError("'desc' string key missing in message doc_feature"),
				presubmit.NewError("In message doc_feature: Unknown key: extra"),
			},
		},
		{
			name: "aliases-and-merges",
			messages: `base: &b
  desc: Feature
  text: Supported features
alias: *b
merged:
  <<: *b
override:
  <<: *b
  text: Other features
  extra: y
`,
			want: []presubmit.Result{
				presubmit.NewError("In message override: Unknown key: extra"),
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root := setupRepo(t, map[string]string{MessagesPath: tc.messages})
			c := New(nil)
			got, err := c.CheckMessages(ctx, input(root, modified(MessagesPath)))
			if err != nil {
				t.Fatalf("CheckMessages(...)=_, %v; want nil error", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("CheckMessages diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestCheckMissingPlaceholders(t *testing.T) {
	ctx := context.Background()
	root := setupRepo(t, map[string]string{
		MessagesPath: `ok_message:
  desc: Costs <ph name="PRICE">$1<ex>$5</ex></ph>
  text: fine
dollar_message:
  desc: a description
  text: Costs $1
`,
	})
	c := New(nil)
	got, err := c.CheckMissingPlaceholders(ctx, input(root,
		&presubmit.AffectedFile{
			Path:   PolicyDefinitionsPath + "/Homepage/HomepageLocation.yaml",
			Action: presubmit.Added,
			NewLines: []string{
				"caption: Home page",
				"desc: Broken <ph name=\"X\">placeholder",
			},
		},
		&presubmit.AffectedFile{
			Path:     PolicyDefinitionsPath + "/Homepage/.group.details.yaml",
			Action:   presubmit.Added,
			NewLines: []string{"desc: $ ignored"},
		},
	))
	if err != nil {
		t.Fatalf("CheckMissingPlaceholders(...)=_, %v; want nil error", err)
	}
	if len(got) != 2 {
		t.Fatalf("CheckMissingPlaceholders(...)=%v; want 2 results", got)
	}
	if got[0].Severity != presubmit.Error || !strings.Contains(got[0].Message, "Broken <ph name=\"X\">placeholder") {
		t.Errorf("got[0]=%v; want error for malformed placeholder", got[0])
	}
	want := presubmit.NewPromptWarning("Character '$' found outside of a placeholder in 'Costs $1'. Should it be in a placeholder ?")
	if diff := cmp.Diff(want, got[1]); diff != "" {
		t.Errorf("got[1] diff -want +got:\n%s", diff)
	}
}

func TestCheckPlaceholders(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		want presubmit.Severity
		n    int
	}{
		{name: "plain", text: "Home page"},
		{name: "placeholder", text: `Costs <ph name="PRICE">$1<ex>$5</ex></ph>`},
		{name: "dollar", text: "Costs $1", want: presubmit.PromptWarning, n: 1},
		{name: "unclosed", text: `<ph name="X">a`, want: presubmit.Error, n: 1},
		{name: "junk-after-msg", text: "a</msg><msg>$b", want: presubmit.Error, n: 1},
		{name: "text-after-msg", text: "a</msg>b<msg>", want: presubmit.Error, n: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := checkPlaceholders(tc.text)
			if len(got) != tc.n {
				t.Fatalf("checkPlaceholders(%q)=%v; want %d results", tc.text, got, tc.n)
			}
			for _, r := range got {
				if r.Severity != tc.want {
					t.Errorf("checkPlaceholders(%q)=%v; want severity %v", tc.text, r, tc.want)
				}
			}
		})
	}
}

func TestCheckMissingPlaceholdersAlias(t *testing.T) {
	ctx := context.Background()
	root := setupRepo(t, map[string]string{
		MessagesPath: `base: &b
  desc: a description
  text: Costs $1
alias: *b
`,
	})
	c := New(nil)
	got, err := c.CheckMissingPlaceholders(ctx, input(root, modified(MessagesPath)))
	if err != nil {
		t.Fatalf("CheckMissingPlaceholders(...)=_, %v; want nil error", err)
	}
	w := presubmit.NewPromptWarning("Character '$' found outside of a placeholder in 'Costs $1'. Should it be in a placeholder ?")
	want := []presubmit.Result{w, w}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CheckMissingPlaceholders diff -want +got:\n%s", diff)
	}
}

func TestPolicyChangesSkipsNonDefinitions(t *testing.T) {
	ctx := context.Background()
	root := setupRepo(t, map[string]string{
		MessagesPath: `doc_feature:
  desc: Feature
  text: Supported features
`,
	})
	owners := &presubmit.AffectedFile{
		Path:     PolicyDefinitionsPath + "/Network/OWNERS",
		Action:   presubmit.Modified,
		OldLines: []string{"foo@chromium.org"},
		NewLines: []string{"file://components/policy/OWNERS"},
	}
	policy := &presubmit.AffectedFile{
		Path:     PolicyDefinitionsPath + "/Network/ProxyMode.yaml",
		Action:   presubmit.Added,
		NewLines: []string{"caption: Proxy mode", "desc: Choose proxy"},
	}
	deletedOwners := &presubmit.AffectedFile{
		Path:     PolicyDefinitionsPath + "/Proxy/OWNERS",
		Action:   presubmit.Deleted,
		OldLines: []string{"foo@chromium.org"},
	}
	c := New(nil)
	in := input(root, owners, deletedOwners, policy)
	changes, err := c.Cache.PolicyChanges(in.Change)
	if err != nil {
		t.Fatalf("PolicyChanges(...)=_, %v; want nil error", err)
	}
	want := []PolicyChange{{
		Policy: "ProxyMode",
		New:    map[string]any{"caption": "Proxy mode", "desc": "Choose proxy"},
	}}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("PolicyChanges diff -want +got:\n%s", diff)
	}
	got, err := c.CheckMissingPlaceholders(ctx, in)
	if err != nil || len(got) != 0 {
		t.Errorf("CheckMissingPlaceholders(...)=%v, %v; want no results", got, err)
	}

	broken := &presubmit.AffectedFile{
		Path:     PolicyDefinitionsPath + "/Network/Broken.yaml",
		Action:   presubmit.Added,
		NewLines: []string{"desc: [unclosed"},
	}
	_, err = New(nil).Cache.PolicyChanges(input(root, broken).Change)
	if err == nil {
		t.Errorf("PolicyChanges(broken yaml)=_, nil; want error")
	}
}

func TestCheckDevicePolicyProtos(t *testing.T) {
	ctx := context.Background()
	proto := `message ChromeDeviceSettingsProto {
  optional DeviceGuestModeEnabledProto guest_mode_enabled = 1;
  optional AllowNewUsersProto allow_new_users = 2;
}
message DeviceGuestModeEnabledProto {
  optional bool guest_mode_enabled = 1;
}
`
	for _, tc := range []struct {
		name      string
		protoMap  string
		legacyMap string
		want      []presubmit.Result
	}{
		{
			name:      "valid",
			protoMap:  "DeviceGuestModeEnabled: guest_mode_enabled.guest_mode_enabled\n",
			legacyMap: "DeviceAllowNewUsers: [allow_new_users.allow_new_users, null]\n",
		},
		{
			name:      "duplicate-in-legacy",
			protoMap:  "DeviceGuestModeEnabled: guest_mode_enabled.guest_mode_enabled\n",
			legacyMap: "OldGuestMode: [guest_mode_enabled.guest_mode_enabled]\n",
			want: []presubmit.Result{
				presubmit.NewError("Duplicate proto path guest_mode_enabled.guest_mode_enabled in " +
					"legacy_device_policy_proto_map.yaml.Did you set the right path for your device policy?"),
			},
		},
		{
			name: "duplicate-in-primary",
			protoMap: "A: allow_new_users.allow_new_users\n" +
				"B: allow_new_users.allow_new_users\n",
			legacyMap: "{}\n",
			want: []presubmit.Result{
				presubmit.NewError("Duplicate proto path allow_new_users.allow_new_users in " +
					"device_policy_proto_map.yaml. Did you set the right path for your device policy?"),
			},
		},
		{
			name:      "missing-field",
			protoMap:  "DeviceFoo: device_foo.frobnicate\n",
			legacyMap: "{}\n",
			want: []presubmit.Result{
				presubmit.NewError("Policy 'DeviceFoo': Expected field 'device_foo' not found in chrome_device_policy.proto."),
				presubmit.NewError("Policy 'DeviceFoo': Expected field 'frobnicate' not found in chrome_device_policy.proto."),
			},
		},
		{
			// Substring match: "mode" occurs in the proto text.
			name:      "substring-passes",
			protoMap:  "DeviceMode: mode\n",
			legacyMap: "{}\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root := setupRepo(t, map[string]string{
				DevicePolicyProtoPath:          proto,
				DevicePolicyProtoMapPath:       tc.protoMap,
				LegacyDevicePolicyProtoMapPath: tc.legacyMap,
			})
			c := New(nil)
			got, err := c.CheckDevicePolicyProtos(ctx, input(root, modified(DevicePolicyProtoMapPath)))
			if err != nil {
				t.Fatalf("CheckDevicePolicyProtos(...)=_, %v; want nil error", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("CheckDevicePolicyProtos diff -want +got:\n%s", diff)
			}
		})
	}
}

type fakeSyntax struct {
	errs, warnings []string
	req            *SyntaxRequest
}

func (f fakeSyntax) Check(ctx context.Context, req *SyntaxRequest) ([]string, []string, error) {
	if f.req != nil {
		*f.req = *req
	}
	return f.errs, f.warnings, nil
}

func TestCheckPolicyTemplatesSyntax(t *testing.T) {
	ctx := context.Background()
	files := map[string]string{
		PolicyDefinitionsPath + "/Homepage/HomepageLocation.yaml": "caption: Home page\n",
		VersionPath: "MAJOR=120\nMINOR=0\n",
	}
	change := func(root string) *presubmit.Input {
		in := input(root, &presubmit.AffectedFile{
			Path:     PolicyDefinitionsPath + "/Homepage/HomepageLocation.yaml",
			Action:   presubmit.Modified,
			OldLines: []string{"caption: Home"},
			NewLines: []string{"caption: Home page"},
		})
		in.Change.Tags = map[string]string{"BYPASS_POLICY_COMPATIBILITY_CHECK": "urgent"}
		return in
	}

	t.Run("errors", func(t *testing.T) {
		root := setupRepo(t, files)
		var req SyntaxRequest
		c := New(fakeSyntax{errs: []string{"bad type"}, warnings: []string{"odd caption"}, req: &req})
		got, err := c.CheckPolicyTemplatesSyntax(ctx, change(root))
		if err != nil {
			t.Fatalf("CheckPolicyTemplatesSyntax(...)=_, %v; want nil error", err)
		}
		want := []presubmit.Result{
			presubmit.NewError("Syntax error(s) in file:", filepath.Join(root, filepath.FromSlash(TemplatesPath))).
				WithLongText("bad type\nodd caption"),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("CheckPolicyTemplatesSyntax diff -want +got:\n%s", diff)
		}
		if req.CurrentVersion != 120 || !req.SkipCompatibilityCheck {
			t.Errorf("request version=%d skip=%t; want 120 true", req.CurrentVersion, req.SkipCompatibilityCheck)
		}
		wantChanges := []PolicyChange{{
			Policy: "HomepageLocation",
			Old:    map[string]any{"caption": "Home"},
			New:    map[string]any{"caption": "Home page"},
		}}
		if diff := cmp.Diff(wantChanges, req.Changes); diff != "" {
			t.Errorf("request changes diff -want +got:\n%s", diff)
		}
	})

	t.Run("warnings", func(t *testing.T) {
		root := setupRepo(t, files)
		c := New(fakeSyntax{warnings: []string{"odd caption"}})
		got, err := c.CheckPolicyTemplatesSyntax(ctx, change(root))
		if err != nil {
			t.Fatalf("CheckPolicyTemplatesSyntax(...)=_, %v; want nil error", err)
		}
		if len(got) != 1 || got[0].Severity != presubmit.PromptWarning || got[0].LongText != "odd caption" {
			t.Errorf("CheckPolicyTemplatesSyntax(...)=%v; want one warning", got)
		}
	})

	t.Run("unloadable", func(t *testing.T) {
		root := setupRepo(t, map[string]string{
			PolicyDefinitionsPath + "/Homepage/HomepageLocation.yaml": "caption: [unterminated\n",
		})
		c := New(fakeSyntax{})
		got, err := c.CheckPolicyTemplatesSyntax(ctx, change(root))
		if err != nil {
			t.Fatalf("CheckPolicyTemplatesSyntax(...)=_, %v; want nil error", err)
		}
		want := []presubmit.Result{presubmit.NewError("Unable to load the policy templates.")}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("CheckPolicyTemplatesSyntax diff -want +got:\n%s", diff)
		}
	})
}

func TestCacheLoadsOnce(t *testing.T) {
	root := setupRepo(t, map[string]string{PoliciesYAMLPath: policiesYAML})
	c := NewCache()
	r1, err := c.Registry(root)
	if err != nil {
		t.Fatalf("Registry(root)=_, %v; want nil error", err)
	}
	err = os.WriteFile(filepath.Join(root, filepath.FromSlash(PoliciesYAMLPath)), []byte("policies:\n  9: Other\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.Registry(root)
	if err != nil {
		t.Fatalf("Registry(root)=_, %v; want nil error", err)
	}
	if r1 != r2 {
		t.Errorf("Registry(root) loaded twice")
	}
	want := map[int]bool{1: true, 2: true}
	if diff := cmp.Diff(want, r2.PolicyIDs()); diff != "" {
		t.Errorf("PolicyIDs diff -want +got:\n%s", diff)
	}
}
