// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package policy

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"go.chromium.org/infra/build/srccheck/presubmit"
)

// Registry is the policy registry in policies.yaml.
// Entries with an empty name are deleted ids and are ignored.
type Registry struct {
	Policies     map[int]string `yaml:"policies"`
	AtomicGroups map[int]string `yaml:"atomic_groups"`
}

// PolicyIDs returns ids of live policies.
func (r *Registry) PolicyIDs() map[int]bool {
	return liveIDs(r.Policies)
}

// AtomicGroupIDs returns ids of live atomic groups.
func (r *Registry) AtomicGroupIDs() map[int]bool {
	return liveIDs(r.AtomicGroups)
}

func liveIDs(m map[int]string) map[int]bool {
	ids := make(map[int]bool)
	for id, name := range m {
		if name != "" {
			ids[id] = true
		}
	}
	return ids
}

// HistogramEnum maps enum value to its label.
type HistogramEnum map[int]string

// IDs returns the set of enum values.
func (e HistogramEnum) IDs() map[int]bool {
	ids := make(map[int]bool, len(e))
	for id := range e {
		ids[id] = true
	}
	return ids
}

// PolicyChange is a policy definition changed by the change.
// Old is nil for added policies or unparsable old contents.
// New is nil for deleted policies.
type PolicyChange struct {
	Policy string
	Old    map[string]any
	New    map[string]any
}

// Cache memoizes files loaded during one presubmit run.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	v    any
	err  error
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

func (c *Cache) get(key string, load func() (any, error)) (any, error) {
	c.mu.Lock()
	ent, ok := c.entries[key]
	if !ok {
		ent = &cacheEntry{}
		c.entries[key] = ent
	}
	c.mu.Unlock()
	ent.once.Do(func() {
		log.Debugf("load %s", key)
		ent.v, ent.err = load()
	})
	return ent.v, ent.err
}

func readRepoFile(root, p string) ([]byte, error) {
	return os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
}

// Registry loads policies.yaml.
func (c *Cache) Registry(root string) (*Registry, error) {
	v, err := c.get("registry:"+root, func() (any, error) {
		buf, err := readRepoFile(root, PoliciesYAMLPath)
		if err != nil {
			return nil, err
		}
		r := &Registry{}
		if err := yaml.Unmarshal(buf, r); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", PoliciesYAMLPath, err)
		}
		if r.Policies == nil {
			return nil, fmt.Errorf("no policies in %s", PoliciesYAMLPath)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registry), nil
}

type histogramConfiguration struct {
	XMLName xml.Name `xml:"histogram-configuration"`
	Enums   []struct {
		Enum []struct {
			Name string `xml:"name,attr"`
			Ints []struct {
				Value string `xml:"value,attr"`
				Label string `xml:"label,attr"`
			} `xml:"int"`
		} `xml:"enum"`
	} `xml:"enums"`
}

// HistogramEnums loads enums.xml, returning enums by name.
func (c *Cache) HistogramEnums(root string) (map[string]HistogramEnum, error) {
	v, err := c.get("histograms:"+root, func() (any, error) {
		buf, err := readRepoFile(root, HistogramsPath)
		if err != nil {
			return nil, err
		}
		var hc histogramConfiguration
		if err := xml.Unmarshal(buf, &hc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", HistogramsPath, err)
		}
		if len(hc.Enums) == 0 {
			return nil, fmt.Errorf("no <enums> in %s", HistogramsPath)
		}
		enums := make(map[string]HistogramEnum)
		for _, e := range hc.Enums[0].Enum {
			he := make(HistogramEnum)
			for _, i := range e.Ints {
				id, err := strconv.Atoi(strings.TrimSpace(i.Value))
				if err != nil {
					return nil, fmt.Errorf("bad value %q in enum %s: %w", i.Value, e.Name, err)
				}
				he[id] = i.Label
			}
			enums[e.Name] = he
		}
		return enums, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]HistogramEnum), nil
}

// HistogramEnum returns the named enum in enums.xml.
func (c *Cache) HistogramEnum(root, name string) (HistogramEnum, error) {
	enums, err := c.HistogramEnums(root)
	if err != nil {
		return nil, err
	}
	e, ok := enums[name]
	if !ok {
		return nil, fmt.Errorf("enum %s not found in %s", name, HistogramsPath)
	}
	return e, nil
}

// TestedPolicies loads names of policies tested in policy_test_cases.json.
// A test name "Policy.variant" tests "Policy"; names starting with "--"
// are comments.
func (c *Cache) TestedPolicies(root string) (map[string]bool, error) {
	v, err := c.get("testcases:"+root, func() (any, error) {
		buf, err := readRepoFile(root, TestCasesPath)
		if err != nil {
			return nil, err
		}
		var cases map[string]json.RawMessage
		if err := json.Unmarshal(buf, &cases); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", TestCasesPath, err)
		}
		tested := make(map[string]bool)
		for name := range cases {
			if strings.HasPrefix(name, "--") {
				continue
			}
			p, _, _ := strings.Cut(name, ".")
			tested[p] = true
		}
		return tested, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]bool), nil
}

// YAMLNode loads a YAML file as a node tree, for checks that need key
// types or ordering.
func (c *Cache) YAMLNode(root, p string) (*yaml.Node, error) {
	v, err := c.get("yamlnode:"+root+":"+p, func() (any, error) {
		buf, err := readRepoFile(root, p)
		if err != nil {
			return nil, err
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(buf, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			return nil, fmt.Errorf("empty yaml document %s", p)
		}
		return doc.Content[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*yaml.Node), nil
}

// ProtoMap loads device_policy_proto_map.yaml: policy name -> dotted field path.
func (c *Cache) ProtoMap(root string) (map[string]string, error) {
	v, err := c.get("protomap:"+root, func() (any, error) {
		buf, err := readRepoFile(root, DevicePolicyProtoMapPath)
		if err != nil {
			return nil, err
		}
		m := make(map[string]string)
		if err := yaml.Unmarshal(buf, &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", DevicePolicyProtoMapPath, err)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// LegacyProtoMap loads legacy_device_policy_proto_map.yaml:
// policy name -> list of dotted field paths. Empty paths are allowed.
func (c *Cache) LegacyProtoMap(root string) (map[string][]string, error) {
	v, err := c.get("legacyprotomap:"+root, func() (any, error) {
		buf, err := readRepoFile(root, LegacyDevicePolicyProtoMapPath)
		if err != nil {
			return nil, err
		}
		m := make(map[string][]string)
		if err := yaml.Unmarshal(buf, &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", LegacyDevicePolicyProtoMapPath, err)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string][]string), nil
}

// DeviceProto loads the device policy proto text.
func (c *Cache) DeviceProto(root string) (string, error) {
	v, err := c.get("deviceproto:"+root, func() (any, error) {
		buf, err := readRepoFile(root, DevicePolicyProtoPath)
		if err != nil {
			return nil, err
		}
		return string(buf), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PolicyChanges returns policy definitions changed by the change, with
// their old and new contents.
func (c *Cache) PolicyChanges(change *presubmit.Change) ([]PolicyChange, error) {
	v, err := c.get("policychanges:"+change.Root, func() (any, error) {
		var changes []PolicyChange
		for _, f := range change.AffectedFiles(nil) {
			if !presubmit.Under(f.LocalPath(), PolicyDefinitionsPath) {
				continue
			}
			filename := path.Base(f.LocalPath())
			if filename == ".group.details.yaml" || filename == "policy_atomic_groups.yaml" {
				continue
			}
			pc := PolicyChange{Policy: strings.TrimSuffix(filename, path.Ext(filename))}
			if f.Action == presubmit.Modified || f.Action == presubmit.Deleted {
				old, err := decodeDefinition(f.OldContents())
				if err != nil {
					log.Warnf("ignore unparsable old contents of %s: %v", f.LocalPath(), err)
				} else if old == nil && f.Action == presubmit.Deleted {
					log.Debugf("skip %s: not a mapping", f.LocalPath())
					continue
				}
				pc.Old = old
			}
			if f.Action != presubmit.Deleted {
				m, err := decodeDefinition(f.NewContents())
				if err != nil {
					return nil, fmt.Errorf("failed to parse %s: %w", f.LocalPath(), err)
				}
				if m == nil {
					// OWNERS, DIR_METADATA etc. are not policy definitions.
					log.Debugf("skip %s: not a mapping", f.LocalPath())
					continue
				}
				pc.New = m
			}
			changes = append(changes, pc)
		}
		return changes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PolicyChange), nil
}

// decodeDefinition decodes a policy definition. It returns nil for
// contents that are valid YAML but not a mapping.
func decodeDefinition(lines []string) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &v); err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}

// Templates loads all policy definitions under policy_definitions,
// keyed by slash-separated path relative to policy_definitions.
func (c *Cache) Templates(root string) (map[string]any, error) {
	v, err := c.get("templates:"+root, func() (any, error) {
		dir := filepath.Join(root, filepath.FromSlash(PolicyDefinitionsPath))
		templates := make(map[string]any)
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(p) != ".yaml" {
				return nil
			}
			buf, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			var v any
			if err := yaml.Unmarshal(buf, &v); err != nil {
				return fmt.Errorf("failed to parse %s: %w", p, err)
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			templates[filepath.ToSlash(rel)] = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(templates) == 0 {
			return nil, errors.New("no policy definitions found")
		}
		return templates, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// CurrentVersion returns the MAJOR version in chrome/VERSION, or 0 if it
// is not available.
func (c *Cache) CurrentVersion(root string) int {
	v, err := c.get("version:"+root, func() (any, error) {
		buf, err := readRepoFile(root, VersionPath)
		if err != nil {
			return 0, err
		}
		line, _, _ := strings.Cut(string(buf), "\n")
		_, ver, ok := strings.Cut(line, "=")
		if !ok {
			return 0, fmt.Errorf("unexpected first line %q in %s", line, VersionPath)
		}
		return strconv.Atoi(strings.TrimSpace(ver))
	})
	if err != nil {
		log.Debugf("no current version: %v", err)
		return 0
	}
	return v.(int)
}

func sortedIDs(ids map[int]bool) []int {
	s := make([]int, 0, len(ids))
	for id := range ids {
		s = append(s, id)
	}
	sort.Ints(s)
	return s
}

// diffIDs returns a-b and b-a, sorted.
func diffIDs(a, b map[int]bool) (missing, extra []int) {
	for _, id := range sortedIDs(a) {
		if !b[id] {
			missing = append(missing, id)
		}
	}
	for _, id := range sortedIDs(b) {
		if !a[id] {
			extra = append(extra, id)
		}
	}
	return missing, extra
}
