// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mojomgen generates a mojom enum definition from a feature list.
//
// The feature list is YAML:
//
//	module: blink.mojom
//	enum: WebFeature
//	features:
//	- name: kPageLoad
//	  description: A page was loaded.
//	- name: kFoo
//	  value: 10
package mojomgen

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for a feature list that fails validation.
var ErrInvalid = errors.New("invalid feature list")

var (
	identRE  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	moduleRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

//go:embed mojom.tmpl
var templates embed.FS

var mojomTemplate = template.Must(template.New("mojom.tmpl").ParseFS(templates, "mojom.tmpl"))

// Feature is an entry of a feature list.
type Feature struct {
	Name string `yaml:"name"`
	// Value is the enum value. nil continues from the previous value.
	Value       *int   `yaml:"value"`
	Description string `yaml:"description"`
}

// FeatureList is a feature list.
type FeatureList struct {
	Module   string    `yaml:"module"`
	Enum     string    `yaml:"enum"`
	Features []Feature `yaml:"features"`
}

// Entry is a resolved enum entry.
type Entry struct {
	Name    string
	Value   int
	Comment []string
}

// Parse parses a feature list. Unknown keys are errors.
func Parse(buf []byte) (*FeatureList, error) {
	d := yaml.NewDecoder(bytes.NewReader(buf))
	d.KnownFields(true)
	var l FeatureList
	err := d.Decode(&l)
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", ErrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature list: %w", err)
	}
	return &l, nil
}

// Entries validates the feature list and returns enum entries in
// declaration order.
func (l *FeatureList) Entries() ([]Entry, error) {
	var errs []error
	if !moduleRE.MatchString(l.Module) {
		errs = append(errs, fmt.Errorf("bad module %q", l.Module))
	}
	if !identRE.MatchString(l.Enum) {
		errs = append(errs, fmt.Errorf("bad enum %q", l.Enum))
	}
	if len(l.Features) == 0 {
		errs = append(errs, errors.New("no features"))
	}
	names := make(map[string]int)
	values := make(map[int]string)
	var entries []Entry
	next := 0
	for i, f := range l.Features {
		if !identRE.MatchString(f.Name) {
			errs = append(errs, fmt.Errorf("features[%d]: bad name %q", i, f.Name))
		} else if j, ok := names[f.Name]; ok {
			errs = append(errs, fmt.Errorf("features[%d]: duplicate name %q (features[%d])", i, f.Name, j))
		} else {
			names[f.Name] = i
		}
		v := next
		if f.Value != nil {
			v = *f.Value
		}
		if name, ok := values[v]; ok {
			errs = append(errs, fmt.Errorf("features[%d]: %s has duplicate value %d (%s)", i, f.Name, v, name))
		} else {
			values[v] = f.Name
		}
		next = v + 1
		entries = append(entries, Entry{
			Name:    f.Name,
			Value:   v,
			Comment: commentLines(f.Description),
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return entries, nil
}

func commentLines(desc string) []string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(desc, "\n") {
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	return lines
}

// Generate writes the mojom definition of l to w.
// source is the name of the feature list recorded in the header.
func Generate(w io.Writer, l *FeatureList, source string) error {
	entries, err := l.Entries()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = mojomTemplate.Execute(&buf, struct {
		Source  string
		Module  string
		Enum    string
		Entries []Entry
	}{
		Source:  source,
		Module:  l.Module,
		Enum:    l.Enum,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", l.Enum, err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}
