// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package presubmit provides the API for presubmit checks: the change under
// review, its affected files, and severity-tagged results.
package presubmit

import (
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Action is an action of an affected file.
type Action string

const (
	Added    Action = "A"
	Modified Action = "M"
	Deleted  Action = "D"
)

// ChangedLine is a line added or modified by the change.
type ChangedLine struct {
	// Num is 1-based line number in the new contents.
	Num  int
	Text string
}

// AffectedFile is a file affected by the change.
type AffectedFile struct {
	// Path is slash-separated path relative to the repository root.
	Path   string
	Action Action

	// OldLines is contents before the change. nil for added files.
	OldLines []string
	// NewLines is contents after the change. nil for deleted files.
	NewLines []string

	once    sync.Once
	changed []ChangedLine
}

// LocalPath returns the path relative to the repository root.
func (f *AffectedFile) LocalPath() string {
	return f.Path
}

// AbsoluteLocalPath returns the absolute path in the repository at root.
func (f *AffectedFile) AbsoluteLocalPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(f.Path))
}

// NewContents returns the lines after the change.
func (f *AffectedFile) NewContents() []string {
	return f.NewLines
}

// OldContents returns the lines before the change.
func (f *AffectedFile) OldContents() []string {
	return f.OldLines
}

// ChangedContents returns lines added or modified by the change.
func (f *AffectedFile) ChangedContents() []ChangedLine {
	f.once.Do(func() {
		f.changed = changedLines(f.OldLines, f.NewLines)
	})
	return f.changed
}

func changedLines(oldLines, newLines []string) []ChangedLine {
	if len(newLines) == 0 {
		return nil
	}
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(joinLines(oldLines), joinLines(newLines))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)
	var changed []ChangedLine
	num := 0
	for _, d := range diffs {
		lines := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			num += len(lines)
		case diffmatchpatch.DiffInsert:
			for _, line := range lines {
				num++
				changed = append(changed, ChangedLine{Num: num, Text: line})
			}
		}
	}
	return changed
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// SplitLines splits file contents into lines without line terminators.
func SplitLines(buf []byte) []string {
	lines := splitLines(string(buf))
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Change is a change under review.
type Change struct {
	// Root is the absolute path of the repository root.
	Root  string
	Files []*AffectedFile
	// Tags are KEY=value lines of the change description.
	Tags map[string]string
}

// RepositoryRoot returns the absolute path of the repository root.
func (c *Change) RepositoryRoot() string {
	return c.Root
}

// AffectedFiles returns affected files accepted by filter.
// nil filter accepts all files.
func (c *Change) AffectedFiles(filter func(*AffectedFile) bool) []*AffectedFile {
	var files []*AffectedFile
	for _, f := range c.Files {
		if filter == nil || filter(f) {
			files = append(files, f)
		}
	}
	return files
}

// AffectedSourceFiles returns non-deleted affected files accepted by filter.
func (c *Change) AffectedSourceFiles(filter func(*AffectedFile) bool) []*AffectedFile {
	return c.AffectedFiles(func(f *AffectedFile) bool {
		return f.Action != Deleted && (filter == nil || filter(f))
	})
}

// AffectedTestableFiles returns non-deleted affected files.
func (c *Change) AffectedTestableFiles() []*AffectedFile {
	return c.AffectedSourceFiles(nil)
}

// HasTag reports whether the change description has tag.
func (c *Change) HasTag(tag string) bool {
	_, ok := c.Tags[tag]
	return ok
}

// ParseTags parses KEY=value lines in a change description.
// A line is a tag if KEY consists of uppercase letters, digits and '_'.
func ParseTags(desc string) map[string]string {
	tags := make(map[string]string)
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" || !isTagKey(k) {
			continue
		}
		tags[k] = strings.TrimSpace(v)
	}
	return tags
}

func isTagKey(k string) bool {
	for _, ch := range k {
		switch {
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_':
		default:
			return false
		}
	}
	return true
}

// Under reports whether p equals dir or lies below it.
// Both are slash-separated.
func Under(p, dir string) bool {
	dir = path.Clean(dir)
	p = path.Clean(p)
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// Touches reports whether any affected file is under one of the watched paths.
func (c *Change) Touches(watchlist ...string) bool {
	for _, w := range watchlist {
		for _, f := range c.Files {
			if Under(f.Path, w) {
				return true
			}
		}
	}
	return false
}
