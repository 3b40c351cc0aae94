// Package srcmgr implements the source manager source-level tracing
// reads through (spec.md §4.H): a small file table mapping the integer
// indices carried by ir.SourceLoc.File back to paths on disk, loading
// and splitting each file into lines lazily and only once.
package srcmgr

import (
	"os"
	"strings"
)

// Manager is a file table plus a lazily-populated line cache. Index 0 is
// reserved for "no file", matching ir.SourceLoc's own unknown-file
// convention; it is never resolvable to a path.
//
// A Manager is built once per loaded module and read by one VM at a
// time, so it does no locking of its own.
type Manager struct {
	paths []string
	lines map[int][]string
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{paths: []string{""}}
}

// AddFile registers path, returning its file index. Calling it again
// with an already-registered path returns the same index rather than
// growing the table, so a module parsed from one file only ever
// occupies one slot regardless of how many instructions reference it.
// Paths are kept exactly as given, including non-ASCII UTF-8 bytes;
// Go treats a path as an opaque byte string on every host platform, so
// no transcoding is needed here.
func (m *Manager) AddFile(path string) int {
	for i, p := range m.paths {
		if p == path {
			return i
		}
	}
	m.paths = append(m.paths, path)
	return len(m.paths) - 1
}

// Path returns the file path registered at idx, or "" if idx is 0 or
// out of range.
func (m *Manager) Path(idx int) string {
	if idx <= 0 || idx >= len(m.paths) {
		return ""
	}
	return m.paths[idx]
}

// Line returns the 1-indexed source line at (idx, line), loading and
// caching idx's file contents on first use. It reports false if idx
// names no file, the file could not be read, or line is out of range;
// tracing falls back to its location-only rendering in that case
// rather than failing the run.
func (m *Manager) Line(idx, line int) (string, bool) {
	if idx <= 0 || idx >= len(m.paths) || line < 1 {
		return "", false
	}
	lines, ok := m.lines[idx]
	if !ok {
		lines = m.load(idx)
		if m.lines == nil {
			m.lines = make(map[int][]string)
		}
		m.lines[idx] = lines
	}
	if line > len(lines) {
		return "", false
	}
	return lines[line-1], true
}

func (m *Manager) load(idx int) []string {
	data, err := os.ReadFile(m.paths[idx])
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}
