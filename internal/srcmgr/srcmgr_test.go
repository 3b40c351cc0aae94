package srcmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFileDedupesPaths(t *testing.T) {
	m := New()
	a := m.AddFile("foo.il")
	b := m.AddFile("bar.il")
	c := m.AddFile("foo.il")
	require.NotEqual(t, a, b)
	require.Equal(t, a, c)
	require.Equal(t, "foo.il", m.Path(a))
}

func TestUnknownIndexIsZero(t *testing.T) {
	m := New()
	require.Equal(t, "", m.Path(0))
	_, ok := m.Line(0, 1)
	require.False(t, ok)
}

func TestLineLoadsLazilyAndCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "módulo.il") // non-ASCII path
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\nline three"), 0o644))

	m := New()
	idx := m.AddFile(path)

	line, ok := m.Line(idx, 2)
	require.True(t, ok)
	require.Equal(t, "line two", line)

	require.NoError(t, os.Remove(path))
	line, ok = m.Line(idx, 1)
	require.True(t, ok, "cached lines must survive the file disappearing afterward")
	require.Equal(t, "line one", line)
}

func TestLineOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.il")
	require.NoError(t, os.WriteFile(path, []byte("only one line"), 0o644))
	m := New()
	idx := m.AddFile(path)
	_, ok := m.Line(idx, 5)
	require.False(t, ok)
}

func TestLineMissingFile(t *testing.T) {
	m := New()
	idx := m.AddFile(filepath.Join(t.TempDir(), "does-not-exist.il"))
	_, ok := m.Line(idx, 1)
	require.False(t, ok)
}
