package pass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const customPipelineYAML = `
pipelines:
  O3:
    - inline
    - sccp
    - dce
`

func writePipelineFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadPipelineFileBuildsNamedPasses(t *testing.T) {
	path := writePipelineFile(t, customPipelineYAML)
	pipelines, err := LoadPipelineFile(path)
	require.NoError(t, err)
	require.Len(t, pipelines["O3"], 3)
	require.Equal(t, "inline", pipelines["O3"][0].Name)
	require.Equal(t, "dce", pipelines["O3"][2].Name)
}

func TestLoadPipelineFileRejectsUnknownPass(t *testing.T) {
	path := writePipelineFile(t, "pipelines:\n  bogus:\n    - not-a-real-pass\n")
	_, err := LoadPipelineFile(path)
	require.Error(t, err)
}

func TestRegisterPipelineRunsCustomPasses(t *testing.T) {
	path := writePipelineFile(t, customPipelineYAML)
	pipelines, err := LoadPipelineFile(path)
	require.NoError(t, err)

	m := buildFoldableModule()
	mgr := NewManager()
	require.NoError(t, mgr.RegisterPipeline("O3", pipelines["O3"]))
	ok := mgr.RunPipeline(m, "O3")
	require.True(t, ok)
	require.Greater(t, mgr.Stats().InstructionsFolded, 0)
}

func TestRegisterPipelineRejectsO0Override(t *testing.T) {
	mgr := NewManager()
	err := mgr.RegisterPipeline("O0", nil)
	require.Error(t, err)
}
