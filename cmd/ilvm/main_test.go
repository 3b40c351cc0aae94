package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sumModule = `il 1.0.0

func @main() -> i64 {
entry:
  %t0:i64 = Add 2, 3
  Ret %t0
}
`

const trapModule = `il 1.0.0

func @main() -> i64 {
entry:
  %t0:ptr = ConstNull
  %t1:i64 = Load %t0
  Ret %t1
}
`

func writeTempModule(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mod.il")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestDoMainRunSucceeds(t *testing.T) {
	path := writeTempModule(t, sumModule)
	var out, errOut bytes.Buffer
	code := doMain([]string{"run", path}, &out, &errOut)
	require.Equal(t, 0, code)
	require.Empty(t, errOut.String())
}

func TestDoMainRunReportsTrap(t *testing.T) {
	path := writeTempModule(t, trapModule)
	var out, errOut bytes.Buffer
	code := doMain([]string{"run", path}, &out, &errOut)
	require.Equal(t, 1, code)
	require.Contains(t, errOut.String(), "Trap @main#0")
}

func TestDoMainVerifyOK(t *testing.T) {
	path := writeTempModule(t, sumModule)
	var out, errOut bytes.Buffer
	code := doMain([]string{"verify", path}, &out, &errOut)
	require.Equal(t, 0, code)
	require.Equal(t, "ok\n", out.String())
}

func TestDoMainRunWithPipelineFile(t *testing.T) {
	modPath := writeTempModule(t, sumModule)
	pipelinePath := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(pipelinePath, []byte("pipelines:\n  O3:\n    - sccp\n    - dce\n"), 0o644))

	var out, errOut bytes.Buffer
	code := doMain([]string{"run", "-opt", "O3", "-pipeline-file", pipelinePath, modPath}, &out, &errOut)
	require.Equal(t, 0, code)
	require.Empty(t, errOut.String())
}

func TestDoMainRunWithBadPipelineFile(t *testing.T) {
	modPath := writeTempModule(t, sumModule)
	pipelinePath := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(pipelinePath, []byte("pipelines:\n  O3:\n    - not-a-real-pass\n"), 0o644))

	var out, errOut bytes.Buffer
	code := doMain([]string{"run", "-opt", "O3", "-pipeline-file", pipelinePath, modPath}, &out, &errOut)
	require.Equal(t, 1, code)
	require.NotEmpty(t, errOut.String())
}

func TestDoMainRunTraceSourceShowsLine(t *testing.T) {
	path := writeTempModule(t, sumModule)
	var out, errOut bytes.Buffer
	code := doMain([]string{"run", "-trace", "source", path}, &out, &errOut)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "%t0:i64 = Add 2, 3")
}

func TestDoMainUnknownSubcommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := doMain([]string{"bogus"}, &out, &errOut)
	require.Equal(t, 1, code)
}
