package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(EnvLogLevel, "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIHello(t *testing.T) {
	out, err := runCLI(t, "hello", "--workers", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "total number of cores this program has access to:")
	for _, line := range []string{
		"Hello, World, from worker # 0 !",
		"Hello, World, from worker # 1 !",
		"Hello, World, from worker # 2 !",
	} {
		assert.Contains(t, out, line)
	}
}

func TestCLIScoping(t *testing.T) {
	out, err := runCLI(t, "scoping", "-w", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Before the parallel loop:")
	assert.Contains(t, out, "Worker 3 (of 4 total workers), iteration 12:")
	assert.Contains(t, out, "a = 0, 0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3")
}

func TestCLIBarrier(t *testing.T) {
	out, err := runCLI(t, "barrier", "-w", "4")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "of 4."))

	out, err = runCLI(t, "barrier", "-w", "4", "--no-barrier")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "Hello world from worker"))
}

func TestCLISingle(t *testing.T) {
	out, err := runCLI(t, "single", "-w", "3", "--master")
	require.NoError(t, err)
	assert.Contains(t, out, "master construct ran on worker 0")

	out, err = runCLI(t, "single", "-w", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "single construct ran on worker")
	assert.Equal(t, 3, strings.Count(out, "of 3."))
}

func TestCLITwoCritical(t *testing.T) {
	out, err := runCLI(t, "two-critical", "-w", "5", "--size", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "sum = 1000, product = 1")
	assert.Equal(t, 5, strings.Count(out, " in sum"))
	assert.Equal(t, 5, strings.Count(out, " out product"))
}

func TestCLISum(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "run.json")
	csvPath := filepath.Join(dir, "run.csv")

	out, err := runCLI(t, "sum",
		"--size", "5000",
		"--workers", "1,2",
		"--iterations", "1",
		"--schedule", "cyclic",
		"--chunk", "100",
		"--chart",
		"--json", jsonPath,
		"--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Reduction Summary")
	assert.Contains(t, out, "Speedup vs Sequential")
	assert.Contains(t, out, "Saved results to "+jsonPath)
	assert.FileExists(t, jsonPath)
	assert.FileExists(t, csvPath)

	out, err = runCLI(t, "report", jsonPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Reduction Summary")
}

func TestCLISumRejectsBadFlags(t *testing.T) {
	_, err := runCLI(t, "sum", "--size", "10", "--op", "mean")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = runCLI(t, "sum", "--size", "10", "--workers", "0")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = runCLI(t, "hello", "--workers", "0")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestCLISumDetect(t *testing.T) {
	out, err := runCLI(t, "sum", "--detect")
	require.NoError(t, err)
	assert.Contains(t, out, "Hardware Detection")
	assert.NotContains(t, out, "Reduction Summary")
}

func TestCLIConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parbasics.yaml")

	out, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	_, err = runCLI(t, "config", "init", path)
	assert.Error(t, err, "init must not overwrite without --force")

	_, err = runCLI(t, "config", "init", path, "--force")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("demo:\n  scoping_n: 5\n"), 0644))
	out, err = runCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "scoping_n: 5")

	out, err = runCLI(t, "--config", path, "scoping", "-w", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration 4:")
	assert.NotContains(t, out, "iteration 5:")
}
