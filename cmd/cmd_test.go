package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/foldgen/pkg/config"
	"github.com/denysvitali/foldgen/pkg/folding"
)

const sampleSource = "def f():\n    x = 1\n    return x\n"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logger.SetOutput(io.Discard)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewComputerPython(t *testing.T) {
	cfg := &config.Config{Fold: config.FoldConfig{Backend: "python", OnlyDefinitions: true}}

	computer, closeFn, err := newComputer(cfg, quietLogger())
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, folding.Python{OnlyDefinitions: true}, computer)
}

func TestNewComputerUnknownBackend(t *testing.T) {
	cfg := &config.Config{Fold: config.FoldConfig{Backend: "emacs"}}

	_, _, err := newComputer(cfg, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, folding.ErrUnknownBackend)
	assert.Contains(t, err.Error(), "emacs")
}

func TestNewComputerVimMissingBinary(t *testing.T) {
	cfg := &config.Config{Fold: config.FoldConfig{Backend: "vim"}}
	cfg.Vim.Path = filepath.Join(t.TempDir(), "no-such-vim")

	_, _, err := newComputer(cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start editor session")
}

func TestRootWritesFixtures(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	require.NoError(t, os.WriteFile(a, []byte(sampleSource), 0644))
	require.NoError(t, os.WriteFile(b, []byte("x = 1\n"), 0644))

	_, err := execute(t, a, b)
	require.NoError(t, err)

	got, err := os.ReadFile(a + ".testdata")
	require.NoError(t, err)
	assert.Equal(t, "1 3 1\n", string(got))

	got, err = os.ReadFile(b + ".testdata")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRootStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	missing := filepath.Join(dir, "missing.py")
	c := filepath.Join(dir, "c.py")
	require.NoError(t, os.WriteFile(a, []byte(sampleSource), 0644))
	require.NoError(t, os.WriteFile(c, []byte(sampleSource), 0644))

	_, err := execute(t, a, missing, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.py")

	assert.FileExists(t, a+".testdata")
	assert.NoFileExists(t, c+".testdata")
}

func TestCheckReportsStaleFixtures(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(a, []byte(sampleSource), 0644))

	_, err := execute(t, "check", a)
	require.Error(t, err)

	_, err = execute(t, a)
	require.NoError(t, err)

	_, err = execute(t, "check", a)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(a+".testdata", []byte("1 2 1\n"), 0644))
	out, err := execute(t, "check", a)
	require.Error(t, err)
	assert.Contains(t, out, "stale")
	assert.Contains(t, out, "-1 2 1")
	assert.Contains(t, out, "+1 3 1")
}
