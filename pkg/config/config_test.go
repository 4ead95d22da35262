package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "python", cfg.Fold.Backend)
	assert.False(t, cfg.Fold.OnlyDefinitions)
	assert.Equal(t, "vim", cfg.Vim.Path)
	assert.Equal(t, []string{"set shiftwidth=4", "set foldmethod=indent"}, cfg.Vim.Commands)
	assert.Equal(t, 30*time.Second, cfg.Vim.Timeout())
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Server.CacheSize)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, cfg.Server.WorkingDir)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".foldgen.yaml")
	content := `
fold:
  backend: vim
  only_definitions: true
vim:
  path: /usr/bin/nvim
  vimrc: plugin.vim
  commands:
    - filetype plugin on
    - set foldmethod=expr
  timeout_seconds: 5
server:
  port: 9000
  working_dir: relative
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "vim", cfg.Fold.Backend)
	assert.True(t, cfg.Fold.OnlyDefinitions)
	assert.Equal(t, "/usr/bin/nvim", cfg.Vim.Path)
	assert.True(t, filepath.IsAbs(cfg.Vim.Vimrc))
	assert.Equal(t, "plugin.vim", filepath.Base(cfg.Vim.Vimrc))
	assert.Equal(t, []string{"filetype plugin on", "set foldmethod=expr"}, cfg.Vim.Commands)
	assert.Equal(t, 5*time.Second, cfg.Vim.Timeout())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, filepath.IsAbs(cfg.Server.WorkingDir))
}

func TestLoadSessionKeyFromEnv(t *testing.T) {
	t.Setenv("FOLDGEN_SESSION_API_KEY", "secret")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Server.SessionAPIKey)
}
