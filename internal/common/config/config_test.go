package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests use t.Setenv and therefore do not run in parallel.

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "data/db/editor.db", cfg.EditorDBPath)
	assert.Equal(t, "http://localhost:3001", cfg.DetectorURL)
	assert.Equal(t, 32.0, cfg.CanvasPadding)
	assert.Equal(t, 30*time.Second, cfg.DetectTimeoutDuration())
	assert.Equal(t, ":3002", cfg.Addr("3002"))
	assert.True(t, cfg.Debug())
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palitra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "4000"
env: production
mask_dir: /srv/masks
canvas_padding: 16
detect_timeout: 5
`), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MASK_DIR", "/env/masks")
	t.Setenv("TEXTURE_TIMEOUT", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Addr("3002"))
	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.Debug())
	assert.Equal(t, "/env/masks", cfg.MaskDir, "environment wins over the file")
	assert.Equal(t, 16.0, cfg.CanvasPadding)
	assert.Equal(t, 5*time.Second, cfg.DetectTimeoutDuration())
	assert.Equal(t, 10, cfg.TextureTimeout, "unparsable value falls back")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palitra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "failed to parse")
}
