package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 10*time.Second, cfg.TickInterval)
	assert.Equal(t, "auto", cfg.Probe)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 256, cfg.MaxPendingSpans)
	assert.False(t, cfg.Encrypt)
	assert.Equal(t, "GITHUB_TOKEN", cfg.Integrations.GitHub.TokenEnv)
	assert.Equal(t, "OPENAI_API_KEY", cfg.AI.OpenAI.APIKeyEnv)
	assert.Equal(t, "http://localhost:11434", cfg.AI.Ollama.URL)
}

func TestParseValues(t *testing.T) {
	cfg, err := Parse([]byte(`
data_dir: /tmp/toki
tick_interval: 5s
probe: static
encrypt: true
integrations:
  github:
    repo: acme/toki
ai:
  openai:
    model: local-model
    base_url: http://localhost:8080/v1
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/toki", cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.TickInterval)
	assert.Equal(t, "static", cfg.Probe)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, "acme/toki", cfg.Integrations.GitHub.Repo)
	assert.Equal(t, "local-model", cfg.AI.OpenAI.Model)
	assert.Equal(t, "/tmp/toki/toki.db", cfg.DBPath())
	assert.Equal(t, "/tmp/toki/toki.sock", cfg.SocketPath())
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"short tick", "tick_interval: 100ms", "tick_interval"},
		{"bad probe", "probe: wayland", "probe must be one of"},
		{"negative pending", "max_pending_spans: -1", "max_pending_spans"},
		{"bad repo", "integrations:\n  github:\n    repo: toki", "owner/name"},
		{"bad yaml", "tick_interval: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "toki.log"), cfg.LogPath())
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("probe: linux\nlog_level: warn\n"), 0o600))

	t.Setenv("TOKI_PROBE", "static")
	t.Setenv("TOKI_TICK_INTERVAL", "30s")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "static", cfg.Probe)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
}

func TestLoadFileEnvInvalid(t *testing.T) {
	t.Setenv("TOKI_MAX_PENDING_SPANS", "lots")
	_, err := LoadFile(filepath.Join(t.TempDir(), "config.yaml"))
	assert.ErrorContains(t, err, "env")
}

func TestLoadUsesDataDirEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOKI_DATA_DIR", dir)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
}
