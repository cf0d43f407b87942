package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filters.lopezb.com/internal/filters/bloom"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7000
  max_connections: 8
  idle_timeout: 30s
filters:
  error_rate: 0.1
  capacity: 100
  algorithm: murmur3
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 8, cfg.Server.MaxConnections)
	require.Equal(t, 30*time.Second, cfg.Server.IdleTimeout)
	// Missing keys keep their defaults.
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, 0.1, cfg.Filters.ErrorRate)
	require.Equal(t, uint64(100), cfg.Filters.Capacity)
	require.Equal(t, bloom.AlgorithmMurmur3, cfg.Filters.Algorithm)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FILTERS_PORT", "7100")
	t.Setenv("FILTERS_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "server:\n  port: 7000\n"))
	require.NoError(t, err)
	require.Equal(t, 7100, cfg.Server.Port)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "unknown field", content: "server:\n  colour: blue\n"},
		{name: "malformed yaml", content: "server: [\n"},
		{name: "wrong type", content: "server:\n  port: high\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "rate out of range", content: "filters:\n  error_rate: 1.5\n"},
		{name: "zero rate", content: "filters:\n  error_rate: 0\n"},
		{name: "unknown algorithm", content: "filters:\n  algorithm: sha256\n"},
		{name: "bad port", content: "server:\n  port: 70000\n"},
		{name: "no connections", content: "server:\n  max_connections: 0\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.content))
			require.NoError(t, err)
			require.Error(t, cfg.Validate())
		})
	}
}

// Values rejected by Validate can still be corrected by a later layer, such
// as a command-line flag, before validation runs.
func TestLoad_OverrideBeforeValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 70000\nfilters:\n  algorithm: sha256\n"))
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.Server.Port = 7000
	cfg.Filters.Algorithm = bloom.AlgorithmMurmur3
	require.NoError(t, cfg.Validate())
}

func TestDefault_Valid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("FILTERS_PORT", "not-a-port")

	_, err := Load("")
	require.Error(t, err)
}
