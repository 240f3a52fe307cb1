package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9000\nlog:\n  level: debug\n"), 0o644))
	t.Setenv(EnvConfigDir, dir)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("APP_PORT", "9100")

	v, err := Load(dir, "config")
	require.NoError(t, err)
	require.NoError(t, BindEnvs(v, map[string]string{"server.port": "APP_PORT"}))

	assert.Equal(t, 9100, v.GetInt("server.port"))
	assert.Equal(t, "warn", v.GetString("log.level"))
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	t.Setenv(EnvConfigDir, t.TempDir())
	v, err := Load(t.TempDir(), "absent")
	require.NoError(t, err)
	assert.Empty(t, v.GetString("server.host"))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("REALTIME_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnv("REALTIME_TEST_VALUE", "default"))
	assert.Equal(t, "default", GetEnv("REALTIME_TEST_UNSET", "default"))
}
