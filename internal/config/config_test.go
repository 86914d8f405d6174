package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load([]string{"--data-dir", t.TempDir()}, filepath.Join(t.TempDir(), ".env"), noEnv)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 12*time.Second, cfg.PingInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectBase)
	assert.Equal(t, 5*time.Second, cfg.ReconnectMax)
	assert.Equal(t, 8*time.Second, cfg.OfferTimeout)
	assert.Equal(t, 10*time.Second, cfg.RestartCooldown)
	assert.Equal(t, 2*time.Second, cfg.DisconnectDebounce)
	assert.Empty(t, cfg.Host)
	assert.False(t, cfg.ForceSSE)
	assert.True(t, cfg.Interactive())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"ROOMCALL_HOST=dotenv.example.org\nROOMCALL_FORCE_SSE=true\nROOMCALL_DATA_DIR="+dir+"\n"), 0o600))

	testCases := []struct {
		name     string
		args     []string
		env      map[string]string
		wantHost string
	}{
		{"dotenv", nil, nil, "dotenv.example.org"},
		{"environment beats dotenv", nil, map[string]string{EnvHost: "env.example.org"}, "env.example.org"},
		{"flag beats environment", []string{"--host", "flag.example.org"}, map[string]string{EnvHost: "env.example.org"}, "flag.example.org"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := load(tc.args, envFile, envMap(tc.env))
			require.NoError(t, err)
			assert.Equal(t, tc.wantHost, cfg.Host)
			assert.True(t, cfg.ForceSSE)
			assert.Equal(t, dir, cfg.DataDir)
		})
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := load([]string{
		"-r", "room-1",
		"-w", "a,b",
		"--offer-timeout", "3s",
		"--debug",
		"--data-dir", t.TempDir(),
	}, filepath.Join(t.TempDir(), ".env"), noEnv)
	require.NoError(t, err)

	assert.Equal(t, "room-1", cfg.Room)
	assert.Equal(t, []string{"a", "b"}, cfg.Watch)
	assert.Equal(t, 3*time.Second, cfg.OfferTimeout)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Interactive())
}

func TestLoadErrors(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")

	testCases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad bool env", nil, map[string]string{EnvForceSSE: "maybe"}},
		{"unknown flag", []string{"--nope"}, nil},
		{"stray argument", []string{"extra"}, nil},
		{"room and new", []string{"--room", "x", "--new"}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(tc.args, envFile, envMap(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadHelp(t *testing.T) {
	_, err := load([]string{"--help"}, filepath.Join(t.TempDir(), ".env"), noEnv)
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
