package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 5, cfg.CallRate.Burst)
	assert.Equal(t, "drop", cfg.Backpressure)
	assert.Equal(t, 30*time.Second, cfg.Client.DialTimeout)
	assert.Equal(t, 45*time.Second, cfg.Client.RingTimeout)
	assert.Len(t, cfg.Client.ICEServers, 2)
	assert.False(t, cfg.Client.TrickleICE)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
port: 9090
jwt_secret: from-file
backpressure: disconnect
client:
  relay_url: ws://relay.example/api/ws/signal
  ring_timeout: 10s
  ice_servers: ["stun:only:3478"]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SONOX_CLIENT_USER_ID=from-dotenv\n"), 0o644))
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("SONOX_PORT", "7070")
	// Registers a restore; godotenv only fills variables that are unset.
	t.Setenv("SONOX_CLIENT_USER_ID", "")
	require.NoError(t, os.Unsetenv("SONOX_CLIENT_USER_ID"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "disconnect", cfg.Backpressure)
	assert.Equal(t, "from-dotenv", cfg.Client.UserID)
	assert.Equal(t, "ws://relay.example/api/ws/signal", cfg.Client.RelayURL)
	assert.Equal(t, 10*time.Second, cfg.Client.RingTimeout)
	assert.Equal(t, []string{"stun:only:3478"}, cfg.Client.ICEServers)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
