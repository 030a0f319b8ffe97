package procconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	require.Equal(t, "/etc/vbmc", cfg.Daemon.ConfigDir)
	require.Equal(t, 50891, cfg.Daemon.ServerPort)
	require.Equal(t, Duration(5*time.Second), cfg.Daemon.ServerResponseTimeout)
	require.Equal(t, Duration(2*time.Second), cfg.Daemon.SyncInterval)
	require.False(t, cfg.Daemon.ShowPasswords)
	require.Equal(t, Duration(time.Minute), cfg.IPMI.SessionTimeout)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadServerConfigMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultServerConfig(), *cfg)
}

func TestLoadServerConfigYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vbmcd.yaml")
	body := `
log:
  level: debug
daemon:
  config_dir: /var/lib/vbmc
  server_port: 51000
  server_response_timeout: 10s
ipmi:
  session_timeout: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "/var/lib/vbmc", cfg.Daemon.ConfigDir)
	require.Equal(t, 51000, cfg.Daemon.ServerPort)
	require.Equal(t, Duration(10*time.Second), cfg.Daemon.ServerResponseTimeout)
	require.Equal(t, Duration(5*time.Minute), cfg.IPMI.SessionTimeout)

	// Fields the file omits keep their defaults.
	require.Equal(t, Duration(2*time.Second), cfg.Daemon.SyncInterval)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestLoadServerConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vbmcd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon: ["), 0o644))

	_, err := LoadServerConfig(path)
	require.Error(t, err)
}

func TestLoadServerConfigRejectsMalformedYAMLDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vbmcd.yaml")
	body := "daemon:\n  sync_interval: fast\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := LoadServerConfig(path)
	require.Error(t, err)
}

func TestEnvOverridesBeatYAMLAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vbmcd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  server_port: 51000\n"), 0o644))

	t.Setenv("VBMCD_SERVER_PORT", "60123")
	t.Setenv("VBMCD_SHOW_PASSWORDS", "true")
	t.Setenv("VBMCD_SESSION_TIMEOUT", "90s")
	t.Setenv("VBMCD_CONFIG_DIR", "/srv/vbmc")

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, 60123, cfg.Daemon.ServerPort)
	require.True(t, cfg.Daemon.ShowPasswords)
	require.Equal(t, Duration(90*time.Second), cfg.IPMI.SessionTimeout)
	require.Equal(t, "/srv/vbmc", cfg.Daemon.ConfigDir)
}

func TestEnvRejectsMalformedPort(t *testing.T) {
	t.Setenv("VBMCD_SERVER_PORT", "not-a-port")
	_, err := LoadServerConfig("")
	require.Error(t, err)
}

func TestEnvRejectsMalformedDuration(t *testing.T) {
	t.Setenv("VBMCD_SYNC_INTERVAL", "fast")
	_, err := LoadServerConfig("")
	require.Error(t, err)
}

func TestEnvRejectsMalformedBool(t *testing.T) {
	t.Setenv("VBMCD_SHOW_PASSWORDS", "maybe")
	_, err := LoadServerConfig("")
	require.Error(t, err)
}

func TestConfigureZerologAppliesLevel(t *testing.T) {
	old := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(old)

	LogConfig{Level: "warn"}.ConfigureZerolog()
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	// Debug wins over an explicit level.
	LogConfig{Level: "error", Debug: true}.ConfigureZerolog()
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestFindConfigFilePrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vbmcd.yaml"), []byte("{}\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(dir))

	require.Equal(t, "vbmcd.yaml", FindConfigFile())
}
