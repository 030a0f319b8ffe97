// Package procconfig loads the supervisor's own process configuration
// (config_dir, server_port, timeouts, logging) from an optional YAML
// file layered with environment variable overrides. It has nothing to
// do with per-VM BmcConfig records, which live under
// internal/bmcconfig and use a different, INI-shaped on-disk format.
package procconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// LogConfig configures process-wide logging behavior.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

// ConfigureZerolog applies the configured level to the global zerolog
// logger. Debug wins over Level; an unparseable Level leaves the
// current global setting untouched.
func (c LogConfig) ConfigureZerolog() {
	if c.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	if level, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
}

// Duration wraps time.Duration so YAML configs can use "5s"-style
// strings rather than integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML parses a scalar duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadServerConfig builds the supervisor's configuration in three
// layers: compiled-in defaults, then configFile (optional; a missing
// file is not an error), then VBMCD_-prefixed environment variables.
func LoadServerConfig(configFile string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("procconfig: parsing %s: %w", configFile, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("procconfig: reading %s: %w", configFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays VBMCD_-prefixed environment variables onto cfg.
func applyEnv(cfg *ServerConfig) error {
	envString("VBMCD_LOG_LEVEL", &cfg.Log.Level)
	envString("VBMCD_LOG_FORMAT", &cfg.Log.Format)
	envString("VBMCD_CONFIG_DIR", &cfg.Daemon.ConfigDir)

	for _, err := range []error{
		envBool("VBMCD_DEBUG", &cfg.Log.Debug),
		envInt("VBMCD_SERVER_PORT", &cfg.Daemon.ServerPort),
		envDuration("VBMCD_SERVER_RESPONSE_TIMEOUT", &cfg.Daemon.ServerResponseTimeout),
		envBool("VBMCD_SHOW_PASSWORDS", &cfg.Daemon.ShowPasswords),
		envDuration("VBMCD_SYNC_INTERVAL", &cfg.Daemon.SyncInterval),
		envDuration("VBMCD_SESSION_TIMEOUT", &cfg.IPMI.SessionTimeout),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("procconfig: %s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("procconfig: %s=%q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("procconfig: %s=%q: %w", key, v, err)
	}
	*dst = Duration(d)
	return nil
}

// FindConfigFile returns the first existing vbmcd.yaml among the
// standard search locations, or "" when none exists.
func FindConfigFile() string {
	candidates := []string{
		"vbmcd.yaml",
		filepath.Join("/etc", "vbmc", "vbmcd.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".vbmc", "vbmcd.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
