package procconfig

import "time"

// ServerConfig is the supervisor daemon's own process configuration:
// where the per-VM config directory lives, what port the RPC server
// binds, and its timeouts. It has nothing to do with a BmcConfig,
// which is a per-VM record loaded from internal/bmcconfig, not this
// process-wide one.
type ServerConfig struct {
	Log    LogConfig     `yaml:"log"`
	Daemon DaemonSection `yaml:"daemon"`
	IPMI   IPMISection   `yaml:"ipmi"`
}

// DaemonSection holds the supervisor's own RPC/config-directory settings.
type DaemonSection struct {
	ConfigDir             string   `yaml:"config_dir"`
	ServerPort            int      `yaml:"server_port"`
	ServerResponseTimeout Duration `yaml:"server_response_timeout"`
	ShowPasswords         bool     `yaml:"show_passwords"`
	SyncInterval          Duration `yaml:"sync_interval"`
}

// IPMISection holds IPMI engine settings shared by every listener child.
type IPMISection struct {
	SessionTimeout Duration `yaml:"session_timeout"`
}

// DefaultServerConfig returns the settings used when neither the YAML
// file nor the environment overrides them.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Log: LogConfig{Level: "info", Format: "console"},
		Daemon: DaemonSection{
			ConfigDir:             "/etc/vbmc",
			ServerPort:            50891,
			ServerResponseTimeout: Duration(5 * time.Second),
			SyncInterval:          Duration(2 * time.Second),
		},
		IPMI: IPMISection{SessionTimeout: Duration(time.Minute)},
	}
}
