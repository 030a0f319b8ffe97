// Command vbmcd is the virtual BMC fleet supervisor daemon. Invoked
// normally it runs the persistent supervisor; invoked as `vbmcd
// __listen` (a hidden subcommand the supervisor uses to re-exec
// itself) it instead runs a single listener child, reading its
// BmcConfig from stdin.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vbmcd/internal/listener"
	"vbmcd/internal/procconfig"
	"vbmcd/internal/supervisor"
)

// listenSubcommand is the hidden re-exec entrypoint a supervisor uses
// to spawn one listener child per active VM.
const listenSubcommand = "__listen"

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == listenSubcommand {
		if err := listener.RunChildFromStdin(log.Logger); err != nil {
			log.Fatal().Err(err).Msg("listener child exited with error")
		}
		return
	}

	runSupervisor()
}

func runSupervisor() {
	cfg, err := procconfig.LoadServerConfig(procconfig.FindConfigFile())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	cfg.Log.ConfigureZerolog()
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	log.Info().
		Str("config_dir", cfg.Daemon.ConfigDir).
		Int("server_port", cfg.Daemon.ServerPort).
		Dur("session_timeout", time.Duration(cfg.IPMI.SessionTimeout)).
		Msg("starting vbmcd supervisor")

	selfExe, err := os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve own executable path")
	}

	if err := os.MkdirAll(cfg.Daemon.ConfigDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create config directory")
	}

	sup := supervisor.New(supervisor.Config{
		ConfigDir:      cfg.Daemon.ConfigDir,
		SelfExe:        selfExe,
		ShowPasswords:  cfg.Daemon.ShowPasswords,
		SessionTimeout: time.Duration(cfg.IPMI.SessionTimeout),
		SyncInterval:   time.Duration(cfg.Daemon.SyncInterval),
		Log:            log.Logger,
	})

	if err := sup.Run(context.Background(), cfg.Daemon.ServerPort); err != nil {
		log.Fatal().Err(err).Msg("supervisor exited with error")
	}
}
