// Package supervisor implements the persistent daemon that owns the
// config directory, reconciles desired vs. actual per-VM listener
// state, and serves the CLI's RPC requests.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vbmcd/internal/bmcconfig"
	"vbmcd/internal/listener"
	"vbmcd/internal/rpcwire"
)

// terminateGrace bounds how long a sync pass waits for a terminated
// child to exit on its own SIGTERM handling before escalating to SIGKILL.
const terminateGrace = 3 * time.Second

// Config collects what a Supervisor needs to run.
type Config struct {
	ConfigDir      string
	SelfExe        string // re-exec target for spawning listener children
	ShowPasswords  bool
	SessionTimeout time.Duration
	SyncInterval   time.Duration
	Log            zerolog.Logger
}

// Supervisor owns config_dir and the set of live listener children. Its
// mutex is shared with the RPC server (via Mu) so that RPC handling and
// sync passes are mutually exclusive: a sync pass never interleaves
// with a configuration mutation.
type Supervisor struct {
	Mu sync.Mutex

	configDir      string
	selfExe        string
	showPasswords  bool
	sessionTimeout time.Duration
	syncInterval   time.Duration
	log            zerolog.Logger

	instances map[string]*RunningInstance
}

// New builds a Supervisor. It does not touch the filesystem or spawn
// anything until Run or a sync pass is invoked.
func New(cfg Config) *Supervisor {
	return &Supervisor{
		configDir:      cfg.ConfigDir,
		selfExe:        cfg.SelfExe,
		showPasswords:  cfg.ShowPasswords,
		sessionTimeout: cfg.SessionTimeout,
		syncInterval:   cfg.SyncInterval,
		log:            cfg.Log,
		instances:      make(map[string]*RunningInstance),
	}
}

// Handle processes one decoded RPC request. It assumes the caller
// already holds Mu (rpcwire.Server does, via the Lock it's configured
// with), so handlers call syncPass directly rather than lockedSyncPass,
// which would re-acquire the lock.
func (s *Supervisor) Handle(req rpcwire.Request) rpcwire.Response {
	switch req.Command {
	case "add":
		return s.handleAdd(req.Args)
	case "delete":
		return s.handleDelete(req.Args)
	case "start":
		return s.handleStart(req.Args)
	case "stop":
		return s.handleStop(req.Args)
	case "list":
		return s.handleList(req.Args)
	case "show":
		return s.handleShow(req.Args)
	default:
		return errResponse(fmt.Sprintf("unknown command %q", req.Command))
	}
}

// Run serves RPC requests on port and performs a sync pass every
// SyncInterval until the process receives SIGTERM, at which point it
// performs a shutdown sync pass (every child terminated) before
// returning.
func (s *Supervisor) Run(ctx context.Context, port int) error {
	server := &rpcwire.Server{Lock: &s.Mu, Handler: s.Handle, Log: s.log}
	if err := server.Listen(port); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	// An initial pass so VMs already marked active start without
	// waiting a full interval after a supervisor restart.
	s.lockedSyncPass(false)

	for {
		select {
		case <-ticker.C:
			s.lockedSyncPass(false)

		case sig := <-sigCh:
			s.log.Info().Str("signal", sig.String()).Msg("shutting down supervisor")
			s.lockedSyncPass(true)
			_ = server.Close()
			<-serveErr
			return nil

		case err := <-serveErr:
			return err

		case <-ctx.Done():
			s.lockedSyncPass(true)
			_ = server.Close()
			return ctx.Err()
		}
	}
}

func (s *Supervisor) lockedSyncPass(shutdown bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.syncPass(shutdown)
}

// syncPass reconciles desired vs. actual state for every VM directory
// under config_dir. Callers must already hold Mu.
func (s *Supervisor) syncPass(shutdown bool) {
	names, err := bmcconfig.List(s.configDir)
	if err != nil {
		s.log.Warn().Err(err).Msg("listing config dir during sync pass")
		return
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true

		cfg, err := bmcconfig.Load(s.configDir, name)
		if err != nil {
			// Unparseable config is treated as "not a VM" for sync
			// purposes; add/show report the parse error directly.
			continue
		}

		desired := cfg.Active && !shutdown
		inst := s.instances[name]

		if desired {
			if inst != nil && !inst.IsAlive() {
				s.log.Warn().Str("vm_name", name).Msg("listener exited unexpectedly, respawning")
				delete(s.instances, name)
				inst = nil
			}
			if inst == nil {
				if err := s.spawnLocked(cfg); err != nil {
					s.log.Error().Err(err).Str("vm_name", name).Msg("failed to spawn listener")
				}
			}
			continue
		}

		if inst != nil {
			if inst.IsAlive() {
				s.terminateLocked(inst)
				s.log.Info().Str("vm_name", name).Msg("terminated listener")
			}
			delete(s.instances, name)
		}
	}

	// A VM directory that disappeared out from under a live child
	// (e.g. delete raced a crash) still gets terminated.
	for name, inst := range s.instances {
		if seen[name] {
			continue
		}
		if inst.IsAlive() {
			s.terminateLocked(inst)
		}
		delete(s.instances, name)
	}
}

// spawnLocked re-execs the supervisor's own binary with the hidden
// "__listen" subcommand, handing the child its BmcConfig and the
// session timeout over stdin as JSON.
func (s *Supervisor) spawnLocked(cfg *bmcconfig.Config) error {
	cmd := exec.Command(s.selfExe, "__listen")
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("supervisor: creating stdin pipe for %s: %w", cfg.VMName, err)
	}

	params := listener.ChildParams{
		Config:         cfg,
		SessionTimeout: s.sessionTimeout,
		LogLevel:       zerolog.GlobalLevel().String(),
	}

	inst, err := spawn(cfg.VMName, cmd)
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("supervisor: starting listener for %s: %w", cfg.VMName, err)
	}

	if err := writeChildParams(stdin, params); err != nil {
		s.log.Warn().Err(err).Str("vm_name", cfg.VMName).Msg("failed to write listener params")
	}

	s.instances[cfg.VMName] = inst
	s.log.Info().Str("vm_name", cfg.VMName).Msg("started listener instance")
	return nil
}

// terminateLocked signals a child and waits up to terminateGrace for it
// to exit before escalating to SIGKILL.
func (s *Supervisor) terminateLocked(inst *RunningInstance) {
	if inst.cmd.Process == nil {
		return
	}
	_ = inst.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-inst.done:
	case <-time.After(terminateGrace):
		_ = inst.cmd.Process.Kill()
		<-inst.done
	}
}
