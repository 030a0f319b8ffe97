package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"vbmcd/internal/bmcconfig"
	"vbmcd/internal/hypervisor"
	"vbmcd/internal/ipmiengine"
)

// ChildParams is the JSON payload the supervisor writes to a spawned
// listener child's stdin: everything the child needs to build its own
// Engine and Listener without touching the config directory itself.
type ChildParams struct {
	Config         *bmcconfig.Config `json:"config"`
	SessionTimeout time.Duration     `json:"session_timeout"`
	LogLevel       string            `json:"log_level"`
}

// ReadChildParams decodes ChildParams from r (the child's stdin).
func ReadChildParams(r io.Reader) (*ChildParams, error) {
	var p ChildParams
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("listener: decoding child params: %w", err)
	}
	if p.Config == nil {
		return nil, fmt.Errorf("listener: child params missing config")
	}
	return &p, nil
}

// RunChild is the entrypoint for a spawned listener process: it reads
// its ChildParams from stdin, wires a hypervisor client and protocol
// engine for the one VM it's responsible for, and runs the event loop
// until terminated. It returns nil once a SIGTERM has shut the listener
// down.
func RunChild(stdin io.Reader, log zerolog.Logger) error {
	params, err := ReadChildParams(stdin)
	if err != nil {
		return err
	}

	if level, perr := zerolog.ParseLevel(params.LogLevel); perr == nil {
		zerolog.SetGlobalLevel(level)
	}

	cfg := params.Config
	log = log.With().Str("vm_name", cfg.VMName).Logger()

	fakeMACBytes, err := bmcconfig.ParseFakeMAC(cfg.FakeMAC)
	if err != nil {
		return fmt.Errorf("listener: parsing fakemac for %s: %w", cfg.VMName, err)
	}

	hv := hypervisor.New(hypervisor.Target{
		Server:   cfg.VIServer,
		Username: cfg.VIServerUsername,
		Password: cfg.VIServerPassword,
		VMName:   cfg.VMName,
		VMUUID:   cfg.VMUUID,
	}, log)

	// A misconfigured viserver or VM identity should be visible in the
	// log at startup, not first surface as a 0xC0 on vCenter's first
	// chassis command. Failure here is not fatal: the endpoint may
	// simply be unreachable right now and IPMI clients retry.
	if cfg.VIServer != "" {
		lookupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if name, lerr := hv.LookupVM(lookupCtx); lerr != nil {
			log.Warn().Err(lerr).Msg("could not resolve VM on hypervisor at startup")
		} else {
			log.Info().Str("resolved_name", name).Msg("resolved VM on hypervisor")
		}
		cancel()
	}

	engine := ipmiengine.New(ipmiengine.Config{
		Username:       cfg.Username,
		Password:       cfg.Password,
		FakeMAC:        fakeMACBytes,
		SessionTimeout: params.SessionTimeout,
		Hypervisor:     hv,
		Log:            log,
	})

	l, err := New(cfg.Address, cfg.Port, engine, log)
	if err != nil {
		return err
	}
	defer l.Close()

	log.Info().Str("address", cfg.Address).Uint16("port", cfg.Port).Msg("listener bound, serving IPMI")
	return l.Run()
}

// RunChildFromStdin is a convenience wrapper used by cmd/vbmcd's
// hidden "__listen" subcommand.
func RunChildFromStdin(log zerolog.Logger) error {
	return RunChild(os.Stdin, log)
}
