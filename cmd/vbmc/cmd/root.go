// Package cmd implements the vbmc CLI: a thin wrapper over the
// supervisor's RPC surface.
package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vbmcd/internal/procconfig"
	"vbmcd/internal/rpcwire"
)

var (
	noDaemon bool
	cfg      procconfig.ServerConfig
)

var rootCmd = &cobra.Command{
	Use:   "vbmc",
	Short: "Manage virtual BMCs backed by a vSphere/ESXi hypervisor",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := procconfig.LoadServerConfig(procconfig.FindConfigFile())
		if err != nil {
			return err
		}
		cfg = *loaded
		return nil
	},
}

// Execute runs the CLI, printing any server-reported error lines to
// stderr and exiting nonzero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noDaemon, "no-daemon", false, "do not auto-start vbmcd")
}

// client connects to the supervisor, auto-starting it first unless
// --no-daemon was given and no supervisor answers yet.
func client() (*rpcwire.Client, error) {
	c := rpcwire.NewClient(cfg.Daemon.ServerPort, time.Duration(cfg.Daemon.ServerResponseTimeout))

	if _, err := c.Communicate("list", nil); err == nil {
		return c, nil
	} else if !isConnectionRefused(err) {
		// The port did not refuse the connection, so something is
		// already listening there and the probe failed some other way
		// (e.g. a timeout); don't try to spawn another supervisor on
		// top of it.
		return c, nil
	}

	if noDaemon {
		return nil, errors.New("vbmc: no supervisor running on port " +
			fmt.Sprint(cfg.Daemon.ServerPort) + " and --no-daemon was given")
	}

	if err := autoStartSupervisor(); err != nil {
		return nil, err
	}
	return c, nil
}

func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// autoStartSupervisor launches vbmcd as a detached background process
// and waits briefly for its RPC port to come up.
func autoStartSupervisor() error {
	exe, err := findVbmcd()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("vbmc: starting vbmcd: %w", err)
	}
	_ = cmd.Process.Release()

	deadline := time.Now().Add(5 * time.Second)
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Daemon.ServerPort)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("vbmc: vbmcd did not come up on port %d in time", cfg.Daemon.ServerPort)
}

func findVbmcd() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "vbmcd")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return exec.LookPath("vbmcd")
}

// printResponse renders a server response: msg lines to stderr on
// error, a tab-separated table on success when header/rows are present.
func printResponse(resp *rpcwire.Response) error {
	if !resp.OK() {
		for _, m := range resp.Msg {
			fmt.Fprintln(os.Stderr, m)
		}
		return fmt.Errorf("vbmc: command failed (rc=%d)", resp.RC)
	}

	if len(resp.Header) == 0 {
		return nil
	}

	for i, h := range resp.Header {
		if i > 0 {
			fmt.Print("\t")
		}
		fmt.Print(h)
	}
	fmt.Println()
	for _, row := range resp.Rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Print("\t")
			}
			fmt.Print(cell)
		}
		fmt.Println()
	}
	return nil
}
