package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"vbmcd/internal/bmcconfig"
	"vbmcd/internal/rpcwire"
)

// handleOK calls Handle and returns the result's OK(), working around OK()
// being a pointer-receiver method on a value returned directly from Handle.
func handleOK(t *testing.T, s *Supervisor, req rpcwire.Request) bool {
	t.Helper()
	resp := s.Handle(req)
	return resp.OK()
}

// newTestSupervisor builds a Supervisor whose spawnLocked always fails
// fast (SelfExe points at a nonexistent path), so sync passes never
// leave a real child process behind during tests.
func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	dir := t.TempDir()
	return New(Config{
		ConfigDir:      dir,
		SelfExe:        filepath.Join(dir, "does-not-exist-vbmcd"),
		SessionTimeout: time.Minute,
		SyncInterval:   time.Hour,
		Log:            zerolog.Nop(),
	})
}

func TestHandleAddRejectsMixedVICredentials(t *testing.T) {
	s := newTestSupervisor(t)

	resp := s.Handle(requestOf("add", map[string]any{
		"vm_name":           "node-01",
		"viserver_username": "root",
	}))
	require.False(t, resp.OK())
	require.False(t, bmcconfig.Exists(s.configDir, "node-01"))
}

func TestHandleAddThenShowRedactsPassword(t *testing.T) {
	s := newTestSupervisor(t)

	resp := s.Handle(requestOf("add", map[string]any{"vm_name": "node-01"}))
	require.True(t, resp.OK())
	require.True(t, bmcconfig.Exists(s.configDir, "node-01"))

	show := s.Handle(requestOf("show", map[string]any{"vm_name": "node-01"}))
	require.True(t, show.OK())

	found := false
	for _, row := range show.Rows {
		if row[0] == "password" {
			require.Equal(t, "***", row[1])
			found = true
		}
	}
	require.True(t, found, "expected a password row")
}

func TestHandleAddDuplicateFails(t *testing.T) {
	s := newTestSupervisor(t)

	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "node-01"})))
	resp := s.Handle(requestOf("add", map[string]any{"vm_name": "node-01"}))
	require.False(t, resp.OK())
}

func TestHandleDeleteMissingFails(t *testing.T) {
	s := newTestSupervisor(t)
	resp := s.Handle(requestOf("delete", map[string]any{"vm_name": "ghost"}))
	require.False(t, resp.OK())
}

func TestHandleDeleteRemovesDirectory(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "node-01"})))

	resp := s.Handle(requestOf("delete", map[string]any{"vm_name": "node-01"}))
	require.True(t, resp.OK())
	require.False(t, bmcconfig.Exists(s.configDir, "node-01"))
}

func TestHandleStartSetsActiveTrue(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "node-01"})))

	resp := s.Handle(requestOf("start", map[string]any{"vm_name": "node-01"}))
	require.True(t, resp.OK())

	cfg, err := bmcconfig.Load(s.configDir, "node-01")
	require.NoError(t, err)
	require.True(t, cfg.Active)

	// spawnLocked failed fast (no real binary); the instance table
	// must not retain a phantom entry.
	require.Nil(t, s.instances["node-01"])
}

func TestHandleStopSetsActiveFalse(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "node-01"})))
	require.True(t, handleOK(t, s, requestOf("start", map[string]any{"vm_name": "node-01"})))

	resp := s.Handle(requestOf("stop", map[string]any{"vm_name": "node-01"}))
	require.True(t, resp.OK())

	cfg, err := bmcconfig.Load(s.configDir, "node-01")
	require.NoError(t, err)
	require.False(t, cfg.Active)
}

func TestHandleListSortedByName(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "zeta"})))
	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "alpha"})))

	resp := s.Handle(requestOf("list", nil))
	require.True(t, resp.OK())
	require.Len(t, resp.Rows, 2)
	require.Equal(t, "alpha", resp.Rows[0][0])
	require.Equal(t, "zeta", resp.Rows[1][0])

	for _, row := range resp.Rows {
		require.Equal(t, statusDown, row[1])
	}
}

func TestHandleListWithFakeMACColumn(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, handleOK(t, s, requestOf("add", map[string]any{"vm_name": "node-01"})))

	resp := s.Handle(requestOf("list", map[string]any{"fakemac": true}))
	require.True(t, resp.OK())
	require.Equal(t, []string{"vm_name", "status", "address", "port", "fakemac"}, resp.Header)
	require.Len(t, resp.Rows[0], 5)
}

func requestOf(command string, args map[string]any) rpcwire.Request {
	return rpcwire.Request{Command: command, Args: args}
}
