package supervisor

import (
	"fmt"
	"os"

	"vbmcd/internal/bmcconfig"
	"vbmcd/internal/rpcwire"
)

// Status values reported by list/show.
const (
	statusRunning = "running"
	statusDown    = "down"
	statusError   = "error"
)

func errResponse(msg string) rpcwire.Response {
	return rpcwire.Response{RC: 1, Msg: []string{msg}}
}

func okResponse() rpcwire.Response {
	return rpcwire.Response{RC: 0}
}

func strArg(args map[string]any, key, def string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// handleAdd implements the "add" RPC: create the VM's config directory
// and store its BmcConfig atomically, or fail leaving neither behind.
func (s *Supervisor) handleAdd(args map[string]any) rpcwire.Response {
	vmName := strArg(args, "vm_name", "")
	if vmName == "" {
		return errResponse("vm_name is required")
	}

	viUser := strArg(args, "viserver_username", "")
	viPass := strArg(args, "viserver_password", "")
	if (viUser != "") != (viPass != "") {
		return errResponse("viserver_username and viserver_password must both be given, or neither")
	}

	fakemac := strArg(args, "fakemac", "")
	if fakemac == "" {
		fakemac = bmcconfig.DeriveFakeMAC(vmName)
	} else {
		canon, err := bmcconfig.CanonicalFakeMAC(fakemac)
		if err != nil {
			return errResponse(err.Error())
		}
		fakemac = canon
	}

	dir := bmcconfig.Dir(s.configDir, vmName)
	if err := os.MkdirAll(s.configDir, 0o755); err != nil {
		return errResponse(err.Error())
	}
	if err := os.Mkdir(dir, 0o700); err != nil {
		if os.IsExist(err) {
			return errResponse(err.Error())
		}
		return errResponse(fmt.Sprintf("failed to create vm %s: %s", vmName, err))
	}

	cfg := &bmcconfig.Config{
		VMName:           vmName,
		VMUUID:           strArg(args, "vm_uuid", ""),
		Username:         strArg(args, "username", "admin"),
		Password:         strArg(args, "password", "password"),
		Address:          strArg(args, "address", bmcconfig.DefaultAddress),
		Port:             uint16(intArg(args, "port", bmcconfig.DefaultPort)),
		FakeMAC:          fakemac,
		VIServer:         strArg(args, "viserver", ""),
		VIServerUsername: viUser,
		VIServerPassword: viPass,
		Active:           false,
	}

	if err := bmcconfig.Store(s.configDir, cfg); err != nil {
		_ = os.RemoveAll(dir)
		return errResponse(err.Error())
	}

	return okResponse()
}

// handleDelete implements "delete": stop the VM (ignoring stop errors)
// then remove its directory.
func (s *Supervisor) handleDelete(args map[string]any) rpcwire.Response {
	vmName := strArg(args, "vm_name", "")
	if vmName == "" || !bmcconfig.Exists(s.configDir, vmName) {
		return errResponse(fmt.Sprintf("vm %s not found", vmName))
	}

	_ = bmcconfig.SetActive(s.configDir, vmName, false)
	s.syncPass(false)

	if err := os.RemoveAll(bmcconfig.Dir(s.configDir, vmName)); err != nil {
		return errResponse(err.Error())
	}
	return okResponse()
}

// handleStart implements "start": idempotent, sets active=true and
// triggers a sync pass.
func (s *Supervisor) handleStart(args map[string]any) rpcwire.Response {
	vmName := strArg(args, "vm_name", "")
	if vmName == "" || !bmcconfig.Exists(s.configDir, vmName) {
		return errResponse(fmt.Sprintf("vm %s not found", vmName))
	}

	if err := bmcconfig.SetActive(s.configDir, vmName, true); err != nil {
		return errResponse(err.Error())
	}
	s.syncPass(false)
	return okResponse()
}

// handleStop implements "stop": sets active=false and triggers a sync pass.
func (s *Supervisor) handleStop(args map[string]any) rpcwire.Response {
	vmName := strArg(args, "vm_name", "")
	if vmName == "" || !bmcconfig.Exists(s.configDir, vmName) {
		return errResponse(fmt.Sprintf("vm %s not found", vmName))
	}

	if err := bmcconfig.SetActive(s.configDir, vmName, false); err != nil {
		return errResponse(err.Error())
	}
	s.syncPass(false)
	return okResponse()
}

// handleList implements "list": one row per VM directory, sorted
// lexicographically, with an optional fakemac column.
func (s *Supervisor) handleList(args map[string]any) rpcwire.Response {
	names, err := bmcconfig.List(s.configDir)
	if err != nil {
		return errResponse(err.Error())
	}

	withFakeMAC := boolArg(args, "fakemac")

	header := []string{"vm_name", "status", "address", "port"}
	if withFakeMAC {
		header = append(header, "fakemac")
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		cfg, err := bmcconfig.Load(s.configDir, name)
		if err != nil {
			continue
		}
		row := []string{name, s.statusFor(name), cfg.Address, fmt.Sprint(cfg.Port)}
		if withFakeMAC {
			row = append(row, cfg.FakeMAC)
		}
		rows = append(rows, row)
	}

	return rpcwire.Response{RC: 0, Header: header, Rows: rows}
}

// handleShow implements "show": BmcConfig fields as key/value rows,
// passwords redacted unless show_passwords is enabled.
func (s *Supervisor) handleShow(args map[string]any) rpcwire.Response {
	vmName := strArg(args, "vm_name", "")
	if vmName == "" || !bmcconfig.Exists(s.configDir, vmName) {
		return errResponse(fmt.Sprintf("vm %s not found", vmName))
	}

	cfg, err := bmcconfig.Load(s.configDir, vmName)
	if err != nil {
		return errResponse(err.Error())
	}

	rows := make([][]string, 0, 12)
	for _, kv := range bmcconfig.Redact(cfg, s.showPasswords) {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	rows = append(rows, []string{"status", s.statusFor(vmName)})

	return rpcwire.Response{RC: 0, Header: []string{"key", "value"}, Rows: rows}
}

// statusFor reports running/down/error for a VM given the supervisor's
// current instance table.
func (s *Supervisor) statusFor(vmName string) string {
	inst, ok := s.instances[vmName]
	if !ok {
		return statusDown
	}
	if inst.IsAlive() {
		return statusRunning
	}
	return statusError
}
