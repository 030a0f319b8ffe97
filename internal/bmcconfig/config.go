// Package bmcconfig implements the per-VM BmcConfig record: parsing and
// serializing the INI-shaped config file under
// <config_dir>/<vm_name>/config, and deriving the fake MAC address
// reported to vCenter.
package bmcconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
)

// Section is the INI section heading of the on-disk per-VM config file.
const Section = "VirtualBMC"

const configFileName = "config"

// DefaultAddress and DefaultPort are used when a config file omits them.
const (
	DefaultAddress = "::"
	DefaultPort    = 6230
)

// Config is one BmcConfig record.
type Config struct {
	VMName   string `ini:"vm_name"`
	VMUUID   string `ini:"vm_uuid,omitempty"`
	Username string `ini:"username"`
	Password string `ini:"password"`
	Address  string `ini:"address"`
	Port     uint16 `ini:"port"`
	FakeMAC  string `ini:"fakemac"`

	VIServer         string `ini:"viserver,omitempty"`
	VIServerUsername string `ini:"viserver_username,omitempty"`
	VIServerPassword string `ini:"viserver_password,omitempty"`

	Active bool `ini:"active"`
}

// Dir returns <config_dir>/<vm_name>.
func Dir(configDir, vmName string) string {
	return filepath.Join(configDir, vmName)
}

func path(configDir, vmName string) string {
	return filepath.Join(Dir(configDir, vmName), configFileName)
}

// Exists reports whether a BmcConfig directory exists for vmName.
// Directory existence and config existence are meant to coincide.
func Exists(configDir, vmName string) bool {
	_, err := os.Stat(Dir(configDir, vmName))
	return err == nil
}

// Load parses <config_dir>/<vm_name>/config. Unknown keys are ignored;
// missing keys default to the zero value, except fakemac, address and
// port which fall back to their documented defaults (fakemac is derived
// deterministically when absent).
func Load(configDir, vmName string) (*Config, error) {
	p := path(configDir, vmName)
	f, err := ini.Load(p)
	if err != nil {
		return nil, fmt.Errorf("bmcconfig: reading %s: %w", p, err)
	}

	sec := f.Section(Section)
	cfg := &Config{
		VMName:           vmName,
		VMUUID:           sec.Key("vm_uuid").String(),
		Username:         sec.Key("username").String(),
		Password:         sec.Key("password").String(),
		Address:          sec.Key("address").MustString(DefaultAddress),
		VIServer:         sec.Key("viserver").String(),
		VIServerUsername: sec.Key("viserver_username").String(),
		VIServerPassword: sec.Key("viserver_password").String(),
	}

	port, err := sec.Key("port").Int()
	if err != nil || port == 0 {
		port = DefaultPort
	}
	cfg.Port = uint16(port)

	rawActive := sec.Key("active").String()
	active, ok := parseBool(rawActive)
	if !ok {
		log.Warn().Str("vm_name", vmName).Str("value", rawActive).
			Msg("unrecognized active value, treating as false")
	}
	cfg.Active = active

	fakemac := sec.Key("fakemac").String()
	if fakemac == "" {
		cfg.FakeMAC = DeriveFakeMAC(vmName)
	} else {
		canon, err := CanonicalFakeMAC(fakemac)
		if err != nil {
			return nil, fmt.Errorf("bmcconfig: %s: %w", p, err)
		}
		cfg.FakeMAC = canon
	}

	return cfg, nil
}

// parseBool is a case-insensitive "true"/"false" parser. ok reports
// whether the input was one of the recognized forms (an absent value
// counts as a valid false); anything else is false and warned about by
// the caller.
func parseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false", "":
		return false, true
	default:
		return false, false
	}
}

// Store writes cfg to <config_dir>/<vm_name>/config. The caller is
// responsible for having created the VM directory first.
func Store(configDir string, cfg *Config) error {
	f := ini.Empty()
	sec, err := f.NewSection(Section)
	if err != nil {
		return err
	}

	set := func(key, value string) {
		if value != "" {
			sec.Key(key).SetValue(value)
		}
	}

	set("vm_name", cfg.VMName)
	set("vm_uuid", cfg.VMUUID)
	set("username", cfg.Username)
	set("password", cfg.Password)
	set("address", cfg.Address)
	sec.Key("port").SetValue(strconv.Itoa(int(cfg.Port)))
	set("fakemac", cfg.FakeMAC)
	set("viserver", cfg.VIServer)
	set("viserver_username", cfg.VIServerUsername)
	set("viserver_password", cfg.VIServerPassword)
	sec.Key("active").SetValue(strconv.FormatBool(cfg.Active))

	p := path(configDir, cfg.VMName)
	if err := f.SaveTo(p); err != nil {
		return fmt.Errorf("bmcconfig: writing %s: %w", p, err)
	}
	return nil
}

// SetActive updates only the active flag on disk, re-reading the rest
// of the record first so unrelated fields survive.
func SetActive(configDir, vmName string, active bool) error {
	cfg, err := Load(configDir, vmName)
	if err != nil {
		return err
	}
	if cfg.Active == active {
		return nil
	}
	cfg.Active = active
	return Store(configDir, cfg)
}

// List returns the names of VM directories under configDir, sorted
// lexicographically. A missing config_dir yields an empty list rather
// than an error.
func List(configDir string) ([]string, error) {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bmcconfig: listing %s: %w", configDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Redact returns a copy of cfg's fields as key/value pairs with any
// password-bearing value masked, unless showPasswords is set.
func Redact(cfg *Config, showPasswords bool) [][2]string {
	rows := [][2]string{
		{"vm_name", cfg.VMName},
		{"vm_uuid", cfg.VMUUID},
		{"username", cfg.Username},
		{"password", cfg.Password},
		{"address", cfg.Address},
		{"port", strconv.Itoa(int(cfg.Port))},
		{"fakemac", cfg.FakeMAC},
		{"viserver", cfg.VIServer},
		{"viserver_username", cfg.VIServerUsername},
		{"viserver_password", cfg.VIServerPassword},
		{"active", strconv.FormatBool(cfg.Active)},
	}

	if showPasswords {
		return rows
	}

	for i := range rows {
		if strings.Contains(rows[i][0], "password") {
			rows[i][1] = "***"
		}
	}
	return rows
}
