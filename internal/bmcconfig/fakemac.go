package bmcconfig

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"strings"
)

// DeriveFakeMAC computes the deterministic pseudo-MAC reported for a VM
// that has none configured: 02:00:00:H0:H1:H2 where H = MD5(vm_name).
// The leading 02:00:00 sets the locally-administered bit.
func DeriveFakeMAC(vmName string) string {
	sum := md5.Sum([]byte(vmName))
	return fmt.Sprintf("02:00:00:%02x:%02x:%02x", sum[0], sum[1], sum[2])
}

// ParseFakeMAC accepts either ':' or '-' separated 6-byte MAC strings and
// returns the raw bytes.
func ParseFakeMAC(s string) ([6]byte, error) {
	var out [6]byte
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != 6 {
		return out, fmt.Errorf("fakemac %q: expected 6 octets, got %d", s, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("fakemac %q: invalid octet %q: %w", s, p, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// CanonicalFakeMAC normalizes any accepted separator form to the
// ':'-joined canonical storage form.
func CanonicalFakeMAC(s string) (string, error) {
	b, err := ParseFakeMAC(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5]), nil
}
