package bmcconfig

import (
	"fmt"
	"testing"
)

func TestDeriveFakeMAC(t *testing.T) {
	// MD5("node-01") = 3429e0b1..., so the derived MAC carries its
	// first three bytes behind the locally-administered prefix.
	got := DeriveFakeMAC("node-01")
	want := "02:00:00:34:29:e0"
	if got != want {
		t.Fatalf("DeriveFakeMAC(node-01) = %s, want %s", got, want)
	}
}

func TestParseFakeMACSeparators(t *testing.T) {
	colon, err := ParseFakeMAC("02:00:00:a7:ac:40")
	if err != nil {
		t.Fatalf("colon form: %v", err)
	}
	dash, err := ParseFakeMAC("02-00-00-a7-ac-40")
	if err != nil {
		t.Fatalf("dash form: %v", err)
	}
	if colon != dash {
		t.Fatalf("colon and dash forms disagree: %v vs %v", colon, dash)
	}
	if colon != ([6]byte{0x02, 0x00, 0x00, 0xa7, 0xac, 0x40}) {
		t.Fatalf("unexpected bytes: %v", colon)
	}
}

func TestCanonicalFakeMACRoundTrip(t *testing.T) {
	for _, m := range [][6]byte{
		{0x02, 0x00, 0x00, 0xa7, 0xac, 0x40},
		{0xff, 0x01, 0x02, 0x03, 0x04, 0x05},
	} {
		s := fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
		roundTripped, err := ParseFakeMAC(s)
		if err != nil {
			t.Fatalf("ParseFakeMAC(%s): %v", s, err)
		}
		if roundTripped != m {
			t.Fatalf("round trip mismatch: %v != %v", roundTripped, m)
		}

		canon, err := CanonicalFakeMAC(s)
		if err != nil {
			t.Fatalf("CanonicalFakeMAC(%s): %v", s, err)
		}
		if canon != s {
			t.Fatalf("canonical form changed already-canonical input: %s != %s", canon, s)
		}
	}
}

func TestParseFakeMACRejectsWrongLength(t *testing.T) {
	if _, err := ParseFakeMAC("02:00:00"); err == nil {
		t.Fatal("expected error for short MAC")
	}
}
