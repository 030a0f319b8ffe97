package ipmiengine

import (
	"bytes"
	"testing"
)

func TestIsASFPresencePingRecognizesPing(t *testing.T) {
	ping := []byte{0x06, 0x00, 0xff, 0x06, 0x00, 0x00, 0x11, 0xbe, 0x80, 0x17, 0x00, 0x00}
	if !isASFPresencePing(ping) {
		t.Fatalf("expected %x to be recognized as an ASF Presence Ping", ping)
	}
}

func TestBuildASFPresencePongEchoesTagAndMatchesWireFormat(t *testing.T) {
	ping := []byte{0x06, 0x00, 0xff, 0x06, 0x00, 0x00, 0x11, 0xbe, 0x80, 0x17, 0x00, 0x00}
	if !isASFPresencePing(ping) {
		t.Fatal("fixture is not a valid presence ping")
	}

	want := []byte{
		0x06, 0x00, 0xff, 0x06, 0x00, 0x00, 0x11, 0xbe, 0x40, 0x17, 0x00, 0x10,
		0x00, 0x00, 0x11, 0xbe, 0x00, 0x00, 0x00, 0x00, 0x81, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}

	got := buildASFPresencePong(ping[9])
	if len(got) != 28 {
		t.Fatalf("pong length = %d, want 28", len(got))
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("pong = % x, want % x", got, want)
	}
}

func TestClassifyRejectsNonRMCP(t *testing.T) {
	if _, ok := classify([]byte{0x01, 0x02}); ok {
		t.Fatal("expected short datagram to be rejected")
	}
	if _, ok := classify([]byte{0x01, 0x00, 0xff, 0x06}); ok {
		t.Fatal("expected non-RMCP version byte to be rejected")
	}
}

func TestIsIPMIFrameRecognizesClass7(t *testing.T) {
	if !isIPMIFrame([]byte{0x06, 0x00, 0xff, 0x07, 0x00}) {
		t.Fatal("expected class 0x07 datagram to be recognized as an IPMI frame")
	}
	if isIPMIFrame([]byte{0x06, 0x00, 0xff, 0x06, 0x00}) {
		t.Fatal("ASF class datagram should not be recognized as an IPMI frame")
	}
}
