package ipmiengine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestEngine() *Engine {
	return New(Config{
		Username:       "admin",
		Password:       "password",
		SessionTimeout: time.Minute,
		Log:            zerolog.Nop(),
	})
}

// buildAuthCapRequestV2 assembles a v2.0-framed Get Channel Authentication
// Capabilities request: sessionless (session id/seq zero), NetFn App (6),
// cmd 0x38, channel byte with the extended-version bit set.
func buildAuthCapRequestV2() []byte {
	ipmb := []byte{0x20, 0x18, 0x00, 0x81, 0x00, cmdGetChannelAuthCapabilities, 0x8e, 0x04}

	buf := make([]byte, 0, 16+len(ipmb))
	buf = append(buf, 0x06, 0x00, 0xff, classIPMI)
	buf = append(buf, authTypeRMCPPlus, payloadTypeIPMI)
	buf = append(buf, 0, 0, 0, 0) // session id
	buf = append(buf, 0, 0, 0, 0) // session sequence
	buf = append(buf, byte(len(ipmb)), 0)
	buf = append(buf, ipmb...)
	return buf
}

func TestHandleDatagramAnswersGetChannelAuthCapabilitiesV2(t *testing.T) {
	e := newTestEngine()
	req := buildAuthCapRequestV2()

	resp := e.HandleDatagram(req, "10.0.0.5:6230", time.Now())
	if resp == nil {
		t.Fatal("expected a response, got nil")
	}

	if resp[3] != classIPMI {
		t.Fatalf("response RMCP class = %#x, want %#x", resp[3], classIPMI)
	}
	if resp[4] != authTypeRMCPPlus {
		t.Fatalf("response auth-type = %#x, want %#x", resp[4], authTypeRMCPPlus)
	}
	if resp[5] != payloadTypeIPMI {
		t.Fatalf("response payload-type = %#x, want %#x", resp[5], payloadTypeIPMI)
	}

	const cmdOffsetInResponse = 16 + 5 // session header + [clientAddr, clientLun, headerSum, myAddr, myLun]
	if len(resp) <= cmdOffsetInResponse {
		t.Fatalf("response too short: %d bytes", len(resp))
	}
	if resp[cmdOffsetInResponse] != cmdGetChannelAuthCapabilities {
		t.Fatalf("response IPMB command byte = %#x, want %#x", resp[cmdOffsetInResponse], cmdGetChannelAuthCapabilities)
	}
}

func TestHandleSessionlessApplicationRequestRejectsWrongNetFn(t *testing.T) {
	h := &sessionHeader{
		AuthType: authTypeRMCPPlus,
		IPMB:     []byte{0x20, 0x00, 0x00, 0x81, 0x00, cmdGetChannelAuthCapabilities, 0x8e, 0x04},
	}
	e := newTestEngine()
	if got := e.handleSessionlessApplicationRequest(h); got != nil {
		t.Fatalf("expected nil for non-app NetFn, got % x", got)
	}
}

func TestHandleSessionlessApplicationRequestRejectsShortFrame(t *testing.T) {
	h := &sessionHeader{AuthType: authTypeRMCPPlus, IPMB: []byte{0x20, 0x18}}
	e := newTestEngine()
	if got := e.handleSessionlessApplicationRequest(h); got != nil {
		t.Fatalf("expected nil for too-short IPMB, got % x", got)
	}
}
