package ipmiengine

// IPMI application-request (NetFn 6) commands handled sessionlessly,
// before any RAKP session exists.
const (
	cmdGetChannelAuthCapabilities = 0x38
	cmdGetChannelCipherSuites     = 0x54
)

// authCapBytes is the fixed "Get Channel Authentication Capabilities"
// body advertising channel 1 with MD5 and straight-password auth types
// available and per-message/user-level authentication enabled. vCenter
// only needs this to exist and look well-formed; it does not attempt
// any of the legacy auth types itself once RMCP+ is available.
var authCapBytes = []byte{0x01, 0x94, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00}

// handleSessionlessApplicationRequest answers the two application-NetFn
// commands vCenter sends before a session exists. It returns nil if the
// command or its framing isn't recognized; unrecognized traffic is
// silently discarded at every layer of this engine.
func (e *Engine) handleSessionlessApplicationRequest(h *sessionHeader) []byte {
	if len(h.IPMB) < 6 {
		return nil
	}

	netFn, myLun := netFnLun(h.IPMB[1])
	if netFn != 6 {
		return nil
	}

	myAddr := h.IPMB[0]
	rqAddr := h.IPMB[3]
	rqLun, rqSeq := splitSeqLun(h.IPMB[4])
	cmd := h.IPMB[5]

	switch cmd {
	case cmdGetChannelAuthCapabilities:
		if len(h.IPMB) < 8 {
			return nil
		}
		verChannel := h.IPMB[6]
		if verChannel&0x80 == 0 { // version bit must be set
			return nil
		}
		if verChannel&0x0f != 0x0e { // only "present channel" is served
			return nil
		}
		if h.AuthType == authTypeRMCPPlus {
			return buildAuthCapV2(myAddr, myLun, rqAddr, rqLun, rqSeq)
		}
		return buildAuthCapV15(myAddr, myLun, rqAddr, rqLun, rqSeq)

	case cmdGetChannelCipherSuites:
		return buildDefaultCipherSuites(myAddr, myLun, rqAddr, rqLun, rqSeq)
	}

	return nil
}

func splitSeqLun(b byte) (lun, seq byte) {
	return b & 0b11, b >> 2
}

// buildAuthCapV2 builds the v2.0-framed Get Channel Authentication
// Capabilities reply: RMCP(v=6, class=7), auth-type 6, payload-type 0,
// zero session id/sequence, payload length fixed at 16 regardless of
// the actual IPMB body length, then the IPMB body.
func buildAuthCapV2(myAddr, myLun, clientAddr, clientLun, clientSeq byte) []byte {
	buf := make([]byte, 0, 16+6+len(authCapBytes)+1)
	buf = append(buf, 0x06, 0x00, 0xff, classIPMI)
	buf = append(buf, authTypeRMCPPlus, payloadTypeIPMI)
	buf = append(buf, 0, 0, 0, 0) // session id
	buf = append(buf, 0, 0, 0, 0) // session sequence
	buf = append(buf, 0x10, 0x00) // payload length, fixed at 16

	headerData := []byte{clientAddr, clientLun | (7 << 2)}
	headerSum := ipmiChecksum(headerData...)
	buf = append(buf, headerData...)
	buf = append(buf, headerSum, myAddr, myLun|(clientSeq<<2), cmdGetChannelAuthCapabilities)
	buf = append(buf, authCapBytes...)

	bodyStart := len(buf) - (3 + len(authCapBytes))
	buf = append(buf, ipmiChecksum(buf[bodyStart:]...))
	return buf
}

// buildAuthCapV15 builds the legacy IPMI v1.5 equivalent of
// buildAuthCapV2: no RMCP+ auth-type/payload-type/session fields, just
// the classic authtype/session-sequence/session-id/message-length
// session wrapper around the same IPMB body shape.
func buildAuthCapV15(myAddr, myLun, clientAddr, clientLun, clientSeq byte) []byte {
	buf := make([]byte, 0, 14+6+len(authCapBytes)+1)
	buf = append(buf, 0x06, 0x00, 0xff, classIPMI)
	buf = append(buf, 0x00)       // authtype none
	buf = append(buf, 0, 0, 0, 0) // session sequence
	buf = append(buf, 0, 0, 0, 0) // session id
	lengthPos := len(buf)
	buf = append(buf, 0) // message length, patched below

	headerData := []byte{clientAddr, clientLun | (7 << 2)}
	headerSum := ipmiChecksum(headerData...)
	buf = append(buf, headerData...)
	buf = append(buf, headerSum, myAddr, myLun|(clientSeq<<2), cmdGetChannelAuthCapabilities)
	buf = append(buf, authCapBytes...)

	bodyStart := len(buf) - (3 + len(authCapBytes))
	buf = append(buf, ipmiChecksum(buf[bodyStart:]...))
	buf[lengthPos] = byte(len(buf) - (lengthPos + 1))
	return buf
}

// defaultCipherSuiteRecord advertises cipher suite 3 (RAKP-HMAC-SHA1 /
// HMAC-SHA1-96 / AES-CBC-128), the suite this engine's RAKP handshake
// implements.
var defaultCipherSuiteRecord = []byte{0xc0, 0x00, 0x01, 0x00, 0x01, 0x03}

func buildDefaultCipherSuites(myAddr, myLun, clientAddr, clientLun, clientSeq byte) []byte {
	buf := make([]byte, 0, 16+6+len(defaultCipherSuiteRecord)+1)
	buf = append(buf, 0x06, 0x00, 0xff, classIPMI)
	buf = append(buf, authTypeRMCPPlus, payloadTypeIPMI)
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, 0, 0, 0, 0)
	lengthPos := len(buf)
	buf = append(buf, 0, 0)

	headerData := []byte{clientAddr, clientLun | (7 << 2)}
	headerSum := ipmiChecksum(headerData...)
	buf = append(buf, headerData...)
	buf = append(buf, headerSum, myAddr, myLun|(clientSeq<<2), cmdGetChannelCipherSuites)
	buf = append(buf, defaultCipherSuiteRecord...)

	bodyStart := len(buf) - (3 + len(defaultCipherSuiteRecord))
	buf = append(buf, ipmiChecksum(buf[bodyStart:]...))

	payloadLen := len(buf) - (lengthPos + 2)
	buf[lengthPos] = byte(payloadLen)
	buf[lengthPos+1] = byte(payloadLen >> 8)
	return buf
}
