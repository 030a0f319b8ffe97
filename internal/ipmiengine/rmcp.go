package ipmiengine

// RMCP class byte values.
const (
	classASF  = 0x06
	classIPMI = 0x07
)

const asfMessageTypePresencePing = 0x80
const asfMessageTypePresencePong = 0x40

// asfIANAEnterprise is Pigeonpoint/IPMI's "ASF" IANA enterprise number,
// 4542, as carried big-endian in both the ping and the pong.
var asfIANAEnterprise = [4]byte{0x00, 0x00, 0x11, 0xbe}

// classify reports the RMCP class of a datagram, or false if the
// datagram is too short to carry a class byte or does not start with
// RMCP version 0x06 and reserved byte 0x00.
func classify(data []byte) (byte, bool) {
	if len(data) < 4 || data[0] != 0x06 || data[1] != 0x00 {
		return 0, false
	}
	return data[3], true
}

// isASFPresencePing reports whether data is an ASF Presence Ping: RMCP
// class 0x06 with sequence 0xff, ASF message type 0x80 at byte 8, and a
// message tag at byte 9 for the pong to echo.
func isASFPresencePing(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	if data[0] != 0x06 || data[1] != 0x00 || data[2] != 0xff || data[3] != classASF {
		return false
	}
	return data[8] == asfMessageTypePresencePing
}

// asfPresencePongTemplate is the fixed 28-byte Presence Pong body, byte
// 9 (the message tag) patched per-reply to echo the ping's tag.
var asfPresencePongTemplate = []byte{
	0x06, 0x00, 0xff, classASF,
	0x00, 0x00, 0x11, 0xbe, // IANA enterprise 4542
	0x40,                   // message type: presence pong
	0x00,                   // message tag, patched by buildASFPresencePong
	0x00, 0x10,
	0x00, 0x00, 0x11, 0xbe, // IANA enterprise 4542, repeated
	0x00, 0x00, 0x00, 0x00,
	0x81, // supported entities: IPMI supported
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// buildASFPresencePong builds the fixed 28-byte Presence Pong reply,
// echoing the ping's message tag (byte 9 of the ping) and advertising
// IPMI support.
func buildASFPresencePong(messageTag byte) []byte {
	pong := make([]byte, len(asfPresencePongTemplate))
	copy(pong, asfPresencePongTemplate)
	pong[9] = messageTag
	return pong
}

// isIPMIFrame reports whether data is an RMCP-framed IPMI datagram:
// class 0x07 with the fixed sequence byte 0xff sessionless servers use.
func isIPMIFrame(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	if data[0] != 0x06 || data[1] != 0x00 {
		return false
	}
	return data[2] == 0xff && data[3] == classIPMI
}
