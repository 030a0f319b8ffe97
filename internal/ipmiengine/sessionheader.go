package ipmiengine

import "encoding/binary"

// authTypeRMCPPlus marks an IPMI v2.0 RMCP+ envelope.
// Any other auth-type byte is a legacy IPMI v1.5 session.
const authTypeRMCPPlus = 0x06

// Payload types carried in the v2.0 session header.
const (
	payloadTypeIPMI                = 0x00
	payloadTypeOpenSessionRequest  = 0x10
	payloadTypeOpenSessionResponse = 0x11
	payloadTypeRAKP1               = 0x12
	payloadTypeRAKP2               = 0x13
	payloadTypeRAKP3               = 0x14
	payloadTypeRAKP4               = 0x15
)

// sessionHeader is the normalized view of an inbound datagram's session
// framing, valid for both legacy IPMI v1.5 and RMCP+ v2.0 envelopes. IPMB
// holds the IPMB-shaped request/response body: [rsAddr, netFnLUN,
// headerChecksum, rqAddr, rqSeqLUN, cmd, data..., bodyChecksum].
type sessionHeader struct {
	AuthType    byte
	PayloadType byte
	SessionID   uint32
	SessionSeq  uint32
	IPMB        []byte
}

// parseSessionHeader extracts a sessionHeader from an RMCP-framed IPMI
// datagram (data[3] == classIPMI already validated by the caller).
func parseSessionHeader(data []byte) (*sessionHeader, bool) {
	if len(data) < 5 {
		return nil, false
	}

	h := &sessionHeader{AuthType: data[4]}

	if h.AuthType == authTypeRMCPPlus {
		if len(data) < 16 {
			return nil, false
		}
		h.PayloadType = data[5] & 0x3f
		h.SessionID = binary.LittleEndian.Uint32(data[6:10])
		h.SessionSeq = binary.LittleEndian.Uint32(data[10:14])
		payloadLen := int(binary.LittleEndian.Uint16(data[14:16]))
		start := 16
		if start+payloadLen > len(data) {
			payloadLen = len(data) - start
		}
		h.IPMB = data[start : start+payloadLen]
		return h, true
	}

	if len(data) < 14 {
		return nil, false
	}
	h.PayloadType = payloadTypeIPMI
	h.SessionSeq = binary.LittleEndian.Uint32(data[5:9])
	h.SessionID = binary.LittleEndian.Uint32(data[9:13])
	msgLen := int(data[13])
	start := 14
	if start+msgLen > len(data) {
		msgLen = len(data) - start
	}
	h.IPMB = data[start : start+msgLen]
	return h, true
}

// netFnLun splits a combined NetFn/LUN byte.
func netFnLun(b byte) (netFn, lun byte) {
	return (b & 0b11111100) >> 2, b & 0b11
}
