package ipmiengine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"time"
)

// RAKP status codes (IPMI 2.0 §13.24).
const (
	rakpStatusOK               = 0x00
	rakpStatusUnauthorizedName = 0x0d
	rakpStatusInvalidIntegrity = 0x0f
)

// rakpK1Const and rakpK2Const are the fixed constants RAKP uses to
// derive K1/K2 from the session integrity key (IPMI 2.0 §13.32).
var (
	rakpK1Const = bytesOf(0x01, 20)
	rakpK2Const = bytesOf(0x02, 20)
)

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func hmacSHA1(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha1.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

// handleOpenSessionRequest processes a payload-type 0x10 Open Session
// Request, spawning a new OPENING session. The offered
// authentication/integrity/confidentiality algorithms are not
// negotiated; this engine only implements RAKP-HMAC-SHA1 with
// HMAC-SHA1-96 integrity and answers with that fixed selection, which
// is cipher suite 3, the suite vCenter's IPMI client defaults to.
func (e *Engine) handleOpenSessionRequest(payload []byte, peer string, now time.Time) []byte {
	if len(payload) < 8 {
		return nil
	}

	messageTag := payload[0]
	maxPrivilege := payload[1]
	remoteSessionID := binary.LittleEndian.Uint32(payload[4:8])

	var managedID uint32
	for {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil
		}
		managedID = binary.LittleEndian.Uint32(b[:])
		if managedID != 0 {
			if _, exists := e.sessions[managedID]; !exists {
				break
			}
		}
	}

	sess := &session{
		state:            stateOpening,
		peer:             peer,
		managedSessionID: managedID,
		remoteSessionID:  remoteSessionID,
		role:             maxPrivilege,
	}
	sess.touch(now)
	e.sessions[managedID] = sess

	resp := make([]byte, 0, 28)
	resp = append(resp, messageTag, rakpStatusOK, maxPrivilege, 0x00)
	resp = append(resp, le32(remoteSessionID)...)
	resp = append(resp, le32(managedID)...)
	resp = append(resp, authAlgPayload, 0x00, 0x00, 0x00, algHMACSHA1, 0x00, 0x00, 0x00)
	resp = append(resp, integrityAlgPayload, 0x00, 0x00, 0x00, algHMACSHA196, 0x00, 0x00, 0x00)
	resp = append(resp, confAlgPayload, 0x00, 0x00, 0x00, algAESCBC128, 0x00, 0x00, 0x00)

	return buildV2Frame(payloadTypeOpenSessionResponse, 0, 0, resp)
}

// Algorithm payload tags and the single algorithm value each advertises
// (IPMI 2.0 §13.17-13.19); only RAKP-HMAC-SHA1/HMAC-SHA1-96/AES-CBC-128
// is offered.
const (
	authAlgPayload      = 0x00
	integrityAlgPayload = 0x01
	confAlgPayload      = 0x02
	algHMACSHA1         = 0x01
	algHMACSHA196       = 0x01
	algAESCBC128        = 0x01
)

// handleRAKP1 processes RAKP Message 1, deriving the session integrity
// key and returning RAKP Message 2.
func (e *Engine) handleRAKP1(payload []byte, now time.Time) []byte {
	if len(payload) < 28 {
		return nil
	}

	messageTag := payload[0]
	managedID := binary.LittleEndian.Uint32(payload[4:8])
	sess, ok := e.sessions[managedID]
	if !ok || sess.state != stateOpening {
		return nil
	}

	copy(sess.consoleRandom[:], payload[8:24])
	requestedRole := payload[24]
	usernameLen := int(payload[27])
	if len(payload) < 28+usernameLen {
		return nil
	}
	username := string(payload[28 : 28+usernameLen])

	sess.username = username
	sess.role = requestedRole

	if _, err := rand.Read(sess.bmcRandom[:]); err != nil {
		return nil
	}

	password, known := e.authData[username]
	if !known {
		return e.rakp2Error(sess, messageTag, rakpStatusUnauthorizedName)
	}
	key := []byte(password)

	roleByte := []byte{requestedRole}
	lenByte := []byte{byte(usernameLen)}
	nameBytes := []byte(username)

	sess.sik = hmacSHA1(key, sess.consoleRandom[:], sess.bmcRandom[:], e.bmcGUID[:], roleByte, lenByte, nameBytes)

	authCode := hmacSHA1(key,
		le32(sess.remoteSessionID), le32(sess.managedSessionID),
		sess.consoleRandom[:], sess.bmcRandom[:],
		e.bmcGUID[:], roleByte, lenByte, nameBytes,
	)

	sess.state = stateAuth1
	sess.touch(now)

	resp := make([]byte, 0, 4+16+16+len(authCode))
	resp = append(resp, messageTag, rakpStatusOK, 0x00, 0x00)
	resp = append(resp, le32(sess.remoteSessionID)...)
	resp = append(resp, sess.bmcRandom[:]...)
	resp = append(resp, e.bmcGUID[:]...)
	resp = append(resp, authCode...)

	return buildV2Frame(payloadTypeRAKP2, 0, 0, resp)
}

func (e *Engine) rakp2Error(sess *session, messageTag, status byte) []byte {
	resp := make([]byte, 0, 8)
	resp = append(resp, messageTag, status, 0x00, 0x00)
	resp = append(resp, le32(sess.remoteSessionID)...)
	delete(e.sessions, sess.managedSessionID)
	return buildV2Frame(payloadTypeRAKP2, 0, 0, resp)
}

// handleRAKP3 verifies RAKP Message 3's authentication code, derives
// K1/K2, and activates the session, returning RAKP Message 4.
func (e *Engine) handleRAKP3(payload []byte, now time.Time) []byte {
	if len(payload) < 8 {
		return nil
	}

	messageTag := payload[0]
	managedID := binary.LittleEndian.Uint32(payload[4:8])
	sess, ok := e.sessions[managedID]
	if !ok || sess.state != stateAuth1 {
		return nil
	}

	authCode := payload[8:]
	password := e.authData[sess.username]
	key := []byte(password)

	roleByte := []byte{sess.role}
	lenByte := []byte{byte(len(sess.username))}
	nameBytes := []byte(sess.username)

	expected := hmacSHA1(key, sess.bmcRandom[:], le32(sess.remoteSessionID), roleByte, lenByte, nameBytes)
	if !hmac.Equal(expected, authCode) {
		delete(e.sessions, managedID)
		resp := append([]byte{messageTag, rakpStatusInvalidIntegrity, 0x00, 0x00}, le32(sess.remoteSessionID)...)
		return buildV2Frame(payloadTypeRAKP4, 0, 0, resp)
	}

	sess.k1 = hmacSHA1(sess.sik, rakpK1Const)
	sess.k2 = hmacSHA1(sess.sik, rakpK2Const)

	icv := hmacSHA1(sess.sik, sess.consoleRandom[:], le32(sess.managedSessionID), e.bmcGUID[:])[:12]

	sess.state = stateActive
	sess.touch(now)

	resp := make([]byte, 0, 8+len(icv))
	resp = append(resp, messageTag, rakpStatusOK, 0x00, 0x00)
	resp = append(resp, le32(sess.remoteSessionID)...)
	resp = append(resp, icv...)

	return buildV2Frame(payloadTypeRAKP4, sess.managedSessionID, 0, resp)
}

// buildV2Frame wraps payload in the fixed 16-byte RMCP+ session header.
func buildV2Frame(payloadType byte, sessionID, sessionSeq uint32, payload []byte) []byte {
	buf := make([]byte, 0, 16+len(payload))
	buf = append(buf, 0x06, 0x00, 0xff, classIPMI)
	buf = append(buf, authTypeRMCPPlus, payloadType)
	buf = append(buf, le32(sessionID)...)
	buf = append(buf, le32(sessionSeq)...)

	var ln [2]byte
	binary.LittleEndian.PutUint16(ln[:], uint16(len(payload)))
	buf = append(buf, ln[:]...)
	buf = append(buf, payload...)
	return buf
}
