// Package ipmiengine implements the RMCP/ASF framing, sessionless IPMI
// negotiation, RAKP session establishment, and in-session command
// dispatch a per-VM listener needs to answer vCenter's IPMI-over-LAN
// traffic.
package ipmiengine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine holds the wire-protocol state for one listener: its session
// table, credentials, and the hypervisor it drives chassis commands
// through. One Engine belongs to exactly one listener process.
type Engine struct {
	hv             HypervisorClient
	log            zerolog.Logger
	authData       map[string]string
	bmcGUID        [16]byte
	fakeMAC        [6]byte
	sessionTimeout time.Duration

	sessions map[uint32]*session
}

// Config collects the parameters needed to construct an Engine.
type Config struct {
	Username       string
	Password       string
	FakeMAC        [6]byte
	SessionTimeout time.Duration
	Hypervisor     HypervisorClient
	Log            zerolog.Logger
}

// New builds an Engine with a freshly generated BMC GUID (surfaced
// during RAKP as the managed system's identifier).
func New(cfg Config) *Engine {
	return &Engine{
		hv:             cfg.Hypervisor,
		log:            cfg.Log,
		authData:       map[string]string{cfg.Username: cfg.Password},
		bmcGUID:        [16]byte(uuid.New()),
		fakeMAC:        cfg.FakeMAC,
		sessionTimeout: cfg.SessionTimeout,
		sessions:       make(map[uint32]*session),
	}
}

// HandleDatagram processes one inbound UDP datagram and returns the
// bytes to send back, or nil if nothing should be sent.
func (e *Engine) HandleDatagram(data []byte, peer string, now time.Time) []byte {
	class, ok := classify(data)
	if !ok {
		return nil
	}

	switch class {
	case classASF:
		if isASFPresencePing(data) {
			return buildASFPresencePong(data[9])
		}
		return nil

	case classIPMI:
		return e.handleIPMI(data, peer, now)
	}

	return nil
}

func (e *Engine) handleIPMI(data []byte, peer string, now time.Time) []byte {
	if !isIPMIFrame(data) {
		return nil
	}

	h, ok := parseSessionHeader(data)
	if !ok {
		return nil
	}

	if h.AuthType == authTypeRMCPPlus {
		switch h.PayloadType {
		case payloadTypeOpenSessionRequest:
			return e.handleOpenSessionRequest(h.IPMB, peer, now)
		case payloadTypeRAKP1:
			return e.handleRAKP1(h.IPMB, now)
		case payloadTypeRAKP3:
			return e.handleRAKP3(h.IPMB, now)
		}
	}

	if h.SessionID != 0 {
		sess, ok := e.sessions[h.SessionID]
		if !ok || sess.state != stateActive || sess.peer != peer {
			return nil
		}
		sess.touch(now)
		return e.handleInSession(sess, h)
	}

	return e.handleSessionlessApplicationRequest(h)
}

// ExpireIdleSessions closes and zeroes the keys of every session whose
// inactivity timer has elapsed. A listener calls this once per
// event-loop iteration alongside the blocking receive.
func (e *Engine) ExpireIdleSessions(now time.Time) {
	for id, sess := range e.sessions {
		if sess.expired(now, e.sessionTimeout) {
			sess.zeroKeys()
			sess.state = stateExpired
			delete(e.sessions, id)
		}
	}
}

// Close tears down every active session, zeroing its keys, on listener
// shutdown.
func (e *Engine) Close() {
	for id, sess := range e.sessions {
		sess.zeroKeys()
		sess.state = stateClosed
		delete(e.sessions, id)
	}
}
