package ipmiengine

import "time"

// sessionState models a RAKP session's lifecycle:
// OPENING -> AUTH1 -> ACTIVE -> (CLOSED | EXPIRED). stateAuth3 is
// defined but never entered: a verified RAKP3 moves a session from
// AUTH1 straight to ACTIVE.
type sessionState int

const (
	stateOpening sessionState = iota
	stateAuth1
	stateAuth3
	stateActive
	stateClosed
	stateExpired
)

// session is one in-process RAKP/IPMI session record, keyed by the
// managed-system session id this engine assigned when opening it.
type session struct {
	state sessionState

	peer string

	managedSessionID uint32
	remoteSessionID  uint32

	consoleRandom [16]byte
	bmcRandom     [16]byte

	username string
	role     byte

	sik []byte
	k1  []byte
	k2  []byte

	sendSeq uint32

	lastActivity time.Time
}

// touch refreshes the session's inactivity clock.
func (s *session) touch(now time.Time) {
	s.lastActivity = now
}

// expired reports whether the session has been idle longer than
// timeout.
func (s *session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.lastActivity) > timeout
}

// zeroKeys wipes session key material before the record is released.
func (s *session) zeroKeys() {
	for i := range s.consoleRandom {
		s.consoleRandom[i] = 0
	}
	for i := range s.bmcRandom {
		s.bmcRandom[i] = 0
	}
	zero(s.sik)
	zero(s.k1)
	zero(s.k2)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
