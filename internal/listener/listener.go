// Package listener implements the per-VM UDP event loop: bind a socket,
// feed inbound datagrams through an ipmiengine.Engine, and write back
// whatever it produces. One Listener is one child process.
package listener

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vbmcd/internal/ipmiengine"
)

// idlePollInterval bounds how long a blocking UDP read waits before the
// loop re-checks for shutdown and re-evaluates session inactivity
// timers, so idle sessions expire even on a quiet socket.
const idlePollInterval = time.Second

// Listener owns one UDP socket and the protocol engine behind it.
type Listener struct {
	conn   *net.UDPConn
	engine *ipmiengine.Engine
	log    zerolog.Logger
}

// New binds a UDP socket at address:port and returns a Listener ready
// to Run.
func New(address string, port uint16, engine *ipmiengine.Engine, log zerolog.Logger) (*Listener, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(address), Port: int(port)}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listener: binding %s:%d: %w", address, port, err)
	}
	return &Listener{conn: conn, engine: engine, log: log}, nil
}

// Close releases every active session's keys and closes the socket.
func (l *Listener) Close() error {
	l.engine.Close()
	return l.conn.Close()
}

// Run drives the single-threaded receive/dispatch/send loop until the
// process receives SIGTERM or Close is called from another goroutine.
// The child installs its own SIGTERM handler here rather than
// inheriting the supervisor's: a targeted signal must terminate this
// child, not trigger a nested shutdown sequence.
func (l *Listener) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			l.log.Info().Msg("received SIGTERM, shutting down listener")
			_ = l.Close()
		case <-done:
		}
	}()
	defer close(done)

	buf := make([]byte, 2048)
	for {
		if err := l.conn.SetReadDeadline(time.Now().Add(idlePollInterval)); err != nil {
			return fmt.Errorf("listener: set read deadline: %w", err)
		}

		n, peer, err := l.conn.ReadFromUDP(buf)
		now := time.Now()
		l.engine.ExpireIdleSessions(now)

		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.log.Warn().Err(err).Msg("udp read error")
			continue
		}

		// A malformed datagram must never terminate the listener;
		// HandleDatagram returns nil for anything it can't parse and
		// this loop simply moves on. A panic escaping the engine is
		// also contained here rather than allowed to crash the
		// process.
		reply := l.dispatchSafely(buf[:n], peer.String(), now)
		if reply == nil {
			continue
		}

		if _, err := l.conn.WriteToUDP(reply, peer); err != nil {
			l.log.Warn().Err(err).Str("peer", peer.String()).Msg("udp write error")
		}
	}
}

func (l *Listener) dispatchSafely(data []byte, peer string, now time.Time) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("recovered from handler panic")
			reply = nil
		}
	}()
	return l.engine.HandleDatagram(data, peer, now)
}
