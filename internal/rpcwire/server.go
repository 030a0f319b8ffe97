package rpcwire

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes one decoded Request and produces the Response to
// send back.
type Handler func(req Request) Response

// Server accepts one connection at a time and serves it to completion
// before accepting the next: one request in flight, strictly
// request/reply. Lock is held for the duration of every request so
// callers can share it with a sync-pass goroutine and keep RPC
// handling and sync passes serialized.
type Server struct {
	Lock    sync.Locker
	Handler Handler
	Log     zerolog.Logger

	ln net.Listener
}

// Listen binds the server to 127.0.0.1:port.
func (s *Server) Listen(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("rpcwire: listening on port %d: %w", port, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address; valid only after a successful Listen.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until the listener is closed, handling each
// to completion before accepting the next.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("rpcwire: accept: %w", err)
		}
		s.serveOne(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) serveOne(conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := ReadFrame(conn, &req); err != nil {
		s.Log.Error().Err(err).Msg("reading request")
		return
	}

	s.Lock.Lock()
	resp := s.Handler(req)
	s.Lock.Unlock()

	if err := WriteFrame(conn, resp); err != nil {
		s.Log.Error().Err(err).Msg("writing response")
	}
}
