package rpcwire

import (
	"fmt"
	"net"
	"time"
)

// Linger is the deadline lingerClose sets on a finished connection
// immediately before closing it. Close itself does not wait for unsent
// data to drain.
const Linger = 5 * time.Millisecond

// Client is a single-use request/reply connection to the supervisor.
// It carries exactly one request in flight at a time.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient returns a Client that dials 127.0.0.1:port for each call,
// giving each request up to timeout to complete.
func NewClient(port int, timeout time.Duration) *Client {
	return &Client{addr: fmt.Sprintf("127.0.0.1:%d", port), timeout: timeout}
}

// Communicate sends command+args and waits for the supervisor's reply,
// failing with a timeout error if none arrives within c.timeout.
func (c *Client) Communicate(command string, args map[string]any) (*Response, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("rpcwire: connecting to supervisor on %s: %w", c.addr, err)
	}
	defer lingerClose(conn)

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("rpcwire: setting deadline: %w", err)
	}

	req := Request{Command: command, Args: args}
	if err := WriteFrame(conn, req); err != nil {
		return nil, fmt.Errorf("rpcwire: sending request: %w", err)
	}

	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("rpcwire: server response timed out after %s", c.timeout)
		}
		return nil, fmt.Errorf("rpcwire: reading response: %w", err)
	}

	return &resp, nil
}

func lingerClose(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(Linger))
	_ = conn.Close()
}
