package rpcwire

import (
	"bytes"
	"testing"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	req := Request{Command: "add", Args: map[string]any{"vm_name": "node-01", "port": float64(6230)}}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, req); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	var got Request
	if err := ReadFrame(&buf, &got); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if got.Command != "add" {
		t.Errorf("Command = %q, want add", got.Command)
	}
	if got.Args["vm_name"] != "node-01" {
		t.Errorf("Args[vm_name] = %v, want node-01", got.Args["vm_name"])
	}
	if got.Args["port"] != float64(6230) {
		t.Errorf("Args[port] = %v, want 6230", got.Args["port"])
	}
}

func TestResponseErrorJoinsMsgLines(t *testing.T) {
	r := Response{RC: 1, Msg: []string{"first", "second"}}
	if r.OK() {
		t.Fatal("OK() = true for rc=1")
	}
	err := r.Error()
	if err == nil {
		t.Fatal("Error() = nil for rc=1")
	}
	want := "(1): first\nsecond"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestResponseOKHasNilError(t *testing.T) {
	r := Response{RC: 0}
	if !r.OK() {
		t.Fatal("OK() = false for rc=0")
	}
	if err := r.Error(); err != nil {
		t.Errorf("Error() = %v, want nil", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	var v map[string]any
	if err := ReadFrame(&buf, &v); err == nil {
		t.Fatal("expected error for oversized frame length")
	}
}
