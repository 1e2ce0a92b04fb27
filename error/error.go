package error

import "errors"

var (
	ErrNotConnected    = errors.New("no debugger engine connected")
	ErrCommandTimeout  = errors.New("command timed out waiting for response")
	ErrNoAvailablePort = errors.New("no available port to listen on")
	ErrListenerClosed  = errors.New("listener is closed")
	ErrFixMismatch     = errors.New("original line does not match")
	ErrLineOutOfRange  = errors.New("line number out of range")
)
