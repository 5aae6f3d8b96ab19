package bridge

import "fmt"

// SocketError is a send or receive failure on the relay socket. It is fatal
// to Serve; the caller decides whether to listen again.
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("bridge: socket %s: %v", e.Op, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}
