package link

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by exchanges on a closed link.
	ErrClosed = errors.New("link closed")
	// ErrTimeout is returned when the device stops sending mid-response.
	ErrTimeout = errors.New("serial read timeout")
)

// TransportError is any failure of one request/response exchange. The
// exchange is not retried; callers log it and move on.
type TransportError struct {
	Op  string
	Cmd byte
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("link: %s (cmd %d): %v", e.Op, e.Cmd, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
