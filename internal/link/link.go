// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link runs request/response exchanges with the flight controller
// over a serial port. One exchange is in flight at a time.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/msp"
)

// maxResync bounds how many non-'$' bytes are skipped looking for a frame.
const maxResync = 1024

// Port is an open serial device.
type Port interface {
	io.ReadWriteCloser
}

// flusher is implemented by drivers that can drop buffered bytes.
type flusher interface {
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Response is the payload of a device reply and the round-trip time.
type Response struct {
	Payload []int16
	// Data is the raw payload, including an odd trailing byte.
	Data    []byte
	Elapsed time.Duration
}

// Link serialises exchanges on a Port.
type Link struct {
	mu     sync.Mutex
	port   Port
	closed bool
	now    func() time.Time
}

// New wraps an already open port.
func New(port Port) *Link {
	return &Link{port: port, now: time.Now}
}

// Exchange sends cmd with payload and waits for the matching reply. Buffered
// input and output are flushed afterwards so a late or partial reply cannot
// leak into the next exchange.
func (l *Link) Exchange(cmd byte, payload []int16) (Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Response{}, &TransportError{Op: "exchange", Cmd: cmd, Err: ErrClosed}
	}
	defer l.flush()

	start := l.now()
	if _, err := l.port.Write(msp.Encode(cmd, payload)); err != nil {
		return Response{}, &TransportError{Op: "write", Cmd: cmd, Err: err}
	}

	raw, err := l.readFrame()
	if err != nil {
		return Response{}, &TransportError{Op: "read", Cmd: cmd, Err: err}
	}
	elapsed := l.now().Sub(start)

	f, err := msp.Decode(raw)
	if err != nil {
		return Response{}, &TransportError{Op: "decode", Cmd: cmd, Err: err}
	}
	if f.Direction != msp.DirFromDevice {
		// A half-duplex adapter can echo the request back.
		return Response{}, &TransportError{Op: "decode", Cmd: cmd,
			Err: &msp.FrameError{Reason: fmt.Sprintf("direction %q is not a reply", f.Direction)}}
	}
	if f.Command != cmd {
		return Response{}, &TransportError{Op: "decode", Cmd: cmd,
			Err: &msp.FrameError{Reason: fmt.Sprintf("reply for command %d", f.Command)}}
	}

	return Response{Payload: f.Payload, Data: f.Data, Elapsed: elapsed}, nil
}

// SetRawRC overrides the four primary RC channels. The device acknowledges
// with an empty frame, which is consumed here.
func (l *Link) SetRawRC(in drone.ControlInput) error {
	_, err := l.Exchange(msp.CmdSetRawRC, in.Words())
	return err
}

// Close closes the port. Later exchanges fail with ErrClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.port.Close()
}

// readFrame skips to the next '$' and reads one complete frame.
func (l *Link) readFrame() ([]byte, error) {
	var b byte
	var err error
	for skipped := 0; ; skipped++ {
		if skipped > maxResync {
			return nil, &msp.FrameError{Reason: fmt.Sprintf("no preamble in %d bytes", maxResync)}
		}
		if b, err = l.readByte(); err != nil {
			return nil, err
		}
		if b == msp.Preamble0 {
			break
		}
	}

	frame := make([]byte, msp.HeaderSize, msp.Overhead+msp.MaxPayloadSize)
	frame[0] = b
	if err := l.readFull(frame[1:msp.HeaderSize]); err != nil {
		return nil, err
	}

	rest := make([]byte, int(frame[3])+1)
	if err := l.readFull(rest); err != nil {
		return nil, err
	}
	return append(frame, rest...), nil
}

func (l *Link) readFull(buf []byte) error {
	for i := range buf {
		b, err := l.readByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

// readByte treats an empty read as a timeout. Drivers report an expired
// read timeout either as (0, nil) or (0, io.EOF).
func (l *Link) readByte() (byte, error) {
	var buf [1]byte
	n, err := l.port.Read(buf[:])
	if n == 1 {
		return buf[0], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, ErrTimeout
	}
	return 0, err
}

func (l *Link) flush() {
	f, ok := l.port.(flusher)
	if !ok {
		return
	}
	_ = f.ResetInputBuffer()
	_ = f.ResetOutputBuffer()
}
