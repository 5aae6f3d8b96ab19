// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bridge serves the operator over UDP: it decodes relay commands,
// routes them to the arming machine, the RC override path and the telemetry
// sampler, and sends telemetry back to the operator.
package bridge

import (
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/relay"
	"github.com/relabs-tech/msp_bridge/internal/sampler"
)

// maxDatagram is larger than any relay frame the operator sends.
const maxDatagram = 2048

// Armer runs the arming gesture.
type Armer interface {
	Arm() error
	Disarm() error
}

// RCSender forwards stick overrides to the device.
type RCSender interface {
	SetRawRC(in drone.ControlInput) error
}

// Telemetry is the sampler as seen by the dispatcher.
type Telemetry interface {
	Sample(cat drone.Category) (drone.Sample, error)
	Start(op sampler.Sink) error
	Stop()
	Running() bool
}

// Options selects the wire codecs and code numbering.
type Options struct {
	Inbound  relay.Codec
	Outbound relay.Codec
	Codes    relay.Codes
}

// DefaultOptions is little-endian in, big-endian out, default codes.
func DefaultOptions() Options {
	return Options{Inbound: relay.Inbound, Outbound: relay.Outbound, Codes: relay.DefaultCodes()}
}

// Stats counts relay traffic.
type Stats struct {
	FramesIn  uint64 `json:"frames_in"`
	FramesOut uint64 `json:"frames_out"`
	BytesIn   uint64 `json:"bytes_in"`
	BytesOut  uint64 `json:"bytes_out"`
	Dropped   uint64 `json:"dropped"`
}

// Dispatcher owns the relay socket.
type Dispatcher struct {
	conn      net.PacketConn
	opts      Options
	arming    Armer
	rc        RCSender
	telemetry Telemetry

	mu       sync.Mutex
	operator net.Addr
	closed   bool

	closeOnce sync.Once
	closeErr  error

	framesIn, framesOut atomic.Uint64
	bytesIn, bytesOut   atomic.Uint64
	dropped             atomic.Uint64
}

// Listen opens a UDP socket on addr and wraps it in a Dispatcher.
func Listen(addr string, arming Armer, rc RCSender, telemetry Telemetry, opts Options) (*Dispatcher, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, &SocketError{Op: "listen", Err: err}
	}
	log.Printf("bridge: listening for operator on %s", conn.LocalAddr())
	return New(conn, arming, rc, telemetry, opts), nil
}

// New wraps an open packet socket.
func New(conn net.PacketConn, arming Armer, rc RCSender, telemetry Telemetry, opts Options) *Dispatcher {
	return &Dispatcher{
		conn:      conn,
		opts:      opts,
		arming:    arming,
		rc:        rc,
		telemetry: telemetry,
	}
}

// Addr is the local socket address.
func (d *Dispatcher) Addr() net.Addr {
	return d.conn.LocalAddr()
}

// Operator returns the address of the last StartConnection sender.
func (d *Dispatcher) Operator() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.operator
}

// Stats returns the traffic counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		FramesIn:  d.framesIn.Load(),
		FramesOut: d.framesOut.Load(),
		BytesIn:   d.bytesIn.Load(),
		BytesOut:  d.bytesOut.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// Serve handles datagrams until the operator ends the connection, Close is
// called, or the socket fails. The first two return nil; a socket failure
// returns *SocketError. The sampler task is stopped before Serve returns.
func (d *Dispatcher) Serve() error {
	defer d.shutdown()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := d.conn.ReadFrom(buf)
		if err != nil {
			if d.isClosed() {
				return nil
			}
			return &SocketError{Op: "receive", Err: err}
		}
		d.framesIn.Add(1)
		d.bytesIn.Add(uint64(n))

		f, err := d.opts.Inbound.Decode(buf[:n])
		if err != nil {
			d.dropped.Add(1)
			log.Printf("bridge: dropping datagram from %s: %v", from, err)
			continue
		}

		done, err := d.handle(relay.ParseCommand(f, d.opts.Codes), from)
		if err != nil {
			return err
		}
		if done {
			log.Printf("bridge: operator %s ended the connection", from)
			return nil
		}
	}
}

// handle runs one command. done reports an orderly end of the session.
func (d *Dispatcher) handle(cmd relay.Command, from net.Addr) (done bool, err error) {
	switch c := cmd.(type) {
	case relay.StartConnection:
		d.mu.Lock()
		d.operator = from
		d.mu.Unlock()
		log.Printf("bridge: operator connected from %s", from)
		return false, d.send(relay.Frame{Code: d.opts.Codes.AcceptConnection}, from)

	case relay.EndConnection:
		return true, nil

	case relay.Arm:
		if err := d.arming.Arm(); err != nil {
			log.Printf("bridge: arm: %v", err)
		}

	case relay.Disarm:
		if err := d.arming.Disarm(); err != nil {
			log.Printf("bridge: disarm: %v", err)
		}

	case relay.SetRC:
		if err := d.rc.SetRawRC(c.Input); err != nil {
			log.Printf("bridge: set rc %+v: %v", c.Input, err)
		}

	case relay.StartTelemetry:
		if d.telemetry.Running() {
			log.Println("bridge: telemetry already running")
			return false, nil
		}
		// The ack is sent once the task has started and before its first
		// frame, whichever side gets there first.
		ack := d.ackOnce(relay.Frame{Code: d.opts.Codes.StartTelemetry}, from)
		sink := sampler.SinkFunc(func(s drone.Sample) error {
			if err := ack(); err != nil {
				return err
			}
			return d.sendSample(s, from)
		})
		if err := d.telemetry.Start(sink); err != nil {
			if !errors.Is(err, sampler.ErrAlreadyRunning) {
				log.Printf("bridge: start telemetry: %v", err)
			}
			return false, nil
		}
		return false, ack()

	case relay.EndTelemetry:
		d.telemetry.Stop()

	case relay.QueryTelemetry:
		s, err := d.telemetry.Sample(c.Category)
		if err != nil {
			log.Printf("bridge: query %s: %v", c.Category, err)
			return false, nil
		}
		return false, d.sendSample(s, from)

	case relay.Auxiliary:
		d.dropped.Add(1)

	case relay.Unknown:
		d.dropped.Add(1)
		if c.Reason != "" {
			log.Printf("bridge: dropping code %d: %s", c.Code, c.Reason)
		}
	}
	return false, nil
}

// ackOnce returns a func that sends f to addr on its first call. Later calls
// return the first result.
func (d *Dispatcher) ackOnce(f relay.Frame, addr net.Addr) func() error {
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() { err = d.send(f, addr) })
		return err
	}
}

func (d *Dispatcher) sendSample(s drone.Sample, to net.Addr) error {
	code, ok := d.opts.Codes.TelemetryCode(s.Category())
	if !ok {
		return nil
	}
	return d.send(relay.Frame{Code: code, Payload: s.RelayWords()}, to)
}

func (d *Dispatcher) send(f relay.Frame, to net.Addr) error {
	b := d.opts.Outbound.Encode(f)
	if _, err := d.conn.WriteTo(b, to); err != nil {
		return &SocketError{Op: "send", Err: err}
	}
	d.framesOut.Add(1)
	d.bytesOut.Add(uint64(len(b)))
	return nil
}

// Close stops Serve. It is safe to call more than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.closeConn()
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dispatcher) closeConn() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.conn.Close()
	})
	return d.closeErr
}

func (d *Dispatcher) shutdown() {
	d.telemetry.Stop()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	_ = d.closeConn()

	st := d.Stats()
	log.Printf("bridge: closed: %s frames in (%s), %s frames out (%s), %s dropped",
		humanize.Comma(int64(st.FramesIn)), humanize.Bytes(st.BytesIn),
		humanize.Comma(int64(st.FramesOut)), humanize.Bytes(st.BytesOut),
		humanize.Comma(int64(st.Dropped)))
}
