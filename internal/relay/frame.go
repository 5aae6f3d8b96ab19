// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package relay encodes and decodes the operator link datagrams:
//
//	code(int16) length(int16, payload bytes) payload(int16 * n)
//
// There is no checksum. The operator application sends commands little-endian
// and expects forwarded telemetry big-endian, so each direction gets its own
// Codec with an independently configured byte order.
package relay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// HeaderSize covers the code and length fields.
const HeaderSize = 4

// ErrMalformed is returned for datagrams that cannot be decoded.
var ErrMalformed = errors.New("malformed relay frame")

// Frame is one relay datagram.
type Frame struct {
	Code    int16
	Payload []int16
}

// Codec encodes and decodes frames in one byte order.
type Codec struct {
	Order binary.ByteOrder
}

var (
	// Inbound is the byte order of operator commands.
	Inbound = Codec{Order: binary.LittleEndian}
	// Outbound is the byte order of telemetry sent to the operator.
	Outbound = Codec{Order: binary.BigEndian}
)

// NewCodec builds a codec from a configured order name: "little" or "big".
func NewCodec(order string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "little", "le", "little-endian":
		return Codec{Order: binary.LittleEndian}, nil
	case "big", "be", "big-endian":
		return Codec{Order: binary.BigEndian}, nil
	default:
		return Codec{}, fmt.Errorf("unknown byte order %q (want little or big)", order)
	}
}

// Encode serialises f.
func (c Codec) Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+2*len(f.Payload))
	c.Order.PutUint16(buf[0:], uint16(f.Code))
	c.Order.PutUint16(buf[2:], uint16(2*len(f.Payload)))
	for i, w := range f.Payload {
		c.Order.PutUint16(buf[HeaderSize+2*i:], uint16(w))
	}
	return buf
}

// Decode parses one datagram. Bytes after the declared payload are ignored.
func (c Codec) Decode(b []byte) (Frame, error) {
	if len(b) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(b))
	}
	code := int16(c.Order.Uint16(b[0:]))
	size := int(int16(c.Order.Uint16(b[2:])))

	if size < 0 || size%2 != 0 {
		return Frame{}, fmt.Errorf("%w: payload length %d", ErrMalformed, size)
	}
	if len(b)-HeaderSize < size {
		return Frame{}, fmt.Errorf("%w: declared %d payload bytes, got %d", ErrMalformed, size, len(b)-HeaderSize)
	}

	payload := make([]int16, size/2)
	for i := range payload {
		payload[i] = int16(c.Order.Uint16(b[HeaderSize+2*i:]))
	}
	return Frame{Code: code, Payload: payload}, nil
}
