// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package msp encodes and decodes MultiWii Serial Protocol (v1) frames.
//
// Wire format:
//
//	'$' 'M' dir len cmd payload[len] checksum
//
// dir is '<' for host to device and '>' for device to host. Payload words are
// little-endian int16, except for a few replies with odd lengths such as MSP_IDENT.
// The checksum is the XOR of len, cmd and every payload byte.
package msp

import (
	"encoding/binary"
	"fmt"
)

const (
	Preamble0 byte = '$'
	Preamble1 byte = 'M'

	DirToDevice   byte = '<'
	DirFromDevice byte = '>'

	// HeaderSize covers '$' 'M' dir len cmd.
	HeaderSize = 5
	// Overhead is the header plus the trailing checksum byte.
	Overhead = HeaderSize + 1

	// MaxPayloadSize is bounded by the single length byte.
	MaxPayloadSize = 255
)

// Frame is one decoded MSP message.
type Frame struct {
	Direction byte
	Command   byte
	// Payload is Data read as little-endian words. An odd trailing byte
	// only appears in Data.
	Payload []int16
	// Data is the raw payload. When set, EncodeFrame sends it instead of
	// Payload.
	Data []byte
}

// FrameError reports a frame that failed validation. The frame is discarded.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "msp frame: " + e.Reason
}

func frameErrorf(format string, args ...any) *FrameError {
	return &FrameError{Reason: fmt.Sprintf(format, args...)}
}

// Checksum XORs every byte of b.
func Checksum(b []byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
	}
	return c
}

// Encode builds a host to device request.
func Encode(cmd byte, payload []int16) []byte {
	return EncodeFrame(Frame{Direction: DirToDevice, Command: cmd, Payload: payload})
}

// EncodeFrame builds a frame in either direction. Payloads longer than
// MaxPayloadSize bytes are truncated to fit the length byte.
func EncodeFrame(f Frame) []byte {
	data := f.Data
	if data == nil {
		words := f.Payload
		if len(words)*2 > MaxPayloadSize {
			words = words[:MaxPayloadSize/2]
		}
		data = WordBytes(words)
	}
	if len(data) > MaxPayloadSize {
		data = data[:MaxPayloadSize]
	}
	size := len(data)

	buf := make([]byte, Overhead+size)
	buf[0] = Preamble0
	buf[1] = Preamble1
	buf[2] = f.Direction
	buf[3] = byte(size)
	buf[4] = f.Command
	copy(buf[HeaderSize:], data)
	buf[HeaderSize+size] = Checksum(buf[3 : HeaderSize+size])
	return buf
}

// WordBytes lays words out little-endian.
func WordBytes(words []int16) []byte {
	b := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(w))
	}
	return b
}

// BytesWords reads b as little-endian words, ignoring an odd trailing byte.
func BytesWords(b []byte) []int16 {
	words := make([]int16, len(b)/2)
	for i := range words {
		words[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return words
}

// Decode validates and decodes a complete frame.
func Decode(b []byte) (Frame, error) {
	if len(b) < Overhead {
		return Frame{}, frameErrorf("short frame: %d bytes", len(b))
	}
	if b[0] != Preamble0 || b[1] != Preamble1 {
		return Frame{}, frameErrorf("bad preamble %q", b[:2])
	}
	dir := b[2]
	if dir != DirToDevice && dir != DirFromDevice {
		return Frame{}, frameErrorf("bad direction %q", dir)
	}

	size := int(b[3])
	if got := len(b) - Overhead; got != size {
		return Frame{}, frameErrorf("length mismatch: declared %d, got %d", size, got)
	}

	want := b[HeaderSize+size]
	if sum := Checksum(b[3 : HeaderSize+size]); sum != want {
		return Frame{}, frameErrorf("checksum mismatch: computed 0x%02X, frame 0x%02X", sum, want)
	}

	data := append([]byte(nil), b[HeaderSize:HeaderSize+size]...)
	return Frame{Direction: dir, Command: b[4], Payload: BytesWords(data), Data: data}, nil
}
