// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeAltitudeRequest(t *testing.T) {
	got := Encode(CmdAltitude, nil)
	want := []byte{'$', 'M', '<', 0, 109, 109}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode(ALTITUDE) = % X, want % X", got, want)
	}
}

func TestEncodeSetRawRC(t *testing.T) {
	got := Encode(CmdSetRawRC, []int16{1500, 1500, 2000, 990})

	if got[3] != 8 {
		t.Errorf("length byte = %d, want 8", got[3])
	}
	if got[4] != CmdSetRawRC {
		t.Errorf("command byte = %d, want %d", got[4], CmdSetRawRC)
	}
	// 1500 = 0x05DC little-endian
	if got[5] != 0xDC || got[6] != 0x05 {
		t.Errorf("first word bytes = % X, want DC 05", got[5:7])
	}
	if sum := Checksum(got[3 : len(got)-1]); got[len(got)-1] != sum {
		t.Errorf("checksum = 0x%02X, want 0x%02X", got[len(got)-1], sum)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		dir     byte
		cmd     byte
		payload []int16
	}{
		{"empty request", DirToDevice, CmdAttitude, []int16{}},
		{"rc set", DirToDevice, CmdSetRawRC, []int16{1500, 1500, 1000, 990}},
		{"raw imu response", DirFromDevice, CmdRawIMU, []int16{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"negative words", DirFromDevice, CmdAttitude, []int16{-120, 45, -32768}},
		{"max words", DirFromDevice, CmdDebug, make([]int16, MaxPayloadSize/2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeFrame(Frame{Direction: tt.dir, Command: tt.cmd, Payload: tt.payload})
			f, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if f.Direction != tt.dir || f.Command != tt.cmd {
				t.Errorf("Decode() dir/cmd = %q/%d, want %q/%d", f.Direction, f.Command, tt.dir, tt.cmd)
			}
			if len(f.Payload) != len(tt.payload) {
				t.Fatalf("Decode() payload len = %d, want %d", len(f.Payload), len(tt.payload))
			}
			for i := range tt.payload {
				if f.Payload[i] != tt.payload[i] {
					t.Errorf("payload[%d] = %d, want %d", i, f.Payload[i], tt.payload[i])
				}
			}
		})
	}
}

func TestDecodeRejectsChecksumBitFlips(t *testing.T) {
	encoded := EncodeFrame(Frame{Direction: DirFromDevice, Command: CmdAttitude, Payload: []int16{12, -7, 180}})
	last := len(encoded) - 1

	for bit := 0; bit < 8; bit++ {
		corrupted := append([]byte(nil), encoded...)
		corrupted[last] ^= 1 << bit

		_, err := Decode(corrupted)
		var fe *FrameError
		if !errors.As(err, &fe) {
			t.Errorf("bit %d: Decode() error = %v, want *FrameError", bit, err)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	good := EncodeFrame(Frame{Direction: DirFromDevice, Command: CmdRC, Payload: []int16{1, 2}})

	badLen := append([]byte(nil), good...)
	badLen[3] = 6

	badDir := append([]byte(nil), good...)
	badDir[2] = '!'

	badPreamble := append([]byte(nil), good...)
	badPreamble[1] = 'X'

	tests := []struct {
		name  string
		input []byte
	}{
		{"too short", good[:4]},
		{"declared length larger than payload", badLen},
		{"truncated payload", good[:len(good)-2]},
		{"error direction", badDir},
		{"bad preamble", badPreamble},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("Decode() error = %v, want *FrameError", err)
			}
		})
	}
}

func TestEncodeTruncatesOversizedPayload(t *testing.T) {
	encoded := Encode(CmdDebug, make([]int16, 200))
	if encoded[3] != byte(MaxPayloadSize/2*2) {
		t.Errorf("length byte = %d, want %d", encoded[3], MaxPayloadSize/2*2)
	}
	if _, err := Decode(encoded); err != nil {
		t.Errorf("Decode() of truncated frame error = %v", err)
	}
}

func TestCommandName(t *testing.T) {
	if got := CommandName(CmdAttitude); got != "attitude" {
		t.Errorf("CommandName(108) = %q", got)
	}
	if got := CommandName(150); got != "" {
		t.Errorf("CommandName(150) = %q, want empty", got)
	}
	if !IsGetter(CmdPID) || IsGetter(CmdSetRawRC) || IsGetter(CmdDebug) {
		t.Error("IsGetter classification wrong")
	}
}

func TestDecodeOddLengthIdent(t *testing.T) {
	// MultiWii 2.4, quad X, MSP version 0, capability 0x00000004
	data := []byte{240, 3, 0, 4, 0, 0, 0}
	raw := EncodeFrame(Frame{Direction: DirFromDevice, Command: CmdIdent, Data: data})
	if raw[3] != 7 {
		t.Fatalf("length byte = %d, want 7", raw[3])
	}

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(f.Data, data) {
		t.Errorf("Data = %v, want %v", f.Data, data)
	}
	want := []int16{int16(240) | 3<<8, 4 << 8, 0}
	if len(f.Payload) != len(want) {
		t.Fatalf("Payload = %v, want %v", f.Payload, want)
	}
	for i := range want {
		if f.Payload[i] != want[i] {
			t.Errorf("Payload[%d] = %d, want %d", i, f.Payload[i], want[i])
		}
	}
}

func TestEncodeFrameDataOverridesPayload(t *testing.T) {
	raw := EncodeFrame(Frame{Direction: DirFromDevice, Command: CmdStatus, Payload: []int16{1}, Data: []byte{9, 8, 7}})
	want := []byte{'$', 'M', '>', 3, CmdStatus, 9, 8, 7, 3 ^ CmdStatus ^ 9 ^ 8 ^ 7}
	if !bytes.Equal(raw, want) {
		t.Errorf("EncodeFrame() = % X, want % X", raw, want)
	}
}
