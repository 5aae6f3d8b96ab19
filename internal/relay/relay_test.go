// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package relay

import (
	"bytes"
	"errors"
	"testing"

	"github.com/relabs-tech/msp_bridge/internal/drone"
)

func TestRoundTripBothOrders(t *testing.T) {
	frames := []Frame{
		{Code: 300, Payload: []int16{}},
		{Code: 200, Payload: []int16{1500, 1500, 1000, 990}},
		{Code: 102, Payload: []int16{-1, 2, -3, 4, -5, 6, -7, 8, -9}},
		{Code: -5, Payload: []int16{32767, -32768}},
	}

	for _, codec := range []Codec{Inbound, Outbound} {
		for _, f := range frames {
			got, err := codec.Decode(codec.Encode(f))
			if err != nil {
				t.Fatalf("%v Decode() error = %v", codec.Order, err)
			}
			if got.Code != f.Code || len(got.Payload) != len(f.Payload) {
				t.Fatalf("%v round trip = %+v, want %+v", codec.Order, got, f)
			}
			for i := range f.Payload {
				if got.Payload[i] != f.Payload[i] {
					t.Errorf("%v payload[%d] = %d, want %d", codec.Order, i, got.Payload[i], f.Payload[i])
				}
			}
		}
	}
}

func TestByteOrderPerDirection(t *testing.T) {
	f := Frame{Code: 109, Payload: []int16{1, -2}}

	wantLE := []byte{109, 0, 4, 0, 1, 0, 0xFE, 0xFF}
	if got := Inbound.Encode(f); !bytes.Equal(got, wantLE) {
		t.Errorf("Inbound.Encode() = % X, want % X", got, wantLE)
	}

	wantBE := []byte{0, 109, 0, 4, 0, 1, 0xFF, 0xFE}
	if got := Outbound.Encode(f); !bytes.Equal(got, wantBE) {
		t.Errorf("Outbound.Encode() = % X, want % X", got, wantBE)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"short header", []byte{1, 2, 3}},
		{"odd length", []byte{200, 0, 3, 0, 1, 2, 3}},
		{"negative length", []byte{200, 0, 0xFE, 0xFF}},
		{"truncated payload", []byte{200, 0, 8, 0, 1, 0, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Inbound.Decode(tt.in); !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	b := append(Inbound.Encode(Frame{Code: 300}), 0xAA, 0xBB)
	f, err := Inbound.Decode(b)
	if err != nil || f.Code != 300 || len(f.Payload) != 0 {
		t.Errorf("Decode() = %+v, %v", f, err)
	}
}

func TestNewCodec(t *testing.T) {
	if c, err := NewCodec("big"); err != nil || c.Order != Outbound.Order {
		t.Errorf("NewCodec(big) = %v, %v", c, err)
	}
	if c, err := NewCodec("LITTLE"); err != nil || c.Order != Inbound.Order {
		t.Errorf("NewCodec(LITTLE) = %v, %v", c, err)
	}
	if _, err := NewCodec("middle"); err == nil {
		t.Error("NewCodec(middle): expected error")
	}
}

func TestParseCommand(t *testing.T) {
	codes := DefaultCodes()

	tests := []struct {
		name  string
		frame Frame
		want  Command
	}{
		{"start connection", Frame{Code: 300}, StartConnection{}},
		{"end connection", Frame{Code: 301}, EndConnection{}},
		{"arm", Frame{Code: 220}, Arm{}},
		{"disarm", Frame{Code: 221}, Disarm{}},
		{"start telemetry", Frame{Code: 120}, StartTelemetry{}},
		{"end telemetry", Frame{Code: 121}, EndTelemetry{}},
		{"set rc", Frame{Code: 200, Payload: []int16{1400, 1500, 1600, 1100}},
			SetRC{Input: drone.ControlInput{Roll: 1400, Pitch: 1500, Yaw: 1600, Throttle: 1100}}},
		{"set rc out of range forwarded", Frame{Code: 200, Payload: []int16{5000, -1, 0, 3000}},
			SetRC{Input: drone.ControlInput{Roll: 5000, Pitch: -1, Yaw: 0, Throttle: 3000}}},
		{"altitude", Frame{Code: 109}, QueryTelemetry{Category: drone.Altitude}},
		{"raw imu", Frame{Code: 102}, QueryTelemetry{Category: drone.RawIMU}},
		{"camera", Frame{Code: 601}, Auxiliary{Code: 601}},
		{"unknown", Frame{Code: 999}, Unknown{Code: 999, Band: BandUnknown}},
		{"unassigned control", Frame{Code: 250}, Unknown{Code: 250, Band: BandControl}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.frame, codes); got != tt.want {
				t.Errorf("ParseCommand() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseCommandShortSetRC(t *testing.T) {
	got := ParseCommand(Frame{Code: 200, Payload: []int16{1500}}, DefaultCodes())
	u, ok := got.(Unknown)
	if !ok || u.Reason == "" {
		t.Errorf("ParseCommand(short set_rc) = %#v, want Unknown with reason", got)
	}
}

func TestParseCommandAlternateNumbering(t *testing.T) {
	codes := DefaultCodes()
	codes.Arm, codes.Disarm = 302, 303
	codes.StartTelemetry, codes.EndTelemetry = 304, 305
	codes.AcceptConnection = 310
	if err := codes.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if got := ParseCommand(Frame{Code: 302}, codes); got != (Arm{}) {
		t.Errorf("code 302 = %#v, want Arm", got)
	}
	if got := ParseCommand(Frame{Code: 305}, codes); got != (EndTelemetry{}) {
		t.Errorf("code 305 = %#v, want EndTelemetry", got)
	}
	if _, ok := ParseCommand(Frame{Code: 220}, codes).(Unknown); !ok {
		t.Error("code 220 should be unknown after renumbering")
	}
}

func TestCodesValidateDuplicates(t *testing.T) {
	codes := DefaultCodes()
	codes.Disarm = codes.Arm
	if err := codes.Validate(); err == nil {
		t.Error("Validate() with duplicate arm/disarm: expected error")
	}

	codes = DefaultCodes()
	codes.Telemetry[drone.Motor] = codes.SetRC
	if err := codes.Validate(); err == nil {
		t.Error("Validate() with telemetry code colliding with set_rc: expected error")
	}
}

func TestCodesValidateAuxiliaryBand(t *testing.T) {
	codes := DefaultCodes()
	codes.Arm = 610
	if err := codes.Validate(); err == nil {
		t.Error("Validate() with arm=610: expected error")
	}

	codes = DefaultCodes()
	codes.Telemetry[drone.PIDCoef] = 699
	if err := codes.Validate(); err == nil {
		t.Error("Validate() with pid=699: expected error")
	}

	codes = DefaultCodes()
	codes.Arm = 599
	if err := codes.Validate(); err != nil {
		t.Errorf("Validate() with arm=599 error = %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := map[int16]Band{
		102: BandTelemetry,
		121: BandTelemetry,
		200: BandControl,
		221: BandControl,
		300: BandConnection,
		605: BandAuxiliary,
		450: BandUnknown,
		-3:  BandUnknown,
	}
	for code, want := range tests {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%d) = %v, want %v", code, got, want)
		}
	}
}
