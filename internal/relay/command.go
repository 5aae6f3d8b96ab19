// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package relay

import (
	"fmt"

	"github.com/relabs-tech/msp_bridge/internal/drone"
)

// Band is the hundred-range a relay code falls into.
type Band int

const (
	BandUnknown Band = iota
	BandTelemetry
	BandControl
	BandConnection
	BandAuxiliary
)

func (b Band) String() string {
	switch b {
	case BandTelemetry:
		return "telemetry"
	case BandControl:
		return "control"
	case BandConnection:
		return "connection"
	case BandAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// Classify returns the band of a raw code.
func Classify(code int16) Band {
	switch code / 100 {
	case 1:
		return BandTelemetry
	case 2:
		return BandControl
	case 3:
		return BandConnection
	case 6:
		return BandAuxiliary
	default:
		return BandUnknown
	}
}

// Codes is the numeric assignment of relay commands. Revisions of the operator
// application disagree on these numbers, so they come from configuration.
type Codes struct {
	StartConnection  int16
	EndConnection    int16
	AcceptConnection int16

	Arm    int16
	Disarm int16
	SetRC  int16

	StartTelemetry int16
	EndTelemetry   int16

	Telemetry map[drone.Category]int16
}

// DefaultCodes returns the 100/200/300 band assignment.
func DefaultCodes() Codes {
	return Codes{
		StartConnection:  300,
		EndConnection:    301,
		AcceptConnection: 306,
		Arm:              220,
		Disarm:           221,
		SetRC:            200,
		StartTelemetry:   120,
		EndTelemetry:     121,
		Telemetry: map[drone.Category]int16{
			drone.RawIMU:   102,
			drone.Servo:    103,
			drone.Motor:    104,
			drone.RC:       105,
			drone.Attitude: 108,
			drone.Altitude: 109,
			drone.PIDCoef:  112,
		},
	}
}

// Clone returns a copy that does not share the telemetry map.
func (c Codes) Clone() Codes {
	out := c
	out.Telemetry = make(map[drone.Category]int16, len(c.Telemetry))
	for k, v := range c.Telemetry {
		out.Telemetry[k] = v
	}
	return out
}

// TelemetryCode returns the code used for a category's frames.
func (c Codes) TelemetryCode(cat drone.Category) (int16, bool) {
	v, ok := c.Telemetry[cat]
	return v, ok
}

// Validate rejects assignments where two commands share a code.
func (c Codes) Validate() error {
	seen := map[int16]string{}
	add := func(name string, code int16) error {
		// ParseCommand drops the auxiliary band before looking codes up.
		if Classify(code) == BandAuxiliary {
			return fmt.Errorf("relay code %d for %s is in the auxiliary band", code, name)
		}
		if prev, ok := seen[code]; ok {
			return fmt.Errorf("relay code %d assigned to both %s and %s", code, prev, name)
		}
		seen[code] = name
		return nil
	}

	named := []struct {
		name string
		code int16
	}{
		{"start_connection", c.StartConnection},
		{"end_connection", c.EndConnection},
		{"accept_connection", c.AcceptConnection},
		{"arm", c.Arm},
		{"disarm", c.Disarm},
		{"set_rc", c.SetRC},
		{"start_telemetry", c.StartTelemetry},
		{"end_telemetry", c.EndTelemetry},
	}
	for _, n := range named {
		if err := add(n.name, n.code); err != nil {
			return err
		}
	}
	for _, cat := range drone.Categories() {
		if code, ok := c.Telemetry[cat]; ok {
			if err := add(cat.String(), code); err != nil {
				return err
			}
		}
	}
	return nil
}

// Command is the closed set of operator requests. Raw codes are mapped to a
// variant once, in ParseCommand; handlers switch on the variant type.
type Command interface {
	command()
}

type (
	StartConnection struct{}
	EndConnection   struct{}
	Arm             struct{}
	Disarm          struct{}
	StartTelemetry  struct{}
	EndTelemetry    struct{}

	SetRC struct {
		Input drone.ControlInput
	}

	QueryTelemetry struct {
		Category drone.Category
	}

	// Auxiliary is a camera or peripheral request. It is recognised and dropped.
	Auxiliary struct {
		Code int16
	}

	Unknown struct {
		Code   int16
		Band   Band
		Reason string
	}
)

func (StartConnection) command() {}
func (EndConnection) command()   {}
func (Arm) command()             {}
func (Disarm) command()          {}
func (StartTelemetry) command()  {}
func (EndTelemetry) command()    {}
func (SetRC) command()           {}
func (QueryTelemetry) command()  {}
func (Auxiliary) command()       {}
func (Unknown) command()         {}

// ParseCommand maps a decoded frame to its command variant.
func ParseCommand(f Frame, codes Codes) Command {
	band := Classify(f.Code)
	if band == BandAuxiliary {
		return Auxiliary{Code: f.Code}
	}

	switch f.Code {
	case codes.StartConnection:
		return StartConnection{}
	case codes.EndConnection:
		return EndConnection{}
	case codes.Arm:
		return Arm{}
	case codes.Disarm:
		return Disarm{}
	case codes.StartTelemetry:
		return StartTelemetry{}
	case codes.EndTelemetry:
		return EndTelemetry{}
	case codes.SetRC:
		in, ok := drone.ControlInputFromWords(f.Payload)
		if !ok {
			return Unknown{Code: f.Code, Band: band, Reason: fmt.Sprintf("set_rc needs 4 words, got %d", len(f.Payload))}
		}
		return SetRC{Input: in}
	}

	for cat, code := range codes.Telemetry {
		if code == f.Code {
			return QueryTelemetry{Category: cat}
		}
	}
	return Unknown{Code: f.Code, Band: band}
}
