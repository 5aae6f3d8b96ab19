// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drone

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/msp_bridge/internal/msp"
)

// Category is one independently pollable class of flight data.
type Category int

// Enumeration order is also the sampling order.
const (
	Altitude Category = iota
	Attitude
	RawIMU
	RC
	Motor
	Servo
	PIDCoef

	numCategories
)

// layout describes how a category's response payload is laid out.
type layout struct {
	name     string
	command  byte
	minWords int
	fields   []string
}

var layouts = [numCategories]layout{
	Altitude: {"altitude", msp.CmdAltitude, 2, []string{"estalt", "vario"}},
	Attitude: {"attitude", msp.CmdAttitude, 3, []string{"angx", "angy", "heading"}},
	RawIMU: {"raw_imu", msp.CmdRawIMU, 9, []string{
		"accx", "accy", "accz",
		"gyrx", "gyry", "gyrz",
		"magx", "magy", "magz",
	}},
	RC:    {"rc", msp.CmdRC, 4, []string{"roll", "pitch", "yaw", "throttle"}},
	Motor: {"motor", msp.CmdMotor, 4, []string{"m1", "m2", "m3", "m4"}},
	Servo: {"servo", msp.CmdServo, 4, []string{"s1", "s2", "s3", "s4"}},
	// 3 bytes (P, I, D) per PID item; roll, pitch, yaw are the first three items.
	PIDCoef: {"pid", msp.CmdPID, 5, []string{"rp", "ri", "rd", "pp", "pi", "pd", "yp", "yi", "yd"}},
}

// Categories returns every category in enumeration order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return layouts[c].name
}

// Command is the MSP getter used to poll this category.
func (c Category) Command() byte {
	return layouts[c].command
}

// MinWords is the smallest response payload, in 16-bit words, that decodes.
func (c Category) MinWords() int {
	return layouts[c].minWords
}

// Fields lists the decoded field names in payload order.
func (c Category) Fields() []string {
	return append([]string(nil), layouts[c].fields...)
}

// ParseCategory maps a name such as "raw_imu" or "attitude" to its category.
func ParseCategory(name string) (Category, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, "-", "_")
	for i, l := range layouts {
		if l.name == n {
			return Category(i), nil
		}
	}
	switch n {
	case "rawimu", "imu":
		return RawIMU, nil
	case "pid_coef", "pidcoef":
		return PIDCoef, nil
	}
	return 0, fmt.Errorf("unknown telemetry category %q", name)
}

// CategoryForCommand finds the category polled by an MSP command.
func CategoryForCommand(cmd byte) (Category, bool) {
	for i, l := range layouts {
		if l.command == cmd {
			return Category(i), true
		}
	}
	return 0, false
}
