// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package arming arms and disarms the flight controller by holding the sticks
// in the arming position for a fixed window, the same gesture a pilot makes
// on a transmitter.
package arming

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/drone"
)

// State of the arming sequence.
type State int32

const (
	Disarmed State = iota
	Arming
	Armed
	Disarming
)

func (s State) String() string {
	switch s {
	case Disarmed:
		return "disarmed"
	case Arming:
		return "arming"
	case Armed:
		return "armed"
	case Disarming:
		return "disarming"
	default:
		return "invalid"
	}
}

// Sender delivers one stick override to the device.
type Sender interface {
	SetRawRC(in drone.ControlInput) error
}

// Clock is the time source for holds. Tests substitute a fake.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Config holds the stick extremes and timing of the gesture. With both
// UseYaw and UseRoll set, the yaw hold runs first.
type Config struct {
	UseYaw  bool
	UseRoll bool

	MinYaw      int16
	MaxYaw      int16
	MinRoll     int16
	MaxRoll     int16
	MinThrottle int16

	Hold         time.Duration
	SendInterval time.Duration
}

// DefaultConfig is a yaw-only gesture held for 2.5 s.
func DefaultConfig() Config {
	return Config{
		UseYaw:       true,
		MinYaw:       900,
		MaxYaw:       2000,
		MinRoll:      900,
		MaxRoll:      1900,
		MinThrottle:  990,
		Hold:         2500 * time.Millisecond,
		SendInterval: 20 * time.Millisecond,
	}
}

// Machine runs arm and disarm sequences. Only one sequence runs at a time and
// it is the only writer of the armed flag in drone.State.
type Machine struct {
	mu     sync.Mutex
	cfg    Config
	sender Sender
	drone  *drone.State
	clock  Clock
	state  atomic.Int32
}

// New creates a disarmed machine. A nil clock means the wall clock.
func New(sender Sender, st *drone.State, cfg Config, clock Clock) *Machine {
	if clock == nil {
		clock = RealClock
	}
	m := &Machine{cfg: cfg, sender: sender, drone: st, clock: clock}
	m.state.Store(int32(Disarmed))
	return m
}

// State returns the current state. It reads Arming or Disarming while a hold
// is running.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Assume sets the state without sending anything, for tools that attach to a
// controller whose arming state is already known.
func (m *Machine) Assume(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Store(int32(s))
	m.drone.SetArmed(s == Armed)
}

// Arm holds the arming position and ends Armed. It does nothing when already
// armed. Send failures do not cut the hold short; the first one is returned.
func (m *Machine) Arm() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() == Armed {
		log.Println("arming: already armed, ignoring arm request")
		return nil
	}

	m.state.Store(int32(Arming))
	log.Println("arming: arming")
	err := m.gesture(m.cfg.MaxYaw, m.cfg.MaxRoll)

	m.state.Store(int32(Armed))
	m.drone.SetArmed(true)
	log.Println("arming: armed")
	return err
}

// Disarm holds the disarming position and always ends Disarmed. When already
// disarmed no sticks are sent.
func (m *Machine) Disarm() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.State() != Disarmed {
		m.state.Store(int32(Disarming))
		log.Println("arming: disarming")
		err = m.gesture(m.cfg.MinYaw, m.cfg.MinRoll)
	}

	m.state.Store(int32(Disarmed))
	m.drone.SetArmed(false)
	log.Println("arming: disarmed")
	return err
}

func (m *Machine) gesture(yaw, roll int16) error {
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}

	if m.cfg.UseYaw {
		keep(m.hold(drone.ControlInput{
			Roll:     drone.StickCenter,
			Pitch:    drone.StickCenter,
			Yaw:      yaw,
			Throttle: m.cfg.MinThrottle,
		}))
	}
	if m.cfg.UseRoll {
		keep(m.hold(drone.ControlInput{
			Roll:     roll,
			Pitch:    drone.StickCenter,
			Yaw:      drone.StickCenter,
			Throttle: m.cfg.MinThrottle,
		}))
	}
	return first
}

// hold repeats in every SendInterval until Hold has elapsed.
func (m *Machine) hold(in drone.ControlInput) error {
	var first error
	failures := 0
	deadline := m.clock.Now().Add(m.cfg.Hold)

	for m.clock.Now().Before(deadline) {
		if err := m.sender.SetRawRC(in); err != nil {
			failures++
			if first == nil {
				first = err
			}
		}
		m.clock.Sleep(m.cfg.SendInterval)
	}

	if failures > 0 {
		log.Printf("arming: %d stick sends failed during hold, first: %v", failures, first)
	}
	return first
}
