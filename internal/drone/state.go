// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package drone

import (
	"sync"
	"time"
)

// State holds the last known sample per category and the armed flag.
//
// A single RWMutex guards the whole structure. Samples are replaced as a unit,
// so a reader sees either the previous sample or the new one, never a mix.
// The sampler is the only writer of samples; the arming machine is the only
// writer of the armed flag.
type State struct {
	mu       sync.RWMutex
	samples  [numCategories]*Sample
	armed    bool
	armedAt  time.Time
	watchers []func(armed bool)
}

// NewState returns an empty state: no samples, disarmed.
func NewState() *State {
	return &State{}
}

// Set replaces the stored sample for s.Category().
func (st *State) Set(s Sample) {
	if !s.category.Valid() {
		return
	}
	cp := s
	st.mu.Lock()
	st.samples[s.category] = &cp
	st.mu.Unlock()
}

// Get returns the current sample for c, if any has arrived.
func (st *State) Get(c Category) (Sample, bool) {
	if !c.Valid() {
		return Sample{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()

	p := st.samples[c]
	if p == nil {
		return Sample{}, false
	}
	return *p, true
}

// Snapshot is a consistent copy of the whole state.
type Snapshot struct {
	Samples map[Category]Sample
	Armed   bool
}

// Snapshot copies every present sample and the armed flag under one lock.
func (st *State) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()

	snap := Snapshot{Samples: make(map[Category]Sample), Armed: st.armed}
	for i, p := range st.samples {
		if p != nil {
			snap.Samples[Category(i)] = *p
		}
	}
	return snap
}

// Armed reports the last committed arming state.
func (st *State) Armed() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.armed
}

// SetArmed commits a new arming state and notifies watchers outside the lock.
func (st *State) SetArmed(armed bool) {
	st.mu.Lock()
	changed := st.armed != armed
	st.armed = armed
	st.armedAt = time.Now()
	watchers := append([]func(bool){}, st.watchers...)
	st.mu.Unlock()

	if !changed {
		return
	}
	for _, w := range watchers {
		w(armed)
	}
}

// OnArmedChange registers fn to run after every armed flag change.
func (st *State) OnArmedChange(fn func(armed bool)) {
	st.mu.Lock()
	st.watchers = append(st.watchers, fn)
	st.mu.Unlock()
}
