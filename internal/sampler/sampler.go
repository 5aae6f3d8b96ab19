// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler polls the flight controller for telemetry, either once on
// request or periodically in a background task.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/link"
)

// ErrAlreadyRunning is returned by Start while a task is active.
var ErrAlreadyRunning = errors.New("sampler already running")

// Exchanger performs one request/response with the device.
type Exchanger interface {
	Exchange(cmd byte, payload []int16) (link.Response, error)
}

// Sink receives every sample taken.
type Sink interface {
	Publish(s drone.Sample) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(s drone.Sample) error

func (f SinkFunc) Publish(s drone.Sample) error { return f(s) }

// Options configures a Sampler.
type Options struct {
	// Categories polled by Tick. Sampled in enumeration order whatever the
	// order given here.
	Categories []drone.Category
	Interval   time.Duration
	// Sinks see every sample. Their errors are logged and otherwise ignored.
	Sinks []Sink
	Now   func() time.Time
}

// Sampler owns the polling task. At most one task runs at a time.
type Sampler struct {
	ex    Exchanger
	state *drone.State
	opts  Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a stopped sampler.
func New(ex Exchanger, state *drone.State, opts Options) *Sampler {
	cats := append([]drone.Category(nil), opts.Categories...)
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	opts.Categories = cats
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sampler{ex: ex, state: state, opts: opts}
}

// Categories returns the categories polled each tick, in order.
func (s *Sampler) Categories() []drone.Category {
	return append([]drone.Category(nil), s.opts.Categories...)
}

// Sample reads one category and replaces it in the drone state. On failure
// the previous sample is left in place.
func (s *Sampler) Sample(cat drone.Category) (drone.Sample, error) {
	resp, err := s.ex.Exchange(cat.Command(), nil)
	if err != nil {
		return drone.Sample{}, err
	}
	sample, err := drone.NewSample(cat, resp.Payload, resp.Elapsed, s.opts.Now())
	if err != nil {
		return drone.Sample{}, fmt.Errorf("decode %s: %w", cat, err)
	}
	s.state.Set(sample)

	for _, sink := range s.opts.Sinks {
		if err := sink.Publish(sample); err != nil {
			log.Printf("sampler: sink error (%s): %v", cat, err)
		}
	}
	return sample, nil
}

// Tick samples every enabled category once and hands each sample to op,
// which may be nil. Failed categories are logged and skipped; an op error
// aborts the tick and is returned.
func (s *Sampler) Tick(op Sink) error {
	return s.tick(context.Background(), op)
}

func (s *Sampler) tick(ctx context.Context, op Sink) error {
	for _, cat := range s.opts.Categories {
		if ctx.Err() != nil {
			return nil
		}
		sample, err := s.Sample(cat)
		if err != nil {
			log.Printf("sampler: %s: %v", cat, err)
			continue
		}
		if op == nil {
			continue
		}
		if err := op.Publish(sample); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the periodic task. Samples go to op as well as the
// persistent sinks; a nil op samples locally only. The task ends on Stop or
// the first op error, which Wait then returns.
func (s *Sampler) Start(op Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done, s.err = cancel, done, nil

	go s.run(ctx, op, done)
	log.Printf("sampler: started (%d categories every %v)", len(s.opts.Categories), s.opts.Interval)
	return nil
}

func (s *Sampler) run(ctx context.Context, op Sink, done chan struct{}) {
	err := s.loop(ctx, op)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(done)

	if err != nil {
		log.Printf("sampler: stopped: %v", err)
	} else {
		log.Println("sampler: stopped")
	}
}

func (s *Sampler) loop(ctx context.Context, op Sink) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if err := s.tick(ctx, op); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Stop signals the task and waits for it to finish. It is a no-op when no
// task is running.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current task ends and returns the error that ended it.
func (s *Sampler) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Running reports whether a task is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Sampler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
