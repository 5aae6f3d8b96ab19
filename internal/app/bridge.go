// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/msp_bridge/internal/arming"
	"github.com/relabs-tech/msp_bridge/internal/bridge"
	"github.com/relabs-tech/msp_bridge/internal/config"
	"github.com/relabs-tech/msp_bridge/internal/drone"
	"github.com/relabs-tech/msp_bridge/internal/link"
	"github.com/relabs-tech/msp_bridge/internal/mirror"
	"github.com/relabs-tech/msp_bridge/internal/sampler"
)

// relistenDelay is the pause before reopening the relay socket after a
// socket failure.
const relistenDelay = time.Second

// RunBridge opens the flight controller link and serves operators until ctx
// is cancelled. Each operator session ends with EndConnection or a socket
// failure, after which the relay socket is opened again for the next one.
func RunBridge(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialised")
	}

	dopts, err := DispatcherOptions(cfg)
	if err != nil {
		return err
	}

	// ---- 1) Serial link ----
	lnk, err := link.Open(ctx, LinkOptions(cfg))
	if err != nil {
		return err
	}
	defer lnk.Close()

	state := drone.NewState()
	var sinks []sampler.Sink

	// ---- 2) Optional MQTT mirror ----
	if cfg.MQTTBroker != "" {
		pub, client, err := mirror.Connect(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		pub.WatchArmed(state)
		sinks = append(sinks, pub)
	}

	// ---- 3) Optional web dashboard ----
	var hub *Hub
	if cfg.WebServerPort > 0 {
		hub = NewHub()
		sinks = append(sinks, hub)
	}

	smp := sampler.New(lnk, state, SamplerOptions(cfg, sinks...))
	arm := arming.New(lnk, state, ArmingConfig(cfg), nil)

	var current atomic.Pointer[bridge.Dispatcher]
	status := func() Status {
		st := Status{
			Armed:            state.Armed(),
			ArmingState:      arm.State().String(),
			TelemetryRunning: smp.Running(),
		}
		if d := current.Load(); d != nil {
			if op := d.Operator(); op != nil {
				st.Operator = op.String()
			}
			st.Relay = d.Stats()
		}
		return st
	}

	if hub != nil {
		addr := fmt.Sprintf(":%d", cfg.WebServerPort)
		go func() {
			if err := RunWeb(ctx, addr, NewWebHandler(state, hub, status, NewMSPDebugHandler(lnk))); err != nil {
				log.Printf("web: %v", err)
			}
		}()
	}

	// ---- 4) Optional OLED panel ----
	if cfg.DisplayEnabled {
		go func() {
			if err := RunDisplay(ctx, cfg, state, status); err != nil {
				log.Printf("display: %v", err)
			}
		}()
	}

	// ---- 5) Operator sessions ----
	defer func() {
		if state.Armed() {
			log.Println("bridge: shutting down while armed, disarming")
			if err := arm.Disarm(); err != nil {
				log.Printf("bridge: disarm on shutdown: %v", err)
			}
		}
	}()

	for {
		d, err := bridge.Listen(cfg.RelayListenAddr, arm, lnk, smp, dopts)
		if err != nil {
			return err
		}
		current.Store(d)

		stop := context.AfterFunc(ctx, func() { d.Close() })
		err = d.Serve()
		stop()

		if ctx.Err() != nil {
			return nil
		}

		var se *bridge.SocketError
		if errors.As(err, &se) {
			log.Printf("bridge: %v; listening again in %v", se, relistenDelay)
			select {
			case <-time.After(relistenDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		log.Println("bridge: session ended, waiting for the next operator")
	}
}
