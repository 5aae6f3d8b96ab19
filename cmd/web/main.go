// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/msp_bridge/internal/app"
	"github.com/relabs-tech/msp_bridge/internal/config"
)

func main() {
	configPath := flag.String("config", "bridge_config.txt", "path to the configuration file")
	flag.Parse()

	log.Println("starting msp-bridge web dashboard (MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunWebMQTT(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
