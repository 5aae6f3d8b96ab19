package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/msp_bridge/internal/app"
	"github.com/relabs-tech/msp_bridge/internal/config"
)

func main() {
	configPath := flag.String("config", "bridge_config.txt", "configuration file (KEY=VALUE, or .yaml)")
	flag.Parse()

	log.Println("starting msp-bridge console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
