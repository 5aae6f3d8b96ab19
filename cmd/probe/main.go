// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// probe exercises a flight controller and a running bridge by hand.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "probe"
	app.Usage = "talk to an MSP flight controller or a running bridge"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "bridge_config.txt",
			Usage: "configuration file (KEY=VALUE, or .yaml)",
		},
		cli.IntFlag{
			Name:  "wakeup",
			Value: -1,
			Usage: "override SERIAL_WAKEUP_MS (milliseconds, -1 keeps the configured value)",
		},
	}
	app.Commands = COMMANDS

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
