// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	"github.com/relabs-tech/spacenode/internal/app"
	"github.com/relabs-tech/spacenode/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "./spacenode_config.txt", "path to configuration file")
	tolTemp := flag.Float64("max-temp-delta", 0.5, "maximum temperature difference in °C")
	tolPressure := flag.Float64("max-pressure-delta", 50, "maximum pressure difference in Pa")
	flag.Parse()

	log.Info("starting BMP280 driver cross-check (native engine vs bmxx80)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCrossCheck(*tolTemp, *tolPressure); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
