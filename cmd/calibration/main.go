// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Sea-level reference calibration for the BMP280.
//
// The node must be at a known altitude. The altitude comes from, in order:
//  1. a GPS fix on GPS_SERIAL_PORT when -gps is given
//  2. the -altitude flag
//  3. KNOWN_ALTITUDE in the config file
//
// Output:
//
//	Writes a JSON file (SEA_LEVEL_FILE, or -out) that the node loads on startup.
//
// Run:
//
//	go run ./cmd/calibration -altitude 545.4
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/relabs-tech/spacenode/internal/app"
	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/gps"
	"github.com/relabs-tech/spacenode/internal/sensors"
)

const defaultOut = "sea_level_calibration.json"

func main() {
	configPath := flag.String("config", "./spacenode_config.txt", "Path to configuration file")
	altitude := flag.Float64("altitude", math.NaN(), "Known altitude of the node in meters")
	useGPS := flag.Bool("gps", false, "Take the altitude from a GPS fix")
	out := flag.String("out", "", "Output file (default: SEA_LEVEL_FILE or "+defaultOut+")")
	flag.Parse()

	fmt.Println("=== Sea-level reference calibration (BMP280) ===")
	fmt.Println()

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load config from %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg := config.Get()

	h, source, err := knownAltitude(cfg, *altitude, *useGPS)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Known altitude: %.1f m (%s)\n", h, source)

	bus, err := sensors.OpenBus(cfg.I2CBus)
	if err != nil {
		fatal(err)
	}
	defer bus.Close()

	bmp := sensors.NewBMP280(sensors.NewI2CTransport(bus, cfg.BMP280Addr), nil)
	if err := bmp.Open(); err != nil {
		fatal(err)
	}
	defer bmp.Close()
	// Let normal mode complete its first conversion.
	time.Sleep(100 * time.Millisecond)

	res, err := app.Calibrate(bmp, h, source)
	if err != nil {
		fatal(err)
	}

	name := *out
	if name == "" {
		name = cfg.SeaLevelFile
	}
	if name == "" {
		name = defaultOut
	}
	if err := app.SaveSeaLevel(name, res); err != nil {
		fatal(err)
	}

	fmt.Printf("Sea-level pressure: %.2f hPa\n", res.SeaLevelHPa)
	fmt.Printf("Wrote: %s\n", name)
}

func knownAltitude(cfg *config.Config, flagAlt float64, useGPS bool) (float64, string, error) {
	if useGPS {
		if cfg.GPSSerialPort == "" {
			return 0, "", fmt.Errorf("-gps needs GPS_SERIAL_PORT in the config file")
		}
		fmt.Printf("Waiting up to %ds for a GPS fix on %s...\n", cfg.GPSFixTimeoutSec, cfg.GPSSerialPort)
		src := &gps.SerialSource{
			PortName: cfg.GPSSerialPort,
			BaudRate: uint(cfg.GPSBaudRate),
			Timeout:  time.Duration(cfg.GPSFixTimeoutSec) * time.Second,
		}
		fix, err := src.AltitudeFix(context.Background())
		if err != nil {
			return 0, "", err
		}
		return fix.Altitude, app.SourceGPS, nil
	}
	if !math.IsNaN(flagAlt) {
		return flagAlt, app.SourceManual, nil
	}
	if cfg.KnownAltitude != nil {
		return *cfg.KnownAltitude, app.SourceManual, nil
	}
	return 0, "", fmt.Errorf("no altitude: pass -altitude, -gps or set KNOWN_ALTITUDE")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
