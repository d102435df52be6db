// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/gps"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
)

const seaLevelSchemaVersion = 1

// Sea-level reference sources, in order of precedence.
const (
	SourceGPS     = "gps"
	SourceManual  = "known_altitude"
	SourceFile    = "file"
	SourceConfig  = "config"
	SourceDefault = "default"
)

// SeaLevelCalibration is the JSON document written by the calibration
// command and read back by the node on startup.
type SeaLevelCalibration struct {
	SchemaVersion int     `json:"schema_version"`
	CalibrationAt string  `json:"calibration_at"` // RFC3339
	KnownAltitude float64 `json:"known_altitude_m"`
	SeaLevelHPa   float64 `json:"sea_level_hpa"`
	Source        string  `json:"source"`
}

// LoadSeaLevel reads a calibration file.
func LoadSeaLevel(path string) (SeaLevelCalibration, error) {
	var c SeaLevelCalibration
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("sea level file %s: %w", path, err)
	}
	if c.SchemaVersion != seaLevelSchemaVersion {
		return c, fmt.Errorf("sea level file %s: unsupported schema version %d", path, c.SchemaVersion)
	}
	if c.SeaLevelHPa <= 0 {
		return c, fmt.Errorf("sea level file %s: invalid sea level %v hPa", path, c.SeaLevelHPa)
	}
	return c, nil
}

// SaveSeaLevel writes a calibration file.
func SaveSeaLevel(path string, c SeaLevelCalibration) error {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = seaLevelSchemaVersion
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// SeaLevelCalibrator is the part of the pressure engine that owns the
// altitude reference.
type SeaLevelCalibrator interface {
	CalibrateSeaLevel(altitude float64) (float64, error)
	SetSeaLevel(hPa float64)
}

// AltitudeSource provides a surveyed altitude, usually a GPS receiver.
type AltitudeSource interface {
	AltitudeFix(ctx context.Context) (gps.Fix, error)
}

// Calibrate back-solves the sea-level reference at altitude and returns the
// document to persist.
func Calibrate(engine SeaLevelCalibrator, altitude float64, source string) (SeaLevelCalibration, error) {
	hpa, err := engine.CalibrateSeaLevel(altitude)
	if err != nil {
		return SeaLevelCalibration{}, fmt.Errorf("calibrate at %.1f m: %w", altitude, err)
	}
	return SeaLevelCalibration{
		SchemaVersion: seaLevelSchemaVersion,
		CalibrationAt: time.Now().Format(time.RFC3339),
		KnownAltitude: altitude,
		SeaLevelHPa:   hpa,
		Source:        source,
	}, nil
}

// ResolveSeaLevel seeds engine from the best reference available: a GPS
// fix, then KNOWN_ALTITUDE, then SEA_LEVEL_FILE, then SEA_LEVEL_HPA, then
// the standard atmosphere. A failing source is logged and skipped.
func ResolveSeaLevel(ctx context.Context, cfg *config.Config, engine SeaLevelCalibrator, alt AltitudeSource) (float64, string) {
	if alt != nil {
		fix, err := alt.AltitudeFix(ctx)
		if err == nil {
			c, err := Calibrate(engine, fix.Altitude, SourceGPS)
			if err == nil {
				log.Infof("sea level: %.2f hPa from GPS altitude %.1f m (%d satellites)", c.SeaLevelHPa, fix.Altitude, fix.Satellites)
				return c.SeaLevelHPa, SourceGPS
			}
			log.Warnf("sea level: GPS calibration failed: %v", err)
		} else {
			log.Warnf("sea level: no GPS altitude: %v", err)
		}
	}

	if cfg.KnownAltitude != nil {
		c, err := Calibrate(engine, *cfg.KnownAltitude, SourceManual)
		if err == nil {
			log.Infof("sea level: %.2f hPa from known altitude %.1f m", c.SeaLevelHPa, *cfg.KnownAltitude)
			return c.SeaLevelHPa, SourceManual
		}
		log.Warnf("sea level: known altitude calibration failed: %v", err)
	}

	if cfg.SeaLevelFile != "" {
		c, err := LoadSeaLevel(cfg.SeaLevelFile)
		switch {
		case err == nil:
			engine.SetSeaLevel(c.SeaLevelHPa)
			log.Infof("sea level: %.2f hPa from %s (calibrated %s)", c.SeaLevelHPa, cfg.SeaLevelFile, c.CalibrationAt)
			return c.SeaLevelHPa, SourceFile
		case errors.Is(err, fs.ErrNotExist):
			log.Infof("sea level: %s not found", cfg.SeaLevelFile)
		default:
			log.Warnf("sea level: %v", err)
		}
	}

	if cfg.SeaLevelHPa > 0 {
		engine.SetSeaLevel(cfg.SeaLevelHPa)
		log.Infof("sea level: %.2f hPa from config", cfg.SeaLevelHPa)
		return cfg.SeaLevelHPa, SourceConfig
	}

	engine.SetSeaLevel(sensors.DefaultSeaLevelHPa)
	log.Infof("sea level: using standard atmosphere %.2f hPa", sensors.DefaultSeaLevelHPa)
	return sensors.DefaultSeaLevelHPa, SourceDefault
}

// gpsSource returns the configured GPS receiver, or nil.
func gpsSource(cfg *config.Config) AltitudeSource {
	if cfg.GPSSerialPort == "" {
		return nil
	}
	return &gps.SerialSource{
		PortName: cfg.GPSSerialPort,
		BaudRate: uint(cfg.GPSBaudRate),
		Timeout:  time.Duration(cfg.GPSFixTimeoutSec) * time.Second,
	}
}
