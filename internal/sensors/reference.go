// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"time"

	"github.com/relabs-tech/spacenode/internal/env"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// ReadReferenceEnv samples the BMP280 at addr through periph's bmxx80 driver.
// The driver reprograms the sensor's oversampling and puts it back to sleep
// when done, so callers must reopen the native engine afterwards.
func ReadReferenceEnv(bus i2c.Bus, addr uint16) (env.Sample, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return env.Sample{}, fmt.Errorf("bmxx80 init: %w", err)
	}
	defer dev.Halt()

	var e physic.Env
	if err := dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("bmxx80 sense: %w", err)
	}

	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return env.Sample{
		Source:      "bmxx80",
		Time:        time.Now(),
		Temperature: e.Temperature.Celsius(),
		Pressure:    pressurePa,
		PressureOK:  true,
	}, nil
}

// CrossCheck compares a native sample against the driver reference and
// returns the absolute temperature (°C) and pressure (Pa) deltas.
func CrossCheck(native, reference env.Sample) (dTemp, dPressure float64) {
	dTemp = native.Temperature - reference.Temperature
	if dTemp < 0 {
		dTemp = -dTemp
	}
	dPressure = native.Pressure - reference.Pressure
	if dPressure < 0 {
		dPressure = -dPressure
	}
	return dTemp, dPressure
}
