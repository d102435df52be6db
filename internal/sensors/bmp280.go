// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

// BMP280 registers.
const (
	BMP280Addr uint16 = 0x77

	bmp280RegDigT1    = 0x88
	bmp280RegChipID   = 0xD0
	bmp280RegControl  = 0xF4
	bmp280RegPressure = 0xF7
	bmp280RegTemp     = 0xFA

	// BMP280ChipID is the value of the chip id register on a genuine BMP280.
	BMP280ChipID byte = 0x58

	// osrs_t=x1, osrs_p=x16, mode=normal.
	bmp280ControlNormal byte = 0x3F

	// DefaultSeaLevelHPa is the ISA mean sea-level pressure.
	DefaultSeaLevelHPa = 1013.25
)

// calibration holds the factory trimming coefficients of one BMP280.
// It is filled once by loadCalibration and never written again.
type calibration struct {
	t1 uint16
	t2 int16
	t3 int16

	p1 uint16
	p2 int16
	p3 int16
	p4 int16
	p5 int16
	p6 int16
	p7 int16
	p8 int16
	p9 int16
}

// loadCalibration reads dig_T1..dig_P9, one little-endian word per register
// pair starting at 0x88.
func loadCalibration(t Transport) (calibration, error) {
	var words [12]uint16
	for i := range words {
		reg := byte(bmp280RegDigT1 + 2*i)
		b, err := t.ReadReg(reg, 2)
		if err != nil {
			return calibration{}, fmt.Errorf("calibration word %d: %w", i, err)
		}
		words[i] = binary.LittleEndian.Uint16(b)
	}

	return calibration{
		t1: words[0],
		t2: int16(words[1]),
		t3: int16(words[2]),
		p1: words[3],
		p2: int16(words[4]),
		p3: int16(words[5]),
		p4: int16(words[6]),
		p5: int16(words[7]),
		p6: int16(words[8]),
		p7: int16(words[9]),
		p8: int16(words[10]),
		p9: int16(words[11]),
	}, nil
}

// compensateTemp applies the datasheet 32-bit integer formula and returns the
// temperature in 0.01°C together with t_fine.
func (c *calibration) compensateTemp(raw int32) (centi, fine int32) {
	t1 := int32(c.t1)
	var1 := (((raw >> 3) - (t1 << 1)) * int32(c.t2)) >> 11
	d := (raw >> 4) - t1
	var2 := (((d * d) >> 12) * int32(c.t3)) >> 14
	fine = var1 + var2
	centi = (fine*5 + 128) >> 8
	return centi, fine
}

// compensatePressure applies the datasheet 64-bit formula and returns the
// pressure in Pa as a Q24.8 fixed-point value. A zero first-stage denominator
// returns ErrDivisionDegenerate before any division happens.
func (c *calibration) compensatePressure(raw, fine int32) (int64, error) {
	var1 := int64(fine) - 128000
	var2 := var1 * var1 * int64(c.p6)
	var2 += (var1 * int64(c.p5)) << 17
	var2 += int64(c.p4) << 35
	var1 = ((var1 * var1 * int64(c.p3)) >> 8) + ((var1 * int64(c.p2)) << 12)
	var1 = (((int64(1) << 47) + var1) * int64(c.p1)) >> 33

	if var1 == 0 {
		return 0, ErrDivisionDegenerate
	}

	p := int64(1048576) - int64(raw)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.p9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.p8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.p7) << 4)
	return p, nil
}

// rawCode assembles a 20-bit ADC value from msb, lsb and the high nibble of
// xlsb.
func rawCode(b []byte) int32 {
	return int32(b[0])<<12 | int32(b[1])<<4 | int32(b[2])>>4
}

// TempReading is the result of a temperature compensation. Fine is the
// t_fine intermediate the pressure formula depends on; pass the reading to
// ReadPressure or ReadAltitude in the same cycle.
type TempReading struct {
	Celsius float64
	Fine    int32

	ok bool
}

// BMP280Opts configures a BMP280 engine.
type BMP280Opts struct {
	// SeaLevelHPa is the initial altitude reference. Zero means
	// DefaultSeaLevelHPa.
	SeaLevelHPa float64
}

// BMP280 is the pressure/temperature compensation engine.
type BMP280 struct {
	t Transport

	mu          sync.Mutex
	open        bool
	cal         calibration
	seaLevelHPa float64
}

// NewBMP280 returns a closed engine bound to t. Call Open before reading.
func NewBMP280(t Transport, opts *BMP280Opts) *BMP280 {
	sl := DefaultSeaLevelHPa
	if opts != nil && opts.SeaLevelHPa > 0 {
		sl = opts.SeaLevelHPa
	}
	return &BMP280{t: t, seaLevelHPa: sl}
}

// Open checks the chip identity, loads the calibration and starts continuous
// normal-mode sampling. Any failure leaves the engine closed.
func (d *BMP280) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.t.ReadReg(bmp280RegChipID, 1)
	if err != nil {
		return fmt.Errorf("bmp280: chip id: %w", err)
	}
	if id[0] != BMP280ChipID {
		return fmt.Errorf("bmp280: chip id 0x%02X, want 0x%02X: %w", id[0], BMP280ChipID, ErrUnexpectedDevice)
	}

	cal, err := loadCalibration(d.t)
	if err != nil {
		return fmt.Errorf("bmp280: %w", err)
	}

	if err := d.t.WriteReg(bmp280RegControl, bmp280ControlNormal); err != nil {
		return fmt.Errorf("bmp280: control: %w", err)
	}

	d.cal = cal
	d.open = true
	return nil
}

// Close marks the engine unusable. It does not touch the bus; the owner of
// the transport releases it.
func (d *BMP280) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// IsOpen reports whether Open succeeded and Close has not been called since.
func (d *BMP280) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// SeaLevel returns the current altitude reference in hPa.
func (d *BMP280) SeaLevel() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seaLevelHPa
}

// SetSeaLevel replaces the altitude reference.
func (d *BMP280) SetSeaLevel(hPa float64) {
	d.mu.Lock()
	d.seaLevelHPa = hPa
	d.mu.Unlock()
}

// ReadTemperature samples and compensates the temperature.
func (d *BMP280) ReadTemperature() (TempReading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readTemperature()
}

func (d *BMP280) readTemperature() (TempReading, error) {
	if !d.open {
		return TempReading{}, ErrClosed
	}
	b, err := d.t.ReadReg(bmp280RegTemp, 3)
	if err != nil {
		return TempReading{}, fmt.Errorf("bmp280: temperature: %w", err)
	}
	centi, fine := d.cal.compensateTemp(rawCode(b))
	return TempReading{Celsius: float64(centi) / 100, Fine: fine, ok: true}, nil
}

// ReadPressure samples the pressure and compensates it with t, returning Pa.
func (d *BMP280) ReadPressure(t TempReading) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readPressure(t)
}

func (d *BMP280) readPressure(t TempReading) (float64, error) {
	if !d.open {
		return 0, ErrClosed
	}
	if !t.ok {
		return 0, ErrNoTemperature
	}
	b, err := d.t.ReadReg(bmp280RegPressure, 3)
	if err != nil {
		return 0, fmt.Errorf("bmp280: pressure: %w", err)
	}
	q, err := d.cal.compensatePressure(rawCode(b), t.Fine)
	if err != nil {
		return 0, fmt.Errorf("bmp280: %w", err)
	}
	return float64(q) / 256, nil
}

// ReadAltitude re-reads the pressure and converts it to meters above the
// sea-level reference.
func (d *BMP280) ReadAltitude(t TempReading) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pa, err := d.readPressure(t)
	if err != nil {
		return 0, err
	}
	return Altitude(pa, d.seaLevelHPa), nil
}

// CalibrateSeaLevel reads temperature and pressure at a known altitude in
// meters, stores the back-solved sea-level reference and returns it in hPa.
func (d *BMP280) CalibrateSeaLevel(altitude float64) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := d.readTemperature()
	if err != nil {
		return 0, err
	}
	pa, err := d.readPressure(t)
	if err != nil {
		return 0, err
	}
	d.seaLevelHPa = SeaLevelFromAltitude(pa, t.Celsius, altitude)
	return d.seaLevelHPa, nil
}

// Altitude converts a pressure in Pa to meters using the international
// barometric formula against seaLevelHPa.
func Altitude(pa, seaLevelHPa float64) float64 {
	return 44330 * (1.0 - math.Pow(pa/100/seaLevelHPa, 0.1903))
}

// SeaLevelFromAltitude back-solves the sea-level pressure in hPa from a
// station pressure in Pa, the station temperature and its altitude.
// It is the exact inverse of Altitude only along the ISA temperature profile.
func SeaLevelFromAltitude(pa, tempC, altitude float64) float64 {
	h := 0.0065 * altitude
	return pa / 100 * math.Pow(1-h/(tempC+h+273.15), -5.257)
}
