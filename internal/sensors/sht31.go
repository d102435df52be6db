// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// SHT31 commands.
const (
	SHT31Addr uint16 = 0x44

	sht31MeasHighRep uint16 = 0x2400
	sht31SoftReset   uint16 = 0x30A2
	sht31HeaterOn    uint16 = 0x306D
	sht31HeaterOff   uint16 = 0x3066

	sht31ResetDelay   = 10 * time.Millisecond
	sht31MeasureDelay = 500 * time.Millisecond
)

// SHT31Opts configures an SHT31 engine.
type SHT31Opts struct {
	// VerifyCRC rejects responses whose CRC-8 bytes do not match. Off by
	// default: the checksum bytes are read and ignored.
	VerifyCRC bool

	// Sleep replaces time.Sleep for the settling delays.
	Sleep func(time.Duration)
}

// SHT31 is the humidity/temperature engine. Every call issues its own
// command, so nothing carries over between reads.
type SHT31 struct {
	t     Transport
	crc   bool
	sleep func(time.Duration)

	mu   sync.Mutex
	open bool
}

// NewSHT31 returns a closed engine bound to t. Call Open before reading.
func NewSHT31(t Transport, opts *SHT31Opts) *SHT31 {
	d := &SHT31{t: t, sleep: time.Sleep}
	if opts != nil {
		d.crc = opts.VerifyCRC
		if opts.Sleep != nil {
			d.sleep = opts.Sleep
		}
	}
	return d
}

// Open soft-resets the sensor and waits for it to settle.
func (d *SHT31) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.t.Command(sht31SoftReset); err != nil {
		return fmt.Errorf("sht31: soft reset: %w", err)
	}
	d.sleep(sht31ResetDelay)
	d.open = true
	return nil
}

// Close marks the engine unusable.
func (d *SHT31) Close() error {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
	return nil
}

// IsOpen reports whether the engine can be read.
func (d *SHT31) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// SetHeater switches the on-chip heater.
func (d *SHT31) SetHeater(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrClosed
	}

	cmd := sht31HeaterOff
	if on {
		cmd = sht31HeaterOn
	}
	if err := d.t.Command(cmd); err != nil {
		return fmt.Errorf("sht31: heater: %w", err)
	}
	return nil
}

// ReadTemperatureAndHumidity triggers a high repeatability measurement and
// blocks for the full conversion time before reading the result.
func (d *SHT31) ReadTemperatureAndHumidity() (tempC, rh float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return 0, 0, ErrClosed
	}

	if err := d.t.Command(sht31MeasHighRep); err != nil {
		return 0, 0, fmt.Errorf("sht31: measure: %w", err)
	}
	d.sleep(sht31MeasureDelay)

	b, err := d.t.Read(6)
	if err != nil {
		return 0, 0, fmt.Errorf("sht31: result: %w", err)
	}

	if d.crc {
		if crc8(b[0:2]) != b[2] {
			return 0, 0, fmt.Errorf("sht31: temperature word: %w", ErrChecksum)
		}
		if crc8(b[3:5]) != b[5] {
			return 0, 0, fmt.Errorf("sht31: humidity word: %w", ErrChecksum)
		}
	}

	return ConvertSHT31Temperature(binary.BigEndian.Uint16(b[0:2])),
		ConvertSHT31Humidity(binary.BigEndian.Uint16(b[3:5])), nil
}

// ConvertSHT31Temperature maps a raw word to °C.
func ConvertSHT31Temperature(raw uint16) float64 {
	return -45 + 175*float64(raw)/0xFFFF
}

// ConvertSHT31Humidity maps a raw word to %RH.
func ConvertSHT31Humidity(raw uint16) float64 {
	return 100 * float64(raw) / 0xFFFF
}

// crc8 is the Sensirion CRC (poly 0x31, init 0xFF).
func crc8(buf []byte) uint8 {
	crc := uint8(0xFF)
	for _, v := range buf {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
