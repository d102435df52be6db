// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// BusSpeed is the I²C clock both sensors are driven at (Fast Mode Plus).
const BusSpeed = 1 * physic.MegaHertz

// Transport is the raw register/command I/O the sensor engines need.
// Implementations are single-owner and not reentrant.
type Transport interface {
	// ReadReg writes the register address and reads n bytes back.
	ReadReg(reg byte, n int) ([]byte, error)
	// WriteReg writes data starting at reg.
	WriteReg(reg byte, data ...byte) error
	// Command writes a 16-bit big-endian command word.
	Command(cmd uint16) error
	// Read reads n bytes without writing a register address first.
	Read(n int) ([]byte, error)
}

type connTransport struct {
	c conn.Conn
}

// NewTransport wraps a periph connection, typically an *i2c.Dev.
func NewTransport(c conn.Conn) Transport {
	return &connTransport{c: c}
}

// NewI2CTransport binds a transport to addr on bus.
func NewI2CTransport(bus i2c.Bus, addr uint16) Transport {
	return &connTransport{c: &i2c.Dev{Bus: bus, Addr: addr}}
}

func (t *connTransport) ReadReg(reg byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := t.c.Tx([]byte{reg}, r); err != nil {
		return nil, fmt.Errorf("read reg 0x%02X: %w", reg, err)
	}
	return r, nil
}

func (t *connTransport) WriteReg(reg byte, data ...byte) error {
	w := append([]byte{reg}, data...)
	if err := t.c.Tx(w, nil); err != nil {
		return fmt.Errorf("write reg 0x%02X: %w", reg, err)
	}
	return nil
}

func (t *connTransport) Command(cmd uint16) error {
	if err := t.c.Tx([]byte{byte(cmd >> 8), byte(cmd & 0xFF)}, nil); err != nil {
		return fmt.Errorf("command 0x%04X: %w", cmd, err)
	}
	return nil
}

func (t *connTransport) Read(n int) ([]byte, error) {
	r := make([]byte, n)
	if err := t.c.Tx(nil, r); err != nil {
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}
	return r, nil
}

// OpenBus initializes periph and opens the named I²C bus ("" for the first
// available one) at BusSpeed. Not every host driver supports changing the
// clock, so a SetSpeed failure is only logged.
func OpenBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}

	if err := bus.SetSpeed(BusSpeed); err != nil {
		log.Warnf("i2c: bus %s: cannot set speed to %s: %v", bus, BusSpeed, err)
	}
	return bus, nil
}
