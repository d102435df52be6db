// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// ErrNoFix is returned when the NMEA stream ends before a valid GGA fix.
var ErrNoFix = errors.New("gps: no valid fix")

// ReadFix consumes NMEA sentences from r until a GGA sentence reports a
// valid fix. RMC data seen before it is merged into the returned Fix.
func ReadFix(ctx context.Context, r io.Reader) (Fix, error) {
	reader := bufio.NewReader(r)
	var current Fix

	for {
		if err := ctx.Err(); err != nil {
			return Fix{}, fmt.Errorf("%w: %v", ErrNoFix, err)
		}

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return Fix{}, ErrNoFix
			}
			if ctx.Err() != nil {
				return Fix{}, fmt.Errorf("%w: %v", ErrNoFix, ctx.Err())
			}
			return Fix{}, fmt.Errorf("gps read: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, perr := nmea.Parse(line)
		if perr != nil {
			// noisy GPS or partial sentences
			log.Debugf("gps: NMEA parse error: %v (line: %q)", perr, line)
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			current.Time = m.Time.String()
			current.Date = m.Date.String()
			current.Latitude = m.Latitude
			current.Longitude = m.Longitude
			current.SpeedKnots = m.Speed
			current.CourseDeg = m.Course
			current.Validity = m.Validity

		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)
			if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
				continue
			}
			current.Time = m.Time.String()
			current.Latitude = m.Latitude
			current.Longitude = m.Longitude
			current.Altitude = m.Altitude
			current.Quality = m.FixQuality
			current.Satellites = m.NumSatellites
			return current, nil
		}

		if err != nil {
			return Fix{}, ErrNoFix
		}
	}
}

// SerialSource reads fixes from a GPS receiver on a serial port.
type SerialSource struct {
	PortName string
	BaudRate uint
	Timeout  time.Duration
}

// AltitudeFix opens the port, waits for one valid fix and closes the port.
// It gives up after Timeout.
func (s *SerialSource) AltitudeFix(ctx context.Context) (Fix, error) {
	opts := serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              s.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return Fix{}, fmt.Errorf("gps serial open %s: %w", s.PortName, err)
	}
	log.Infof("gps: serial port opened on %s at %d baud", opts.PortName, opts.BaudRate)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	// Closing the port is the only way to unblock a pending read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		port.Close()
	}()

	return ReadFix(ctx, port)
}
