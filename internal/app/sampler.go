// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/relabs-tech/spacenode/internal/schedule"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
)

// ErrInvalidInterval is returned by Configure for a non-positive interval.
var ErrInvalidInterval = errors.New("sampler: interval must be positive")

// SamplerState is the lifecycle state of a Sampler.
type SamplerState int

const (
	Unconfigured SamplerState = iota
	Scheduled
	Sampling
)

func (s SamplerState) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Scheduled:
		return "scheduled"
	case Sampling:
		return "sampling"
	default:
		return fmt.Sprintf("SamplerState(%d)", int(s))
	}
}

// SamplingConfig is the part of the node configuration the sampler reacts to.
type SamplingConfig struct {
	Interval time.Duration
}

// PressureEngine is the pressure side of a sampling cycle.
type PressureEngine interface {
	ReadTemperature() (sensors.TempReading, error)
	ReadPressure(t sensors.TempReading) (float64, error)
	ReadAltitude(t sensors.TempReading) (float64, error)
	IsOpen() bool
	Close() error
}

// HumidityReader is the humidity side of a sampling cycle. Both the SHT31
// engine and the external helper satisfy it.
type HumidityReader interface {
	ReadTemperatureAndHumidity() (tempC, rh float64, err error)
}

// Publisher receives every assembled sample.
type Publisher interface {
	Publish(s env.Sample) error
}

// Sampler reads both sensors once per tick on a fixed-rate timer that can be
// replaced at runtime.
type Sampler struct {
	Source string

	pressure PressureEngine
	humidity HumidityReader
	pub      Publisher
	sched    *schedule.Scheduler

	mu     sync.Mutex
	handle *schedule.Handle
	state  SamplerState

	ticks atomic.Uint64
}

// NewSampler wires the engines to a scheduler. Either engine and pub may be
// nil; a nil engine is skipped on every tick.
func NewSampler(sched *schedule.Scheduler, pressure PressureEngine, humidity HumidityReader, pub Publisher) *Sampler {
	if sched == nil {
		sched = schedule.New(nil)
	}
	return &Sampler{
		Source:   "spacenode",
		pressure: pressure,
		humidity: humidity,
		pub:      pub,
		sched:    sched,
	}
}

// Configure replaces the sampling timer. A nil cfg unschedules sampling.
func (s *Sampler) Configure(cfg *SamplingConfig) error {
	if cfg != nil && cfg.Interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, cfg.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.sched.Cancel(s.handle)
		s.handle = nil
	}

	if cfg == nil {
		s.state = Unconfigured
		log.Infof("sampler: no sampling rate configured, sampling stopped")
		return nil
	}

	s.state = Scheduled
	s.handle = s.sched.Arm(cfg.Interval, s.tick)
	log.Infof("sampler: sampling every %v", cfg.Interval)
	return nil
}

// Shutdown cancels the timer. The engines stay open.
func (s *Sampler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.sched.Cancel(s.handle)
		s.handle = nil
	}
	s.state = Unconfigured
}

// State returns the current lifecycle state.
func (s *Sampler) State() SamplerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns the number of completed sampling cycles.
func (s *Sampler) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *Sampler) setState(from, to SamplerState) {
	s.mu.Lock()
	if s.state == from {
		s.state = to
	}
	s.mu.Unlock()
}

// tick runs one sampling cycle. The scheduler serialises calls.
func (s *Sampler) tick(at time.Time) {
	s.setState(Scheduled, Sampling)
	defer s.setState(Sampling, Scheduled)
	defer s.ticks.Add(1)

	sample := s.Sample(at)
	log.Info(sample.String())

	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(sample); err != nil {
		log.Errorf("sampler: publish: %v", err)
	}
}

// Sample reads both sensors once, pressure first.
func (s *Sampler) Sample(at time.Time) env.Sample {
	sample := env.Sample{Source: s.Source, Time: at}
	s.readPressure(&sample)
	s.readHumidity(&sample)
	return sample
}

func (s *Sampler) readPressure(sample *env.Sample) {
	if s.pressure == nil || !s.pressure.IsOpen() {
		return
	}

	err := func() error {
		t, err := s.pressure.ReadTemperature()
		if err != nil {
			return err
		}
		pa, err := s.pressure.ReadPressure(t)
		if err != nil {
			return err
		}
		alt, err := s.pressure.ReadAltitude(t)
		if err != nil {
			return err
		}
		sample.Temperature = t.Celsius
		sample.Pressure = pa
		sample.Altitude = alt
		sample.PressureOK = true
		return nil
	}()
	if err == nil {
		return
	}

	log.Errorf("sampler: BMP280 read failed, closing engine: %v", err)
	if cerr := s.pressure.Close(); cerr != nil {
		log.Warnf("sampler: BMP280 close: %v", cerr)
	}
}

func (s *Sampler) readHumidity(sample *env.Sample) {
	if s.humidity == nil {
		return
	}
	tc, rh, err := s.humidity.ReadTemperatureAndHumidity()
	if err != nil {
		log.Errorf("sampler: SHT31 read failed: %v", err)
		return
	}
	sample.HumidityTemp = tc
	sample.Humidity = rh
	sample.HumidityOK = true
}
