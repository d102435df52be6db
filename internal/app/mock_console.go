// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/relabs-tech/spacenode/internal/schedule"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
)

// mockEnv generates smoothly changing readings for running the sampler
// without hardware.
type mockEnv struct {
	start time.Time
	now   func() time.Time

	mu     sync.Mutex
	closed bool
}

func newMockEnv() *mockEnv {
	return &mockEnv{start: time.Now(), now: time.Now}
}

func (m *mockEnv) elapsed() float64 {
	return m.now().Sub(m.start).Seconds()
}

func (m *mockEnv) ReadTemperature() (sensors.TempReading, error) {
	c := 21 + 2*math.Sin(m.elapsed()/60)
	return sensors.TempReading{Celsius: c, Fine: int32(c * 5120)}, nil
}

func (m *mockEnv) ReadPressure(sensors.TempReading) (float64, error) {
	return 100000 + 150*math.Sin(m.elapsed()/30), nil
}

func (m *mockEnv) ReadAltitude(t sensors.TempReading) (float64, error) {
	pa, _ := m.ReadPressure(t)
	return sensors.Altitude(pa, sensors.DefaultSeaLevelHPa), nil
}

func (m *mockEnv) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *mockEnv) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockEnv) ReadTemperatureAndHumidity() (float64, float64, error) {
	e := m.elapsed()
	return 21.5 + 2*math.Sin(e/60), 45 + 10*math.Cos(e*0.7/60), nil
}

// consolePublisher prints every sample to stdout.
type consolePublisher struct{}

func (consolePublisher) Publish(s env.Sample) error {
	fmt.Println(formatConsoleLine(s))
	return nil
}

func mockInterval() time.Duration {
	if cfg := config.Get(); cfg != nil {
		if d, ok := cfg.SamplingInterval(); ok {
			return d
		}
	}
	return time.Second
}

func runMock(pub Publisher) error {
	src := newMockEnv()
	sampler := NewSampler(schedule.New(nil), src, src, pub)
	sampler.Source = "mock"
	if err := sampler.Configure(&SamplingConfig{Interval: mockInterval()}); err != nil {
		return err
	}
	defer sampler.Shutdown()
	waitForSignal()
	return nil
}

// RunMockConsole runs the sampler on simulated sensors and prints samples.
func RunMockConsole() error {
	return runMock(consolePublisher{})
}

// RunMockProducer runs the sampler on simulated sensors and publishes to
// TOPIC_ENV, for exercising the web and display without hardware.
func RunMockProducer() error {
	cfg := config.Get()
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNode+"-mock")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Infof("mock producer publishing to %s", cfg.TopicEnv)
	return runMock(NewMQTTPublisher(client, cfg.TopicEnv))
}
