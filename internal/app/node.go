// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/schedule"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
)

// SetLogLevel applies a LOG_LEVEL value, keeping the current level when it
// does not parse.
func SetLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid LOG_LEVEL %q: %v", level, err)
		return
	}
	log.SetLevel(lvl)
}

// samplingConfig maps SAMPLING_RATE onto the sampler; nil when absent.
func samplingConfig(cfg *config.Config) *SamplingConfig {
	interval, ok := cfg.SamplingInterval()
	if !ok {
		return nil
	}
	return &SamplingConfig{Interval: interval}
}

// humidityReader picks the external helper when one is configured, the
// SHT31 engine otherwise.
func humidityReader(cfg *config.Config, t sensors.Transport) (HumidityReader, error) {
	if cfg.HumidityHelper != "" {
		log.Infof("node: reading humidity through %q", cfg.HumidityHelper)
		return sensors.NewHumidityHelper(cfg.HumidityHelper, time.Duration(cfg.HumidityHelperTimeout)*time.Millisecond), nil
	}

	sht := sensors.NewSHT31(t, &sensors.SHT31Opts{VerifyCRC: cfg.SHT31CRC})
	if err := sht.Open(); err != nil {
		return nil, err
	}
	if err := sht.SetHeater(cfg.SHT31Heater); err != nil {
		log.Warnf("node: %v", err)
	}
	log.Infof("node: SHT31 initialized at 0x%02X", cfg.SHT31Addr)
	return sht, nil
}

// RunNode samples both sensors on SAMPLING_RATE and publishes every sample.
// SIGHUP re-reads configPath and reschedules; SIGINT/SIGTERM stop the node.
func RunNode(configPath string) error {
	log.Info("starting spacenode environmental sampler")

	cfg := config.Get()
	SetLogLevel(cfg.LogLevel)

	bus, err := sensors.OpenBus(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	bmp := sensors.NewBMP280(sensors.NewI2CTransport(bus, cfg.BMP280Addr), &sensors.BMP280Opts{SeaLevelHPa: cfg.SeaLevelHPa})
	if err := bmp.Open(); err != nil {
		return err
	}
	defer bmp.Close()
	log.Infof("node: BMP280 initialized at 0x%02X", cfg.BMP280Addr)

	humidity, err := humidityReader(cfg, sensors.NewI2CTransport(bus, cfg.SHT31Addr))
	if err != nil {
		return err
	}
	if sht, ok := humidity.(*sensors.SHT31); ok {
		defer sht.Close()
	}

	ResolveSeaLevel(context.Background(), cfg, bmp, gpsSource(cfg))

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNode)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	sampler := NewSampler(schedule.New(nil), bmp, humidity, NewMQTTPublisher(client, cfg.TopicEnv))
	defer sampler.Shutdown()

	if err := sampler.Configure(samplingConfig(cfg)); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			log.Infof("node: %v received, shutting down", sig)
			return nil
		}

		next, err := config.Reload(configPath)
		if err != nil {
			log.Errorf("node: reload %s: %v (keeping previous configuration)", configPath, err)
			continue
		}
		SetLogLevel(next.LogLevel)
		if err := sampler.Configure(samplingConfig(next)); err != nil {
			log.Errorf("node: %v", err)
		}
		if !bmp.IsOpen() {
			log.Warn("node: BMP280 is closed, restart the node to recover pressure readings")
		}
	}
	return fmt.Errorf("node: signal channel closed")
}
