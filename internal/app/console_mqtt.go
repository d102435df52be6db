package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/env"
	log "github.com/sirupsen/logrus"
)

// formatConsoleLine renders a sample on one line.
func formatConsoleLine(s env.Sample) string {
	line := fmt.Sprintf("[%s] %s", s.Time.Format("15:04:05"), s.Source)
	if s.PressureOK {
		line += fmt.Sprintf("  T=%6.2f°C  P=%8.2fhPa  ALT=%7.1fm", s.Temperature, s.PressureHPa(), s.Altitude)
	} else {
		line += "  BMP280 --"
	}
	if s.HumidityOK {
		line += fmt.Sprintf("  RH=%5.1f%%  T(SHT)=%6.2f°C", s.Humidity, s.HumidityTemp)
	} else {
		line += "  SHT31 --"
	}
	return line
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)
}

// RunConsoleMQTT prints every sample published on TOPIC_ENV.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDNode+"-console")
	if err != nil {
		return err
	}

	if err := subscribeSamples(client, cfg.TopicEnv, func(s env.Sample) {
		fmt.Println(formatConsoleLine(s))
	}); err != nil {
		client.Disconnect(250)
		return err
	}

	waitForSignal()

	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
