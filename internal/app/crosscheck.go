package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
)

// ErrCrossCheckMismatch is returned when the native engine and the driver
// reference disagree beyond tolerance.
var ErrCrossCheckMismatch = errors.New("crosscheck: native and reference readings disagree")

// crossCheckReport compares both readings against the tolerances.
func crossCheckReport(native, reference env.Sample, tolTemp, tolPressure float64) (string, error) {
	dT, dP := sensors.CrossCheck(native, reference)
	report := fmt.Sprintf(
		"native:    T=%7.2f°C  P=%10.2fPa\nreference: T=%7.2f°C  P=%10.2fPa\ndelta:     T=%7.2f°C  P=%10.2fPa",
		native.Temperature, native.Pressure,
		reference.Temperature, reference.Pressure,
		dT, dP,
	)
	if dT > tolTemp || dP > tolPressure {
		return report, fmt.Errorf("%w: ΔT=%.2f°C (max %.2f), ΔP=%.2fPa (max %.2f)", ErrCrossCheckMismatch, dT, tolTemp, dP, tolPressure)
	}
	return report, nil
}

// RunCrossCheck reads the BMP280 once with the native engine and once with
// periph's bmxx80 driver and prints both.
func RunCrossCheck(tolTemp, tolPressure float64) error {
	cfg := config.Get()

	bus, err := sensors.OpenBus(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	native := sensors.NewBMP280(sensors.NewI2CTransport(bus, cfg.BMP280Addr), nil)
	if err := native.Open(); err != nil {
		return err
	}
	// Let normal mode complete its first conversion.
	time.Sleep(100 * time.Millisecond)

	n := NewSampler(nil, native, nil, nil).Sample(time.Now())
	if !n.PressureOK {
		return fmt.Errorf("crosscheck: native BMP280 read failed")
	}
	native.Close()

	ref, err := sensors.ReadReferenceEnv(bus, cfg.BMP280Addr)
	if err != nil {
		return err
	}

	report, err := crossCheckReport(n, ref, tolTemp, tolPressure)
	fmt.Println(report)
	if err != nil {
		return err
	}
	log.Info("crosscheck: readings agree")
	return nil
}
