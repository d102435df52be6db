package env

import (
	"fmt"
	"strings"
	"time"
)

// Sample represents one sampling cycle across the pressure and humidity
// sensors. Fields of a sensor that failed during the cycle stay zero and its
// OK flag is false.
type Sample struct {
	Source string    `json:"source"` // node or driver name
	Time   time.Time `json:"time"`

	// BMP280
	Temperature float64 `json:"temp_c"`      // °C
	Pressure    float64 `json:"pressure_pa"` // Pa
	Altitude    float64 `json:"altitude_m"`  // m above the sea-level reference
	PressureOK  bool    `json:"pressure_ok"`

	// SHT31
	HumidityTemp float64 `json:"humidity_temp_c"` // °C
	Humidity     float64 `json:"humidity_rh"`     // %RH
	HumidityOK   bool    `json:"humidity_ok"`
}

// PressureHPa returns the pressure in hPa (same as mbar).
func (s Sample) PressureHPa() float64 {
	return s.Pressure / 100.0
}

// String renders the sample the way it is printed on the node console, one
// line per sensor that produced data.
func (s Sample) String() string {
	var lines []string
	if s.HumidityOK {
		lines = append(lines, fmt.Sprintf("SHT31: Temp = %.2f °C, Hum = %.2f %%", s.HumidityTemp, s.Humidity))
	}
	if s.PressureOK {
		lines = append(lines, fmt.Sprintf("BMP280: Temp = %.2f °C, Press = %.2f Pa, Alt = %.2f m", s.Temperature, s.Pressure, s.Altitude))
	}
	if len(lines) == 0 {
		return "no sensor data"
	}
	return strings.Join(lines, "\n")
}
