package sensors

import "errors"

var (
	// ErrUnexpectedDevice is returned by BMP280.Open when the chip id
	// register does not hold the BMP280 identity.
	ErrUnexpectedDevice = errors.New("sensors: unexpected device identity")

	// ErrClosed is returned by reads on an engine that is not open.
	ErrClosed = errors.New("sensors: device closed")

	// ErrNoTemperature is returned when pressure is requested without a
	// temperature reading from the same engine.
	ErrNoTemperature = errors.New("sensors: pressure requested without temperature reading")

	// ErrDivisionDegenerate is returned when the pressure compensation
	// denominator is zero; no pressure can be derived from the coefficients.
	ErrDivisionDegenerate = errors.New("sensors: pressure compensation denominator is zero")

	// ErrChecksum is returned by the SHT31 when CRC verification is enabled
	// and a response word fails its check.
	ErrChecksum = errors.New("sensors: sht31 checksum mismatch")

	// ErrHelper wraps failures of the external humidity helper program.
	ErrHelper = errors.New("sensors: humidity helper failed")
)
