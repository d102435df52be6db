package sensors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) { s.calls = append(s.calls, d) }

func newPlaybackSHT(t *testing.T, verify bool, ops ...i2ctest.IO) (*SHT31, *i2ctest.Playback, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	bus := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d := NewSHT31(NewI2CTransport(bus, SHT31Addr), &SHT31Opts{VerifyCRC: verify, Sleep: rec.sleep})
	return d, bus, rec
}

func resetOp() i2ctest.IO {
	return i2ctest.IO{Addr: SHT31Addr, W: []byte{0x30, 0xA2}}
}

func measureOps(resp []byte) []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: SHT31Addr, W: []byte{0x24, 0x00}},
		{Addr: SHT31Addr, R: resp},
	}
}

func TestSHT31Open(t *testing.T) {
	d, bus, rec := newPlaybackSHT(t, false, resetOp())
	require.NoError(t, d.Open())
	assert.True(t, d.IsOpen())
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, rec.calls)
	require.NoError(t, bus.Close())
}

func TestSHT31OpenFailure(t *testing.T) {
	d := NewSHT31(NewTransport(failConn{}), &SHT31Opts{Sleep: func(time.Duration) {}})
	require.ErrorIs(t, d.Open(), errBus)
	assert.False(t, d.IsOpen())
}

func TestSHT31Heater(t *testing.T) {
	d, bus, _ := newPlaybackSHT(t, false,
		resetOp(),
		i2ctest.IO{Addr: SHT31Addr, W: []byte{0x30, 0x6D}},
		i2ctest.IO{Addr: SHT31Addr, W: []byte{0x30, 0x66}},
	)
	require.NoError(t, d.Open())
	require.NoError(t, d.SetHeater(true))
	require.NoError(t, d.SetHeater(false))
	require.NoError(t, bus.Close())
}

func TestSHT31Read(t *testing.T) {
	// Checksum bytes are deliberately wrong: they are ignored by default.
	ops := append([]i2ctest.IO{resetOp()}, measureOps([]byte{0x66, 0x66, 0x00, 0x80, 0x00, 0x00})...)
	d, bus, rec := newPlaybackSHT(t, false, ops...)
	require.NoError(t, d.Open())

	tc, rh, err := d.ReadTemperatureAndHumidity()
	require.NoError(t, err)
	assert.InDelta(t, 25.0, tc, 1e-9)
	assert.InDelta(t, 50.0, rh, 1e-3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 500 * time.Millisecond}, rec.calls)
	require.NoError(t, bus.Close())
}

func TestSHT31ReadVerifyCRC(t *testing.T) {
	good := []byte{0x66, 0x66, 0x93, 0x80, 0x00, 0xA2}
	badHum := []byte{0x66, 0x66, 0x93, 0x80, 0x00, 0x00}

	ops := append([]i2ctest.IO{resetOp()}, measureOps(good)...)
	ops = append(ops, measureOps(badHum)...)
	d, _, _ := newPlaybackSHT(t, true, ops...)
	require.NoError(t, d.Open())

	_, _, err := d.ReadTemperatureAndHumidity()
	require.NoError(t, err)

	_, _, err = d.ReadTemperatureAndHumidity()
	require.ErrorIs(t, err, ErrChecksum)
}

func TestSHT31ReadClosed(t *testing.T) {
	d, _, _ := newPlaybackSHT(t, false)
	_, _, err := d.ReadTemperatureAndHumidity()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, d.SetHeater(true), ErrClosed)
}

func TestSHT31Conversion(t *testing.T) {
	assert.Equal(t, -45.0, ConvertSHT31Temperature(0))
	assert.Equal(t, 0.0, ConvertSHT31Humidity(0))
	assert.Equal(t, 130.0, ConvertSHT31Temperature(0xFFFF))
	assert.Equal(t, 100.0, ConvertSHT31Humidity(0xFFFF))
}

func TestCRC8(t *testing.T) {
	// Example from the Sensirion datasheet.
	assert.Equal(t, uint8(0x92), crc8([]byte{0xBE, 0xEF}))
}
