package gps

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rmc        = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	ggaValid   = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaInvalid = "$GPGGA,123520,,,,,0,00,,,M,,M,,*61"
)

func stream(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")
}

func TestReadFix(t *testing.T) {
	fix, err := ReadFix(context.Background(), stream(
		"garbage",
		"$GPGGA,broken*00",
		rmc,
		ggaInvalid,
		ggaValid,
	))
	require.NoError(t, err)

	assert.InDelta(t, 545.4, fix.Altitude, 1e-9)
	assert.Equal(t, "1", fix.Quality)
	assert.Equal(t, int64(8), fix.Satellites)
	assert.InDelta(t, 48.1173, fix.Latitude, 1e-4)
	assert.InDelta(t, 11.5167, fix.Longitude, 1e-4)
	assert.Equal(t, "A", fix.Validity)
	assert.InDelta(t, 22.4, fix.SpeedKnots, 1e-9)
}

func TestReadFixWithoutNewlineAtEOF(t *testing.T) {
	fix, err := ReadFix(context.Background(), strings.NewReader(ggaValid))
	require.NoError(t, err)
	assert.InDelta(t, 545.4, fix.Altitude, 1e-9)
}

func TestReadFixNoFix(t *testing.T) {
	_, err := ReadFix(context.Background(), stream(rmc, ggaInvalid))
	require.ErrorIs(t, err, ErrNoFix)
}

func TestReadFixCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadFix(ctx, stream(ggaValid))
	require.ErrorIs(t, err, ErrNoFix)
}

func TestReadFixStopsWhenReaderCloses(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go func() {
		<-ctx.Done()
		pw.CloseWithError(io.ErrClosedPipe)
	}()

	_, err := ReadFix(ctx, pr)
	require.ErrorIs(t, err, ErrNoFix)
}
