package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRecordAndRecent(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()

	full := env.Sample{
		Source:       "spacenode",
		Time:         base,
		Temperature:  25.08,
		Pressure:     100653.25,
		Altitude:     56.08,
		PressureOK:   true,
		HumidityTemp: 24.9,
		Humidity:     41.5,
		HumidityOK:   true,
	}
	humidityOnly := env.Sample{
		Source:       "spacenode",
		Time:         base.Add(5 * time.Second),
		HumidityTemp: 25,
		Humidity:     50,
		HumidityOK:   true,
	}
	require.NoError(t, h.Record(ctx, full))
	require.NoError(t, h.Record(ctx, humidityOnly))

	got, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []env.Sample{humidityOnly, full}, got)

	got, err = h.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []env.Sample{humidityOnly}, got)
}

func TestRecentEmpty(t *testing.T) {
	got, err := openTemp(t).Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReopenKeepsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), env.Sample{Source: "a", Time: base}))
	require.NoError(t, h.Close())

	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()
	got, err := h.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Source)
}

func TestRecentOrdersWithinSecond(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()

	at := base.Add(5 * time.Second)
	a := env.Sample{Source: "a", Time: at.Add(100 * time.Millisecond)}
	b := env.Sample{Source: "b", Time: at.Add(120 * time.Millisecond)}
	c := env.Sample{Source: "c", Time: at}
	d := env.Sample{Source: "d", Time: at.Add(time.Second)}
	for _, s := range []env.Sample{a, b, c, d} {
		require.NoError(t, h.Record(ctx, s))
	}

	got, err := h.Recent(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, []env.Sample{d, b, a, c}, got)
}

func TestRecordIgnoresReplayedSample(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()

	s := env.Sample{Source: "spacenode", Time: base, Humidity: 40, HumidityOK: true}
	require.NoError(t, h.Record(ctx, s))
	require.NoError(t, h.Record(ctx, s))

	// Same time from another producer is a distinct sample.
	other := s
	other.Source = "mock"
	require.NoError(t, h.Record(ctx, other))

	got, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
