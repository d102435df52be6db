package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/relabs-tech/spacenode/internal/schedule"
	"github.com/relabs-tech/spacenode/internal/schedule/schedtest"
	"github.com/relabs-tech/spacenode/internal/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type mockPressure struct {
	mock.Mock
}

func (m *mockPressure) ReadTemperature() (sensors.TempReading, error) {
	args := m.Called()
	return args.Get(0).(sensors.TempReading), args.Error(1)
}

func (m *mockPressure) ReadPressure(t sensors.TempReading) (float64, error) {
	args := m.Called(t)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockPressure) ReadAltitude(t sensors.TempReading) (float64, error) {
	args := m.Called(t)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockPressure) IsOpen() bool {
	return m.Called().Bool(0)
}

func (m *mockPressure) Close() error {
	return m.Called().Error(0)
}

type fakeHumidity struct {
	mu    sync.Mutex
	t, rh float64
	err   error
	calls int
}

func (f *fakeHumidity) ReadTemperatureAndHumidity() (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.t, f.rh, f.err
}

type chanPublisher struct {
	samples chan env.Sample
	err     error
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{samples: make(chan env.Sample, 16)}
}

func (p *chanPublisher) Publish(s env.Sample) error {
	p.samples <- s
	return p.err
}

func (p *chanPublisher) next(t *testing.T) env.Sample {
	t.Helper()
	select {
	case s := <-p.samples:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no sample published")
		return env.Sample{}
	}
}

var reading = sensors.TempReading{Celsius: 25.08, Fine: 128422}

func healthyPressure() *mockPressure {
	m := &mockPressure{}
	m.On("IsOpen").Return(true)
	m.On("ReadTemperature").Return(reading, nil)
	m.On("ReadPressure", reading).Return(100653.25, nil)
	m.On("ReadAltitude", reading).Return(56.08, nil)
	return m
}

func TestSamplerFixedRateCadence(t *testing.T) {
	clock := schedtest.NewClock(base)
	pub := newChanPublisher()
	s := NewSampler(schedule.New(clock), healthyPressure(), &fakeHumidity{t: 24.9, rh: 41.5}, pub)
	t.Cleanup(s.Shutdown)

	require.NoError(t, s.Configure(&SamplingConfig{Interval: 5 * time.Second}))
	assert.Equal(t, base, pub.next(t).Time)

	tk := clock.Tickers()[0]
	for _, off := range []time.Duration{5 * time.Second, 10 * time.Second} {
		require.True(t, tk.Fire(base.Add(off)))
		assert.Equal(t, base.Add(off), pub.next(t).Time)
	}
	require.Eventually(t, func() bool { return s.Ticks() == 3 && s.State() == Scheduled }, time.Second, time.Millisecond)
}

func TestSamplerSampleContents(t *testing.T) {
	p := healthyPressure()
	h := &fakeHumidity{t: 24.9, rh: 41.5}
	s := NewSampler(nil, p, h, nil)

	got := s.Sample(base)
	assert.Equal(t, env.Sample{
		Source:       "spacenode",
		Time:         base,
		Temperature:  25.08,
		Pressure:     100653.25,
		Altitude:     56.08,
		PressureOK:   true,
		HumidityTemp: 24.9,
		Humidity:     41.5,
		HumidityOK:   true,
	}, got)
	p.AssertExpectations(t)
}

func TestSamplerReconfigureReplacesExactlyOneTimer(t *testing.T) {
	clock := schedtest.NewClock(base)
	pub := newChanPublisher()
	s := NewSampler(schedule.New(clock), nil, &fakeHumidity{}, pub)
	t.Cleanup(s.Shutdown)

	require.NoError(t, s.Configure(&SamplingConfig{Interval: 5 * time.Second}))
	pub.next(t)
	require.NoError(t, s.Configure(&SamplingConfig{Interval: 2 * time.Second}))
	pub.next(t)

	tickers := clock.Tickers()
	require.Len(t, tickers, 2)
	assert.Equal(t, 5*time.Second, tickers[0].Period())
	assert.Equal(t, 2*time.Second, tickers[1].Period())
	require.Eventually(t, tickers[0].Stopped, time.Second, time.Millisecond)
	assert.False(t, tickers[1].Stopped())

	// Only the new timer still delivers ticks.
	assert.False(t, tickers[0].Fire(base.Add(5*time.Second)))
	require.True(t, tickers[1].Fire(base.Add(2*time.Second)))
	assert.Equal(t, base.Add(2*time.Second), pub.next(t).Time)
}

func TestSamplerInvalidIntervalKeepsState(t *testing.T) {
	clock := schedtest.NewClock(base)
	s := NewSampler(schedule.New(clock), nil, nil, nil)

	err := s.Configure(&SamplingConfig{Interval: 0})
	require.ErrorIs(t, err, ErrInvalidInterval)
	assert.Equal(t, Unconfigured, s.State())
	assert.Empty(t, clock.Tickers())

	require.NoError(t, s.Configure(&SamplingConfig{Interval: time.Second}))
	err = s.Configure(&SamplingConfig{Interval: -time.Second})
	require.ErrorIs(t, err, ErrInvalidInterval)
	assert.NotEqual(t, Unconfigured, s.State())
	assert.Len(t, clock.Tickers(), 1)
	s.Shutdown()
}

func TestSamplerNilConfigUnschedules(t *testing.T) {
	clock := schedtest.NewClock(base)
	s := NewSampler(schedule.New(clock), nil, nil, nil)

	require.NoError(t, s.Configure(&SamplingConfig{Interval: time.Second}))
	require.NoError(t, s.Configure(nil))
	assert.Equal(t, Unconfigured, s.State())
	require.Eventually(t, clock.Tickers()[0].Stopped, time.Second, time.Millisecond)

	// Shutdown on an unconfigured sampler is a no-op.
	s.Shutdown()
	assert.Equal(t, Unconfigured, s.State())
}

func TestSamplerPressureFailureClosesEngine(t *testing.T) {
	p := &mockPressure{}
	p.On("IsOpen").Return(true).Once()
	p.On("ReadTemperature").Return(reading, nil)
	p.On("ReadPressure", reading).Return(0.0, sensors.ErrDivisionDegenerate)
	p.On("Close").Return(nil).Once()
	p.On("IsOpen").Return(false)

	h := &fakeHumidity{t: 21, rh: 55}
	s := NewSampler(nil, p, h, nil)

	got := s.Sample(base)
	assert.False(t, got.PressureOK)
	assert.Zero(t, got.Pressure)
	assert.True(t, got.HumidityOK)
	assert.Equal(t, 55.0, got.Humidity)
	p.AssertCalled(t, "Close")

	// Closed engine is skipped on the next cycle; humidity keeps going.
	got = s.Sample(base.Add(time.Second))
	assert.False(t, got.PressureOK)
	assert.True(t, got.HumidityOK)
	assert.Equal(t, 2, h.calls)
	p.AssertNumberOfCalls(t, "ReadTemperature", 1)
	p.AssertExpectations(t)
}

func TestSamplerHumidityFailureIsolated(t *testing.T) {
	p := healthyPressure()
	pub := newChanPublisher()
	pub.err = errors.New("broker down")
	h := &fakeHumidity{err: sensors.ErrHelper}

	s := NewSampler(schedule.New(schedtest.NewClock(base)), p, h, pub)
	t.Cleanup(s.Shutdown)
	require.NoError(t, s.Configure(&SamplingConfig{Interval: time.Second}))

	got := pub.next(t)
	assert.True(t, got.PressureOK)
	assert.False(t, got.HumidityOK)
	p.AssertNotCalled(t, "Close")
	require.Eventually(t, func() bool { return s.Ticks() == 1 }, time.Second, time.Millisecond)
}

func TestSamplerStateString(t *testing.T) {
	assert.Equal(t, "unconfigured", Unconfigured.String())
	assert.Equal(t, "scheduled", Scheduled.String())
	assert.Equal(t, "sampling", Sampling.String())
	assert.Equal(t, "SamplerState(9)", SamplerState(9).String())
}
