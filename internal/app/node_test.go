package app

import (
	"testing"
	"time"

	"github.com/relabs-tech/spacenode/internal/config"
	"github.com/relabs-tech/spacenode/internal/sensors"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplingConfig(t *testing.T) {
	assert.Nil(t, samplingConfig(&config.Config{}))

	rate := 5
	sc := samplingConfig(&config.Config{SamplingRate: &rate})
	require.NotNil(t, sc)
	assert.Equal(t, 5*time.Second, sc.Interval)
}

func TestHumidityReaderPrefersHelper(t *testing.T) {
	r, err := humidityReader(&config.Config{HumidityHelper: "python3 sht31.py", HumidityHelperTimeout: 2000}, nil)
	require.NoError(t, err)
	h, ok := r.(*sensors.HumidityHelper)
	require.True(t, ok)
	assert.Equal(t, []string{"python3", "sht31.py"}, h.Command)
	assert.Equal(t, 2*time.Second, h.Timeout)
}

func TestSetLogLevel(t *testing.T) {
	prev := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(prev) })

	SetLogLevel("debug")
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	SetLogLevel("nonsense")
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}
