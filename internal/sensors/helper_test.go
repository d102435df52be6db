package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHelperOutput(t *testing.T) {
	tc, rh, err := parseHelperOutput([]byte(" 21.5;48.25 \nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, 21.5, tc)
	assert.Equal(t, 48.25, rh)

	for _, in := range []string{"", "21.5", "abc;1", "1;abc"} {
		_, _, err := parseHelperOutput([]byte(in))
		assert.ErrorIs(t, err, ErrHelper, "input %q", in)
	}
}

func TestHumidityHelperRun(t *testing.T) {
	h := NewHumidityHelper("/usr/bin/python /home/pi/sht31.py", 0)
	assert.Equal(t, defaultHelperTimeout, h.Timeout)

	var gotName string
	var gotArgs []string
	h.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		gotName, gotArgs = name, args
		return []byte("23.1;40.2\n"), nil
	}

	tc, rh, err := h.ReadTemperatureAndHumidity()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/python", gotName)
	assert.Equal(t, []string{"/home/pi/sht31.py"}, gotArgs)
	assert.Equal(t, 23.1, tc)
	assert.Equal(t, 40.2, rh)
}

func TestHumidityHelperFailure(t *testing.T) {
	h := NewHumidityHelper("helper", time.Second)
	h.run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}
	_, _, err := h.ReadTemperatureAndHumidity()
	require.ErrorIs(t, err, ErrHelper)

	empty := NewHumidityHelper("", time.Second)
	_, _, err = empty.ReadTemperatureAndHumidity()
	require.ErrorIs(t, err, ErrHelper)
}
