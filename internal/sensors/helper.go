package sensors

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultHelperTimeout = 5 * time.Second

// HumidityHelper reads the humidity sensor through an external program that
// prints one "temperature;humidity" line, e.g. a vendor Python script.
type HumidityHelper struct {
	Command []string
	Timeout time.Duration

	// run executes the command and returns its stdout.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewHumidityHelper builds a helper from a whitespace separated command line.
func NewHumidityHelper(cmdline string, timeout time.Duration) *HumidityHelper {
	if timeout <= 0 {
		timeout = defaultHelperTimeout
	}
	return &HumidityHelper{
		Command: strings.Fields(cmdline),
		Timeout: timeout,
		run:     runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ReadTemperatureAndHumidity runs the helper once and parses its output.
func (h *HumidityHelper) ReadTemperatureAndHumidity() (float64, float64, error) {
	if len(h.Command) == 0 {
		return 0, 0, fmt.Errorf("%w: no command configured", ErrHelper)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	out, err := h.run(ctx, h.Command[0], h.Command[1:]...)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrHelper, h.Command[0], err)
	}
	return parseHelperOutput(out)
}

func parseHelperOutput(out []byte) (float64, float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if !sc.Scan() {
		return 0, 0, fmt.Errorf("%w: empty output", ErrHelper)
	}
	line := strings.TrimSpace(sc.Text())

	parts := strings.Split(line, ";")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: malformed output %q", ErrHelper, line)
	}

	t, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: temperature %q: %v", ErrHelper, parts[0], err)
	}
	rh, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: humidity %q: %v", ErrHelper, parts[1], err)
	}
	return t, rh, nil
}
