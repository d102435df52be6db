package sensors

import (
	"testing"

	"github.com/relabs-tech/spacenode/internal/env"
	"github.com/stretchr/testify/assert"
)

func TestCrossCheckIsSymmetric(t *testing.T) {
	a := env.Sample{Temperature: 25.08, Pressure: 100653.25}
	b := env.Sample{Temperature: 24.58, Pressure: 100663.25}

	dT, dP := CrossCheck(a, b)
	assert.InDelta(t, 0.5, dT, 1e-9)
	assert.InDelta(t, 10, dP, 1e-9)

	dT2, dP2 := CrossCheck(b, a)
	assert.Equal(t, dT, dT2)
	assert.Equal(t, dP, dP2)
}
