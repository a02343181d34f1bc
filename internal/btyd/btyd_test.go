package btyd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHyp2f1AtZero(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, hyp2f1(0.5, 2.0, 3.0, 0), 1e-12)
}

func TestHyp2f1KnownIdentity(t *testing.T) {
	t.Parallel()
	// 2F1(1, 1; 2; z) = -ln(1-z)/z
	for _, z := range []float64{0.1, 0.25, 0.5, 0.75, 0.9} {
		want := -math.Log(1-z) / z
		assert.InDelta(t, want, hyp2f1(1, 1, 2, z), 1e-9, "z=%v", z)
	}
}

func TestLogAddExp(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, math.Log(2), logAddExp(0, 0), 1e-12)
	assert.InDelta(t, math.Log(math.Exp(1)+math.Exp(2)), logAddExp(1, 2), 1e-12)
	// Large magnitudes must not overflow.
	assert.InDelta(t, 1000+math.Log(2), logAddExp(1000, 1000), 1e-9)
	assert.InDelta(t, 1000, logAddExp(1000, -1000), 1e-9)
}

func TestMaximizeLikelihoodQuadratic(t *testing.T) {
	t.Parallel()
	// Minimum of (p0-2)^2 + (p1-5)^2 over positive params.
	nll := func(p []float64) float64 {
		return (p[0]-2)*(p[0]-2) + (p[1]-5)*(p[1]-5)
	}
	params, obj, err := maximizeLikelihood(nll, 2, 0)
	assert.NoError(t, err)
	assert.InDelta(t, 2, params[0], 1e-3)
	assert.InDelta(t, 5, params[1], 1e-3)
	assert.InDelta(t, 0, obj, 1e-6)
}
