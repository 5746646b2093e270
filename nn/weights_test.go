package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestWeightNormEffectiveNormEqualsMagnitude(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	w := NewWeightNorm(6, 4, 3)
	for _, scale := range []float64{1e-3, 1, 250} {
		for i := range w.V {
			w.V[i] = scale * r.NormFloat64()
		}
		for o := range w.G {
			w.G[o] = r.Float64()*4 - 2
		}

		eff := w.Effective()
		for o, g := range w.G {
			norm := floats.Norm(eff[o*12:(o+1)*12], 2)
			assert.InDelta(t, math.Abs(g), norm, 1e-9, "channel %d scale %g", o, scale)
		}
	}
}

func TestWeightNormZeroDirection(t *testing.T) {
	w := NewWeightNorm(2, 1, 2)
	w.G[0], w.G[1] = 3, 3
	w.V[2], w.V[3] = 3, 4

	assert.True(t, floats.EqualApprox([]float64{0, 0, 1.8, 2.4}, w.Effective(), 1e-12))
}

func TestWeightNormResetKeepsDirection(t *testing.T) {
	w := NewWeightNorm(3, 2, 5)
	NewInitializer(1).Apply(&Conv1d{Weight: w})

	assert.True(t, floats.EqualApprox(w.V, w.Effective(), 1e-12))
	assert.Greater(t, floats.Min(w.G), 0.0)
}

func TestInitializerDeterministic(t *testing.T) {
	a, err := WNConv1d(4, 8, 3)
	require.NoError(t, err)
	b, err := WNConv1d(4, 8, 3)
	require.NoError(t, err)
	a.Bias[0] = 1

	NewInitializer(42).Apply(a)
	NewInitializer(42).Apply(b)
	assert.Equal(t, a.Params(""), b.Params(""))
	assert.Zero(t, a.Bias[0])

	w := a.Weight.(*WeightNorm)
	var sum, sq float64
	for _, v := range w.V {
		sum += v
		sq += v * v
	}
	n := float64(len(w.V))
	assert.InDelta(t, 0.0, sum/n, 0.02)
	assert.InDelta(t, 0.02, math.Sqrt(sq/n), 0.008)
}

func TestParamsNamesAndCounts(t *testing.T) {
	c, err := WNConv1d(4, 8, 3, Groups(2))
	require.NoError(t, err)

	params := c.Params("layer.")
	require.Len(t, params, 3)
	assert.Equal(t, "layer.weight_g", params[0].Name)
	assert.Equal(t, []int{8, 1, 1}, params[0].Shape)
	assert.Equal(t, "layer.weight_v", params[1].Name)
	assert.Equal(t, []int{8, 2, 3}, params[1].Shape)
	assert.Equal(t, "layer.bias", params[2].Name)

	p, err := NewConvTranspose1d(4, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "weight", p.Params("")[0].Name)
	assert.Equal(t, 8+48+8+40+2, CountParams(c, p))
}

