package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Layer is anything holding learned parameters.
type Layer interface {
	Params(prefix string) []Param
	Reset(draw func() float64)
}

// Initializer redraws kernels from a Gaussian and zeroes biases.
type Initializer struct {
	Mean float64
	Std  float64
	Src  rand.Source
}

// NewInitializer returns the N(0, 0.02) initializer seeded with seed.
func NewInitializer(seed uint64) *Initializer {
	return &Initializer{Std: 0.02, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Apply resets every layer, in order. The same seed and layer list always
// produce the same parameters.
func (in *Initializer) Apply(layers ...Layer) {
	dist := distuv.Normal{Mu: in.Mean, Sigma: in.Std, Src: in.Src}
	for _, l := range layers {
		l.Reset(dist.Rand)
	}
}

// CountParams sums the sizes of all arrays of the given layers.
func CountParams(layers ...Layer) int {
	var n int
	for _, l := range layers {
		for _, p := range l.Params("") {
			n += len(p.Data)
		}
	}
	return n
}
