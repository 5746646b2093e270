package nn

import (
	"gonum.org/v1/gonum/floats"
)

// Param is a named learned array, exposed so an external optimizer or
// checkpointer can read and overwrite it in place.
type Param struct {
	Name  string
	Shape []int
	Data  []float64
}

// Weights produces the kernel a convolution applies from whatever it stores.
type Weights interface {
	// Effective returns the kernel in [out][in/groups][kernel] layout.
	// The result is freshly allocated or read-only; callers must not modify
	// the stored parameters through it.
	Effective() []float64
	// Params lists the stored arrays, names prefixed by prefix.
	Params(prefix string) []Param
	// Reset redraws the stored arrays using draw for every kernel entry.
	Reset(draw func() float64)
}

// PlainWeights applies its stored kernel unchanged.
type PlainWeights struct {
	Shape [3]int
	W     []float64
}

// NewPlainWeights allocates a zero kernel of shape [out, inPerGroup, kernel].
func NewPlainWeights(out, inPerGroup, kernel int) *PlainWeights {
	return &PlainWeights{
		Shape: [3]int{out, inPerGroup, kernel},
		W:     make([]float64, out*inPerGroup*kernel),
	}
}

func (p *PlainWeights) Effective() []float64 {
	return p.W
}

func (p *PlainWeights) Params(prefix string) []Param {
	return []Param{{Name: prefix + "weight", Shape: p.Shape[:], Data: p.W}}
}

func (p *PlainWeights) Reset(draw func() float64) {
	for i := range p.W {
		p.W[i] = draw()
	}
}

// WeightNorm reparameterizes a kernel as G[o] * V[o] / ||V[o]|| for every
// output channel o, where V[o] is the fiber of in/groups*kernel entries.
type WeightNorm struct {
	Shape [3]int

	// V is the direction, laid out like the effective kernel.
	V []float64
	// G is the magnitude, one value per output channel.
	G []float64
}

// NewWeightNorm allocates a zero direction and magnitude.
func NewWeightNorm(out, inPerGroup, kernel int) *WeightNorm {
	return &WeightNorm{
		Shape: [3]int{out, inPerGroup, kernel},
		V:     make([]float64, out*inPerGroup*kernel),
		G:     make([]float64, out),
	}
}

func (w *WeightNorm) fiber() int {
	return w.Shape[1] * w.Shape[2]
}

// Effective rebuilds the kernel. A zero direction fiber gives a zero row.
func (w *WeightNorm) Effective() []float64 {
	n := w.fiber()
	out := make([]float64, len(w.V))
	for o, g := range w.G {
		v := w.V[o*n : (o+1)*n]
		norm := floats.Norm(v, 2)
		if norm == 0 {
			continue
		}
		floats.ScaleTo(out[o*n:(o+1)*n], g/norm, v)
	}
	return out
}

func (w *WeightNorm) Params(prefix string) []Param {
	return []Param{
		{Name: prefix + "weight_g", Shape: []int{w.Shape[0], 1, 1}, Data: w.G},
		{Name: prefix + "weight_v", Shape: w.Shape[:], Data: w.V},
	}
}

// Reset draws a new direction and sets every magnitude to the norm of its
// fiber, so the effective kernel equals the drawn direction.
func (w *WeightNorm) Reset(draw func() float64) {
	for i := range w.V {
		w.V[i] = draw()
	}
	w.SyncMagnitude()
}

// SyncMagnitude sets G to the per-channel norm of V.
func (w *WeightNorm) SyncMagnitude() {
	n := w.fiber()
	for o := range w.G {
		w.G[o] = floats.Norm(w.V[o*n:(o+1)*n], 2)
	}
}
