package nn

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/neurlang/gomelgan/tensor"
)

// Module is one forward stage.
type Module interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// Sequential runs its modules in order.
type Sequential []Module

func (s Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for _, m := range s {
		if x, err = m.Forward(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// LeakyReLU passes negative inputs scaled by Slope.
type LeakyReLU struct {
	Slope float64
}

func (l LeakyReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return x.LeakyReLU(l.Slope), nil
}

// Tanh bounds its input to (-1, 1).
type Tanh struct{}

func (Tanh) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return x.Tanh(), nil
}

// ReflectionPad mirrors Size samples onto both ends of the time axis.
type ReflectionPad struct {
	Size int
}

func (r ReflectionPad) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return x.ReflectionPad(r.Size, r.Size)
}

// AvgPool1d averages windows of Kernel samples, Stride apart, over an input
// implicitly padded by Padding. Padded positions are excluded from the count.
type AvgPool1d struct {
	Kernel  int
	Stride  int
	Padding int
}

// OutLen is the output length for an input of length n.
func (a AvgPool1d) OutLen(n int) int {
	span := n + 2*a.Padding - a.Kernel
	if span < 0 {
		return 0
	}
	return span/a.Stride + 1
}

func (a AvgPool1d) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	n := a.OutLen(x.Length)
	if n == 0 || x.Length == 0 {
		return nil, &tensor.ShapeError{
			Op:       "AvgPool1d",
			Expected: []int{x.Batch, x.Channels, a.Kernel - 2*a.Padding},
			Actual:   x.Shape(),
		}
	}
	out := tensor.New(x.Batch, x.Channels, n)
	for b := 0; b < x.Batch; b++ {
		for c := 0; c < x.Channels; c++ {
			src, dst := x.Row(b, c), out.Row(b, c)
			for t := range dst {
				lo := max(t*a.Stride-a.Padding, 0)
				hi := min(t*a.Stride-a.Padding+a.Kernel, len(src))
				if hi <= lo {
					continue
				}
				var sum float64
				for _, v := range src[lo:hi] {
					sum += v
				}
				dst[t] = sum / float64(hi-lo)
			}
		}
	}
	return out, nil
}

// forEachItem calls fn for every batch index, in parallel when there is more
// than one, and returns the first error.
func forEachItem(n int, fn func(b int) error) error {
	if n == 1 {
		return fn(0)
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for b := 0; b < n; b++ {
		g.Go(func() error {
			return fn(b)
		})
	}
	return g.Wait()
}
