package nn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/gomelgan/tensor"
)

// ErrConfig is wrapped by invalid layer hyperparameters.
var ErrConfig = errors.New("nn: invalid layer configuration")

type convOptions struct {
	stride        int
	padding       int
	dilation      int
	groups        int
	outputPadding int
}

// Option configures a convolution at construction.
type Option func(*convOptions)

// Stride sets the step between output positions (default 1).
func Stride(s int) Option { return func(o *convOptions) { o.stride = s } }

// Padding sets the implicit zero padding on both sides (default 0).
func Padding(p int) Option { return func(o *convOptions) { o.padding = p } }

// Dilation sets the spacing between kernel taps (default 1).
func Dilation(d int) Option { return func(o *convOptions) { o.dilation = d } }

// Groups splits input and output channels into independent groups (default 1).
func Groups(g int) Option { return func(o *convOptions) { o.groups = g } }

// OutputPadding extends a transposed convolution's output on the right.
func OutputPadding(p int) Option { return func(o *convOptions) { o.outputPadding = p } }

func resolve(in, out, kernel int, opts []Option) (convOptions, error) {
	o := convOptions{stride: 1, dilation: 1, groups: 1}
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case in <= 0 || out <= 0 || kernel <= 0:
		return o, fmt.Errorf("%w: channels %d->%d kernel %d", ErrConfig, in, out, kernel)
	case o.stride <= 0 || o.dilation <= 0 || o.padding < 0 || o.outputPadding < 0:
		return o, fmt.Errorf("%w: stride %d dilation %d padding %d output padding %d",
			ErrConfig, o.stride, o.dilation, o.padding, o.outputPadding)
	case o.groups <= 0 || in%o.groups != 0 || out%o.groups != 0:
		return o, fmt.Errorf("%w: %d groups do not divide channels %d->%d", ErrConfig, o.groups, in, out)
	}
	return o, nil
}

// Conv1d is a grouped, strided, dilated one-dimensional convolution with
// implicit zero padding.
type Conv1d struct {
	In, Out  int
	Kernel   int
	Stride   int
	Padding  int
	Dilation int
	Groups   int

	Weight Weights
	Bias   []float64
}

// NewConv1d builds a convolution with a plain kernel.
func NewConv1d(in, out, kernel int, opts ...Option) (*Conv1d, error) {
	o, err := resolve(in, out, kernel, opts)
	if err != nil {
		return nil, err
	}
	return newConv1d(in, out, kernel, o, NewPlainWeights(out, in/o.groups, kernel)), nil
}

// WNConv1d builds a convolution with a weight-normalized kernel.
func WNConv1d(in, out, kernel int, opts ...Option) (*Conv1d, error) {
	o, err := resolve(in, out, kernel, opts)
	if err != nil {
		return nil, err
	}
	return newConv1d(in, out, kernel, o, NewWeightNorm(out, in/o.groups, kernel)), nil
}

func newConv1d(in, out, kernel int, o convOptions, w Weights) *Conv1d {
	return &Conv1d{
		In:       in,
		Out:      out,
		Kernel:   kernel,
		Stride:   o.stride,
		Padding:  o.padding,
		Dilation: o.dilation,
		Groups:   o.groups,
		Weight:   w,
		Bias:     make([]float64, out),
	}
}

// OutLen is the output length for an input of length n.
func (c *Conv1d) OutLen(n int) int {
	span := n + 2*c.Padding - c.Dilation*(c.Kernel-1) - 1
	if span < 0 {
		return 0
	}
	return span/c.Stride + 1
}

// Forward convolves x of shape [B, In, L] into [B, Out, OutLen(L)].
func (c *Conv1d) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := x.CheckChannels("Conv1d", c.In); err != nil {
		return nil, err
	}
	n := c.OutLen(x.Length)
	if n == 0 {
		return nil, &tensor.ShapeError{
			Op:       "Conv1d",
			Expected: []int{x.Batch, c.In, c.Dilation*(c.Kernel-1) + 1 - 2*c.Padding},
			Actual:   x.Shape(),
		}
	}

	w := c.Weight.Effective()
	inG, outG := c.In/c.Groups, c.Out/c.Groups
	rows := inG * c.Kernel
	out := tensor.New(x.Batch, c.Out, n)

	err := forEachItem(x.Batch, func(b int) error {
		cols := mat.NewDense(rows, n, nil)
		for g := 0; g < c.Groups; g++ {
			for i := 0; i < inG; i++ {
				src := x.Row(b, g*inG+i)
				for j := 0; j < c.Kernel; j++ {
					row := cols.RawRowView(i*c.Kernel + j)
					off := j*c.Dilation - c.Padding
					for t := range row {
						p := t*c.Stride + off
						if p >= 0 && p < len(src) {
							row[t] = src[p]
						} else {
							row[t] = 0
						}
					}
				}
			}
			kernel := mat.NewDense(outG, rows, w[g*outG*rows:(g+1)*outG*rows])
			start := (b*c.Out + g*outG) * n
			dst := mat.NewDense(outG, n, out.Data[start:start+outG*n])
			dst.Mul(kernel, cols)
		}
		addBias(out, b, c.Bias)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Params lists the kernel and bias arrays.
func (c *Conv1d) Params(prefix string) []Param {
	return append(c.Weight.Params(prefix), Param{Name: prefix + "bias", Shape: []int{c.Out}, Data: c.Bias})
}

// Reset redraws the kernel and zeroes the bias.
func (c *Conv1d) Reset(draw func() float64) {
	c.Weight.Reset(draw)
	clear(c.Bias)
}

func addBias(out *tensor.Tensor, b int, bias []float64) {
	for o, v := range bias {
		if v == 0 {
			continue
		}
		row := out.Row(b, o)
		for t := range row {
			row[t] += v
		}
	}
}
