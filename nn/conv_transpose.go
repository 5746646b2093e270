package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/gomelgan/tensor"
)

// ConvTranspose1d is the adjoint of Conv1d: every input sample scatters a
// scaled copy of the kernel into the output, Stride samples apart.
type ConvTranspose1d struct {
	In, Out       int
	Kernel        int
	Stride        int
	Padding       int
	OutputPadding int
	Dilation      int
	Groups        int

	// Weight is laid out [out][in/groups][kernel] like Conv1d.
	Weight Weights
	Bias   []float64
}

// NewConvTranspose1d builds a transposed convolution with a plain kernel.
func NewConvTranspose1d(in, out, kernel int, opts ...Option) (*ConvTranspose1d, error) {
	o, err := resolveTranspose(in, out, kernel, opts)
	if err != nil {
		return nil, err
	}
	return newConvTranspose1d(in, out, kernel, o, NewPlainWeights(out, in/o.groups, kernel)), nil
}

// WNConvTranspose1d builds a transposed convolution with a weight-normalized kernel.
func WNConvTranspose1d(in, out, kernel int, opts ...Option) (*ConvTranspose1d, error) {
	o, err := resolveTranspose(in, out, kernel, opts)
	if err != nil {
		return nil, err
	}
	return newConvTranspose1d(in, out, kernel, o, NewWeightNorm(out, in/o.groups, kernel)), nil
}

func resolveTranspose(in, out, kernel int, opts []Option) (convOptions, error) {
	o, err := resolve(in, out, kernel, opts)
	if err != nil {
		return o, err
	}
	if o.outputPadding >= max(o.stride, o.dilation) {
		return o, fmt.Errorf("%w: output padding %d must be smaller than stride %d or dilation %d",
			ErrConfig, o.outputPadding, o.stride, o.dilation)
	}
	return o, nil
}

func newConvTranspose1d(in, out, kernel int, o convOptions, w Weights) *ConvTranspose1d {
	return &ConvTranspose1d{
		In:            in,
		Out:           out,
		Kernel:        kernel,
		Stride:        o.stride,
		Padding:       o.padding,
		OutputPadding: o.outputPadding,
		Dilation:      o.dilation,
		Groups:        o.groups,
		Weight:        w,
		Bias:          make([]float64, out),
	}
}

// OutLen is the output length for an input of length n.
func (c *ConvTranspose1d) OutLen(n int) int {
	if n <= 0 {
		return 0
	}
	return max(0, (n-1)*c.Stride-2*c.Padding+c.Dilation*(c.Kernel-1)+c.OutputPadding+1)
}

// Forward maps x of shape [B, In, L] to [B, Out, OutLen(L)].
func (c *ConvTranspose1d) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := x.CheckChannels("ConvTranspose1d", c.In); err != nil {
		return nil, err
	}
	n := c.OutLen(x.Length)
	if n == 0 {
		return nil, &tensor.ShapeError{
			Op:       "ConvTranspose1d",
			Expected: []int{x.Batch, c.In, tensor.Any},
			Actual:   x.Shape(),
		}
	}

	inG, outG := c.In/c.Groups, c.Out/c.Groups
	scatter := c.scatterKernels(inG, outG)
	out := tensor.New(x.Batch, c.Out, n)

	err := forEachItem(x.Batch, func(b int) error {
		cols := mat.NewDense(outG*c.Kernel, x.Length, nil)
		for g := 0; g < c.Groups; g++ {
			start := (b*c.In + g*inG) * x.Length
			src := mat.NewDense(inG, x.Length, x.Data[start:start+inG*x.Length])
			cols.Mul(scatter[g], src)

			for o := 0; o < outG; o++ {
				dst := out.Row(b, g*outG+o)
				for j := 0; j < c.Kernel; j++ {
					row := cols.RawRowView(o*c.Kernel + j)
					off := j*c.Dilation - c.Padding
					for t, v := range row {
						if p := t*c.Stride + off; p >= 0 && p < n {
							dst[p] += v
						}
					}
				}
			}
		}
		addBias(out, b, c.Bias)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scatterKernels rearranges the kernel of every group into an
// (outG*kernel) x inG matrix whose row o*kernel+j holds tap j of output o.
func (c *ConvTranspose1d) scatterKernels(inG, outG int) []*mat.Dense {
	w := c.Weight.Effective()
	out := make([]*mat.Dense, c.Groups)
	for g := range out {
		m := mat.NewDense(outG*c.Kernel, inG, nil)
		for o := 0; o < outG; o++ {
			base := (g*outG + o) * inG * c.Kernel
			for i := 0; i < inG; i++ {
				for j := 0; j < c.Kernel; j++ {
					m.Set(o*c.Kernel+j, i, w[base+i*c.Kernel+j])
				}
			}
		}
		out[g] = m
	}
	return out
}

// Params lists the kernel and bias arrays.
func (c *ConvTranspose1d) Params(prefix string) []Param {
	return append(c.Weight.Params(prefix), Param{Name: prefix + "bias", Shape: []int{c.Out}, Data: c.Bias})
}

// Reset redraws the kernel and zeroes the bias.
func (c *ConvTranspose1d) Reset(draw func() float64) {
	c.Weight.Reset(draw)
	clear(c.Bias)
}
