package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/floats"

	"github.com/neurlang/gomelgan/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func randomTensor(r *rand.Rand, b, c, l int) *tensor.Tensor {
	t := tensor.New(b, c, l)
	for i := range t.Data {
		t.Data[i] = r.NormFloat64()
	}
	return t
}

func fill(r *rand.Rand, v []float64) {
	for i := range v {
		v[i] = r.NormFloat64()
	}
}

// naiveConv evaluates the textbook definition one output sample at a time.
func naiveConv(c *Conv1d, x *tensor.Tensor) *tensor.Tensor {
	w := c.Weight.Effective()
	inG, outG := c.In/c.Groups, c.Out/c.Groups
	out := tensor.New(x.Batch, c.Out, c.OutLen(x.Length))
	for b := 0; b < x.Batch; b++ {
		for o := 0; o < c.Out; o++ {
			g := o / outG
			for t := 0; t < out.Length; t++ {
				sum := c.Bias[o]
				for i := 0; i < inG; i++ {
					for j := 0; j < c.Kernel; j++ {
						p := t*c.Stride + j*c.Dilation - c.Padding
						if p < 0 || p >= x.Length {
							continue
						}
						sum += w[(o*inG+i)*c.Kernel+j] * x.At(b, g*inG+i, p)
					}
				}
				out.Set(b, o, t, sum)
			}
		}
	}
	return out
}

func naiveConvTranspose(c *ConvTranspose1d, x *tensor.Tensor) *tensor.Tensor {
	w := c.Weight.Effective()
	inG, outG := c.In/c.Groups, c.Out/c.Groups
	out := tensor.New(x.Batch, c.Out, c.OutLen(x.Length))
	for b := 0; b < x.Batch; b++ {
		for o := 0; o < c.Out; o++ {
			g := o / outG
			row := out.Row(b, o)
			for t := range row {
				row[t] = c.Bias[o]
			}
			for i := 0; i < inG; i++ {
				for s := 0; s < x.Length; s++ {
					for j := 0; j < c.Kernel; j++ {
						p := s*c.Stride + j*c.Dilation - c.Padding
						if p < 0 || p >= len(row) {
							continue
						}
						row[p] += w[(o*inG+i)*c.Kernel+j] * x.At(b, g*inG+i, s)
					}
				}
			}
		}
	}
	return out
}

func TestConv1dMatchesReference(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	cases := []struct {
		name            string
		in, out, kernel int
		opts            []Option
		length          int
	}{
		{"pointwise", 3, 5, 1, nil, 9},
		{"padded", 2, 4, 3, []Option{Padding(1)}, 8},
		{"dilated", 4, 4, 3, []Option{Dilation(3)}, 20},
		{"strided grouped", 8, 16, 41, []Option{Stride(4), Padding(20), Groups(2)}, 37},
		{"depthwise", 4, 4, 5, []Option{Groups(4), Padding(2)}, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := WNConv1d(tc.in, tc.out, tc.kernel, tc.opts...)
			require.NoError(t, err)
			NewInitializer(7).Apply(c)
			fill(r, c.Bias)

			x := randomTensor(r, 3, tc.in, tc.length)
			got, err := c.Forward(x)
			require.NoError(t, err)
			want := naiveConv(c, x)
			require.Equal(t, want.Shape(), got.Shape())
			assert.True(t, floats.EqualApprox(want.Data, got.Data, 1e-9))
		})
	}
}

func TestConvTranspose1dMatchesReference(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	cases := []struct {
		name            string
		in, out, kernel int
		opts            []Option
		length          int
	}{
		{"ratio 8", 8, 4, 16, []Option{Stride(8), Padding(4)}, 5},
		{"odd ratio", 4, 2, 6, []Option{Stride(3), Padding(2), OutputPadding(1)}, 7},
		{"pyramid", 6, 3, 41, []Option{Stride(4), Padding(20), OutputPadding(3)}, 4},
		{"grouped dilated", 4, 6, 3, []Option{Groups(2), Dilation(2), Padding(1)}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := WNConvTranspose1d(tc.in, tc.out, tc.kernel, tc.opts...)
			require.NoError(t, err)
			NewInitializer(11).Apply(c)
			fill(r, c.Bias)

			x := randomTensor(r, 2, tc.in, tc.length)
			got, err := c.Forward(x)
			require.NoError(t, err)
			want := naiveConvTranspose(c, x)
			require.Equal(t, want.Shape(), got.Shape())
			assert.True(t, floats.EqualApprox(want.Data, got.Data, 1e-9))
		})
	}
}

func TestConvTransposeUpsamplesExactly(t *testing.T) {
	for _, r := range []int{2, 3, 4, 8} {
		c, err := WNConvTranspose1d(2, 2, 2*r, Stride(r), Padding(r/2+r%2), OutputPadding(r%2))
		require.NoError(t, err)
		for _, n := range []int{1, 5, 16} {
			assert.Equal(t, n*r, c.OutLen(n), "ratio %d length %d", r, n)
		}
	}
}

func TestConvPlainWeights(t *testing.T) {
	c, err := NewConv1d(1, 1, 2)
	require.NoError(t, err)
	copy(c.Weight.(*PlainWeights).W, []float64{1, -1})
	c.Bias[0] = 0.5

	x, err := tensor.FromSlice(1, 1, 4, []float64{1, 4, 9, 16})
	require.NoError(t, err)
	y, err := c.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2.5, -4.5, -6.5}, y.Data)
}

func TestConvShapeErrors(t *testing.T) {
	c, err := WNConv1d(4, 4, 5)
	require.NoError(t, err)

	_, err = c.Forward(tensor.New(1, 3, 10))
	require.ErrorIs(t, err, tensor.ErrShape)

	_, err = c.Forward(tensor.New(1, 4, 4))
	require.ErrorIs(t, err, tensor.ErrShape)

	ct, err := WNConvTranspose1d(4, 2, 4, Stride(2), Padding(1))
	require.NoError(t, err)
	_, err = ct.Forward(tensor.New(2, 2, 10))
	require.ErrorIs(t, err, tensor.ErrShape)
}

func TestConvConfigErrors(t *testing.T) {
	_, err := WNConv1d(6, 4, 3, Groups(4))
	require.ErrorIs(t, err, ErrConfig)

	_, err = NewConv1d(0, 4, 3)
	require.ErrorIs(t, err, ErrConfig)

	_, err = WNConv1d(4, 4, 3, Stride(0))
	require.ErrorIs(t, err, ErrConfig)

	_, err = WNConvTranspose1d(4, 4, 3, Stride(2), OutputPadding(2))
	require.ErrorIs(t, err, ErrConfig)
}

func TestAvgPoolExcludesPadding(t *testing.T) {
	x, err := tensor.FromSlice(1, 1, 6, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	pool := AvgPool1d{Kernel: 4, Stride: 2, Padding: 1}
	y, err := pool.Forward(x)
	require.NoError(t, err)
	require.Equal(t, 3, y.Length)
	assert.InDelta(t, 2.0, y.Data[0], 1e-12) // (1+2+3)/3
	assert.InDelta(t, 3.5, y.Data[1], 1e-12) // (2+3+4+5)/4
	assert.InDelta(t, 5.0, y.Data[2], 1e-12) // (4+5+6)/3
}

func TestSequential(t *testing.T) {
	x, err := tensor.FromSlice(1, 1, 4, []float64{-10, -1, 1, 10})
	require.NoError(t, err)

	y, err := Sequential{LeakyReLU{Slope: 0.2}, ReflectionPad{Size: 1}, Tanh{}}.Forward(x)
	require.NoError(t, err)
	require.Equal(t, 6, y.Length)
	assert.InDelta(t, math.Tanh(-0.2), y.Data[0], 1e-12)
	assert.InDelta(t, math.Tanh(-2), y.Data[1], 1e-12)
	assert.InDelta(t, math.Tanh(1), y.Data[5], 1e-12)
}
