package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense row-major array of shape [Batch, Channels, Length].
type Tensor struct {
	Batch    int
	Channels int
	Length   int

	// Data holds Batch*Channels*Length values, time varying fastest.
	Data []float64
}

// New allocates a zero tensor.
func New(batch, channels, length int) *Tensor {
	if batch < 0 || channels < 0 || length < 0 {
		panic("tensor: negative dimension")
	}
	return &Tensor{
		Batch:    batch,
		Channels: channels,
		Length:   length,
		Data:     make([]float64, batch*channels*length),
	}
}

// FromSlice wraps data without copying.
func FromSlice(batch, channels, length int, data []float64) (*Tensor, error) {
	if batch < 0 || channels < 0 || length < 0 || len(data) != batch*channels*length {
		return nil, &ShapeError{
			Op:       "FromSlice",
			Expected: []int{batch, channels, length},
			Actual:   []int{len(data)},
		}
	}
	return &Tensor{Batch: batch, Channels: channels, Length: length, Data: data}, nil
}

// FromWaveforms builds a [len(w), 1, T] tensor from equally long waveforms.
func FromWaveforms(w [][]float64) (*Tensor, error) {
	if len(w) == 0 {
		return New(0, 1, 0), nil
	}
	t := New(len(w), 1, len(w[0]))
	for b, samples := range w {
		if len(samples) != t.Length {
			return nil, &ShapeError{
				Op:       "FromWaveforms",
				Expected: []int{len(w), 1, t.Length},
				Actual:   []int{b, 1, len(samples)},
			}
		}
		copy(t.Row(b, 0), samples)
	}
	return t, nil
}

// Shape returns [Batch, Channels, Length].
func (t *Tensor) Shape() []int {
	return []int{t.Batch, t.Channels, t.Length}
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.Batch == o.Batch && t.Channels == o.Channels && t.Length == o.Length
}

func (t *Tensor) index(b, c, i int) int {
	return (b*t.Channels+c)*t.Length + i
}

// At returns the element at batch b, channel c, time i.
func (t *Tensor) At(b, c, i int) float64 {
	return t.Data[t.index(b, c, i)]
}

// Set stores v at batch b, channel c, time i.
func (t *Tensor) Set(b, c, i int, v float64) {
	t.Data[t.index(b, c, i)] = v
}

// Row is the time series of one channel. It aliases the tensor storage.
func (t *Tensor) Row(b, c int) []float64 {
	start := t.index(b, c, 0)
	return t.Data[start : start+t.Length : start+t.Length]
}

// Item is a Channels x Length matrix view of batch item b.
// Writes through the view modify the tensor.
func (t *Tensor) Item(b int) *mat.Dense {
	start := b * t.Channels * t.Length
	return mat.NewDense(t.Channels, t.Length, t.Data[start:start+t.Channels*t.Length])
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := New(t.Batch, t.Channels, t.Length)
	copy(out.Data, t.Data)
	return out
}

// CheckChannels returns a *ShapeError unless t has the given channel count
// and a non-empty time axis.
func (t *Tensor) CheckChannels(op string, channels int) error {
	if t.Channels != channels || t.Length == 0 {
		return &ShapeError{Op: op, Expected: []int{t.Batch, channels, Any}, Actual: t.Shape()}
	}
	return nil
}

// LeakyReLU returns max(x, slope*x) element-wise.
func (t *Tensor) LeakyReLU(slope float64) *Tensor {
	out := New(t.Batch, t.Channels, t.Length)
	for i, v := range t.Data {
		if v < 0 {
			v *= slope
		}
		out.Data[i] = v
	}
	return out
}

// Tanh returns tanh(x) element-wise.
func (t *Tensor) Tanh() *Tensor {
	out := New(t.Batch, t.Channels, t.Length)
	for i, v := range t.Data {
		out.Data[i] = math.Tanh(v)
	}
	return out
}

// Add returns t + o. Shapes must match exactly.
func (t *Tensor) Add(o *Tensor) (*Tensor, error) {
	if !t.SameShape(o) {
		return nil, &ShapeError{Op: "Add", Expected: t.Shape(), Actual: o.Shape()}
	}
	out := t.Clone()
	floats.Add(out.Data, o.Data)
	return out, nil
}

// ReflectionPad mirrors each row around its end samples, excluding the edge
// sample itself. Both pads must be smaller than Length.
func (t *Tensor) ReflectionPad(left, right int) (*Tensor, error) {
	if left < 0 || right < 0 || left >= t.Length || right >= t.Length {
		return nil, &ShapeError{
			Op:       "ReflectionPad",
			Expected: []int{t.Batch, t.Channels, max(left, right) + 1},
			Actual:   t.Shape(),
		}
	}
	out := New(t.Batch, t.Channels, t.Length+left+right)
	for b := 0; b < t.Batch; b++ {
		for c := 0; c < t.Channels; c++ {
			ReflectInto(out.Row(b, c), t.Row(b, c), left, right)
		}
	}
	return out, nil
}

// ReflectInto writes src reflection padded by left and right into dst, which
// must have length len(src)+left+right.
func ReflectInto(dst, src []float64, left, right int) {
	n := len(src)
	for i := 0; i < left; i++ {
		dst[i] = src[left-i]
	}
	copy(dst[left:], src)
	for i := 0; i < right; i++ {
		dst[left+n+i] = src[n-2-i]
	}
}

// Narrow keeps length samples of every row starting at start.
func (t *Tensor) Narrow(start, length int) (*Tensor, error) {
	if start < 0 || length < 0 || start+length > t.Length {
		return nil, &ShapeError{
			Op:       "Narrow",
			Expected: []int{t.Batch, t.Channels, start + length},
			Actual:   t.Shape(),
		}
	}
	if start == 0 && length == t.Length {
		return t, nil
	}
	out := New(t.Batch, t.Channels, length)
	for b := 0; b < t.Batch; b++ {
		for c := 0; c < t.Channels; c++ {
			copy(out.Row(b, c), t.Row(b, c)[start:start+length])
		}
	}
	return out, nil
}

// Min returns the smallest element. It panics on an empty tensor.
func (t *Tensor) Min() float64 {
	return floats.Min(t.Data)
}

// Max returns the largest element. It panics on an empty tensor.
func (t *Tensor) Max() float64 {
	return floats.Max(t.Data)
}

// Waveforms copies channel 0 of every batch item.
func (t *Tensor) Waveforms() [][]float64 {
	out := make([][]float64, t.Batch)
	for b := range out {
		out[b] = append([]float64(nil), t.Row(b, 0)...)
	}
	return out
}
