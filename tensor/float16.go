package tensor

import "github.com/x448/float16"

// Float16Bits converts the tensor to IEEE 754 half precision bit patterns.
func (t *Tensor) Float16Bits() []uint16 {
	out := make([]uint16, len(t.Data))
	for i, v := range t.Data {
		out[i] = float16.Fromfloat32(float32(v)).Bits()
	}
	return out
}

// FromFloat16Bits is the inverse of Float16Bits.
func FromFloat16Bits(batch, channels, length int, bits []uint16) (*Tensor, error) {
	if len(bits) != batch*channels*length {
		return nil, &ShapeError{
			Op:       "FromFloat16Bits",
			Expected: []int{batch, channels, length},
			Actual:   []int{len(bits)},
		}
	}
	t := New(batch, channels, length)
	for i, b := range bits {
		t.Data[i] = float64(float16.Frombits(b).Float32())
	}
	return t, nil
}
