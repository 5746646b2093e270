package mel

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/neurlang/gomelgan/tensor"
)

func smallMel() *Mel {
	m := NewMel()
	m.NFFT = 64
	m.HopLength = 16
	m.WinLength = 64
	m.SampleRate = 8000
	m.NumMels = 10
	return m
}

func sine(n int, hz, sr float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*hz*float64(i)/sr)
	}
	return out
}

func TestFrameCount(t *testing.T) {
	m := smallMel()
	e, err := NewExtractor(m)
	require.NoError(t, err)

	for _, n := range []int{25, 32, 160, 161, 1000} {
		spec, err := e.ToMel(sine(n, 440, 8000))
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, []int{1, m.NumMels, n / m.HopLength}, spec.Shape(), "n=%d", n)
		assert.Equal(t, n/m.HopLength, m.Frames(n))
	}
}

func TestDefaultFrameCount(t *testing.T) {
	e, err := NewExtractor(NewMel())
	require.NoError(t, err)

	spec, err := e.ToMel(sine(22050, 220, 22050))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 80, 22050 / 256}, spec.Shape())
}

func TestClampFloor(t *testing.T) {
	e, err := NewExtractor(smallMel())
	require.NoError(t, err)

	silence, err := e.ToMel(make([]float64, 128))
	require.NoError(t, err)
	for _, v := range silence.Data {
		assert.Equal(t, LogFloor, v)
	}

	r := rand.New(rand.NewPCG(9, 9))
	noise := make([]float64, 333)
	for i := range noise {
		noise[i] = r.Float64()*2 - 1
	}
	spec, err := e.ToMel(noise)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, spec.Min(), LogFloor)
	assert.False(t, math.IsNaN(spec.Max()) || math.IsInf(spec.Max(), 0))
}

func TestMatchesReferenceSTFT(t *testing.T) {
	m := smallMel()
	m.WinLength = 48
	e, err := NewExtractor(m)
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 1))
	x := tensor.New(2, 1, 200)
	for i := range x.Data {
		x.Data[i] = r.NormFloat64() * 0.3
	}
	got, err := e.Forward(x)
	require.NoError(t, err)

	p := m.Pad()
	fft := fourier.NewFFT(m.NFFT)
	w := e.Window()
	basis := e.Basis()
	frame := make([]float64, m.NFFT)
	for b := 0; b < x.Batch; b++ {
		padded := make([]float64, x.Length+2*p)
		tensor.ReflectInto(padded, x.Row(b, 0), p, p)
		for f := 0; f < got.Length; f++ {
			for j := range frame {
				frame[j] = padded[f*m.HopLength+j] * w[j]
			}
			coeffs := fft.Coefficients(nil, frame)
			for c := 0; c < m.NumMels; c++ {
				var sum float64
				for k, z := range coeffs {
					sum += basis.At(c, k) * cmplx.Abs(z)
				}
				want := math.Log10(math.Max(sum, 1e-5))
				assert.InDelta(t, want, got.At(b, c, f), 1e-9, "item %d mel %d frame %d", b, c, f)
			}
		}
	}
}

func TestToneLandsInItsBand(t *testing.T) {
	m := NewMel()
	m.SampleRate = 16000
	m.NumMels = 40
	e, err := NewExtractor(m)
	require.NoError(t, err)

	spec, err := e.ToMel(sine(8192, 1000, 16000))
	require.NoError(t, err)

	frame := spec.Length / 2
	best, bestVal := 0, math.Inf(-1)
	for c := 0; c < m.NumMels; c++ {
		if v := spec.At(0, c, frame); v > bestVal {
			best, bestVal = c, v
		}
	}
	row := e.Basis().RawRowView(best)
	bin := int(math.Round(1000 * float64(m.NFFT) / 16000))
	assert.Greater(t, row[bin], 0.0, "channel %d does not cover 1 kHz", best)
}

func TestInputErrors(t *testing.T) {
	e, err := NewExtractor(smallMel())
	require.NoError(t, err)

	_, err = e.ToMel(make([]float64, 15))
	require.ErrorIs(t, err, ErrTooShort)

	_, err = e.Forward(tensor.New(1, 2, 256))
	require.ErrorIs(t, err, tensor.ErrShape)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Mel){
		"zero hop":        func(m *Mel) { m.HopLength = 0 },
		"long window":     func(m *Mel) { m.WinLength = m.NFFT + 1 },
		"hop beyond fft":  func(m *Mel) { m.HopLength = m.NFFT * 2 },
		"fmax > nyquist":  func(m *Mel) { m.MelFmax = 20000 },
		"inverted range":  func(m *Mel) { m.MelFmin, m.MelFmax = 4000, 2000 },
		"negative fmin":   func(m *Mel) { m.MelFmin = -1 },
		"no mel channels": func(m *Mel) { m.NumMels = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			m := NewMel()
			mutate(m)
			_, err := NewExtractor(m)
			require.ErrorIs(t, err, ErrConfig)
		})
	}
	require.NoError(t, NewMel().Validate())
}

func TestAnalysisWindow(t *testing.T) {
	w := analysisWindow(8, 8)
	assert.Equal(t, 0.0, w[0])
	assert.InDelta(t, 1.0, w[4], 1e-12)
	assert.InDelta(t, w[1], w[7], 1e-12)

	centered := analysisWindow(8, 4)
	assert.Equal(t, []float64{0, 0, 0}, centered[:3])
	assert.InDelta(t, 1.0, centered[4], 1e-12)
	assert.Equal(t, []float64{0, 0}, centered[6:])
}

func TestGriffinLimShapes(t *testing.T) {
	m := smallMel()
	e, err := NewExtractor(m)
	require.NoError(t, err)

	spec, err := e.ToMel(sine(480, 700, 8000))
	require.NoError(t, err)

	wave, err := e.Invert(spec, 4)
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, spec.Length * m.HopLength}, wave.Shape())
	for _, v := range wave.Data {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.Greater(t, floats.Norm(wave.Data, math.Inf(1)), 0.0)

	_, err = e.Invert(tensor.New(1, 3, 5), 1)
	require.ErrorIs(t, err, tensor.ErrShape)
}

func TestPseudoInverseRecoversMelEnergies(t *testing.T) {
	e, err := NewExtractor(smallMel())
	require.NoError(t, err)

	pinv, err := e.pseudoInverse()
	require.NoError(t, err)
	rows, cols := pinv.Dims()
	assert.Equal(t, 33, rows)
	assert.Equal(t, 10, cols)

	mels, _ := e.Basis().Dims()
	for m := 0; m < mels; m++ {
		energies := make([]float64, mels)
		energies[m] = 1
		var sum float64
		for k := 0; k < rows; k++ {
			var mag float64
			for j := range energies {
				mag += pinv.At(k, j) * energies[j]
			}
			sum += e.Basis().At(m, k) * mag
		}
		assert.InDelta(t, 1.0, sum, 1e-6, "mel %d", m)
	}
}
