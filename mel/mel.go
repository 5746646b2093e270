package mel

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/r9y9/gossp/stft"
	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/gomelgan/tensor"
)

// Mel represents the configuration of the mel spectrogram front end.
type Mel struct {
	NFFT       int `mapstructure:"n_fft"`
	HopLength  int `mapstructure:"hop_length"`
	WinLength  int `mapstructure:"win_length"`
	SampleRate int `mapstructure:"sampling_rate"`
	NumMels    int `mapstructure:"n_mel_channels"`

	MelFmin float64 `mapstructure:"mel_fmin"`
	// MelFmax <= 0 means the Nyquist frequency.
	MelFmax float64 `mapstructure:"mel_fmax"`
	// HTK selects the HTK mel scale instead of Slaney's.
	HTK bool `mapstructure:"htk"`

	// YReverse puts low frequencies at the bottom of dumped images.
	YReverse bool `mapstructure:"y_reverse"`

	GriffinLimIterations int `mapstructure:"griffin_lim_iterations"`
}

// NewMel creates a new Mel instance with default values.
func NewMel() *Mel {
	return &Mel{
		NFFT:       1024,
		HopLength:  256,
		WinLength:  1024,
		SampleRate: 22050,
		NumMels:    80,
		MelFmin:    0,
		MelFmax:    0,
		YReverse:   true,

		GriffinLimIterations: 32,
	}
}

var (
	ErrFileNotLoaded = errors.New("wavNotLoaded")
	ErrConfig        = errors.New("mel: invalid configuration")
	ErrTooShort      = errors.New("mel: waveform too short")
)

// Validate reports the first inconsistent parameter.
func (m *Mel) Validate() error {
	switch {
	case m.NFFT <= 0 || m.HopLength <= 0 || m.SampleRate <= 0 || m.NumMels <= 0:
		return fmt.Errorf("%w: n_fft %d, hop_length %d, sampling_rate %d, n_mel_channels %d must be positive",
			ErrConfig, m.NFFT, m.HopLength, m.SampleRate, m.NumMels)
	case m.WinLength <= 0 || m.WinLength > m.NFFT:
		return fmt.Errorf("%w: win_length %d must be in 1..%d", ErrConfig, m.WinLength, m.NFFT)
	case m.HopLength > m.NFFT:
		return fmt.Errorf("%w: hop_length %d exceeds n_fft %d", ErrConfig, m.HopLength, m.NFFT)
	case m.MelFmin < 0 || m.fmax() > float64(m.SampleRate)/2 || m.MelFmin >= m.fmax():
		return fmt.Errorf("%w: mel range %g..%g Hz invalid for sampling rate %d",
			ErrConfig, m.MelFmin, m.fmax(), m.SampleRate)
	}
	return nil
}

func (m *Mel) fmax() float64 {
	if m.MelFmax <= 0 {
		return float64(m.SampleRate) / 2
	}
	return m.MelFmax
}

// Pad is the reflection padding applied to each side of a waveform.
func (m *Mel) Pad() int {
	return (m.NFFT - m.HopLength) / 2
}

// Frames is the number of spectrogram frames for a waveform of n samples.
func (m *Mel) Frames(n int) int {
	return 1 + (n+2*m.Pad()-m.NFFT)/m.HopLength
}

// MinSamples is the shortest waveform the extractor accepts.
func (m *Mel) MinSamples() int {
	return max(m.HopLength, m.Pad()+1, m.NFFT-2*m.Pad())
}

// Extractor computes log10 mel spectrograms. Its filterbank and window are
// fixed at construction; it is safe for concurrent use.
type Extractor struct {
	cfg    Mel
	basis  *mat.Dense
	window []float64
	stft   *stft.STFT

	pinvOnce sync.Once
	pinv     *mat.Dense
	pinvErr  error
}

// NewExtractor validates m and precomputes the filterbank and window.
func NewExtractor(m *Mel) (*Extractor, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s := stft.New(m.HopLength, m.NFFT)
	s.Window = analysisWindow(m.NFFT, m.WinLength)
	return &Extractor{
		cfg:    *m,
		basis:  FilterBank(m.SampleRate, m.NFFT, m.NumMels, m.MelFmin, m.MelFmax, m.HTK),
		window: s.Window,
		stft:   s,
	}, nil
}

// Config returns a copy of the extractor configuration.
func (e *Extractor) Config() Mel {
	return e.cfg
}

// Basis returns the [NumMels, NFFT/2+1] filterbank. It must not be modified.
func (e *Extractor) Basis() *mat.Dense {
	return e.basis
}

// Window returns the NFFT-long analysis window. It must not be modified.
func (e *Extractor) Window() []float64 {
	return e.window
}

// Forward maps waveforms [B, 1, T] to log-mel spectrograms [B, NumMels, Frames(T)].
func (e *Extractor) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Channels != 1 {
		return nil, &tensor.ShapeError{Op: "mel.Forward", Expected: []int{x.Batch, 1, tensor.Any}, Actual: x.Shape()}
	}
	if x.Length < e.cfg.MinSamples() {
		return nil, fmt.Errorf("%w: %d samples, need at least %d", ErrTooShort, x.Length, e.cfg.MinSamples())
	}

	p := e.cfg.Pad()
	frames := e.cfg.Frames(x.Length)
	bins := e.cfg.NFFT/2 + 1
	out := tensor.New(x.Batch, e.cfg.NumMels, frames)
	padded := make([]float64, x.Length+2*p)
	magnitude := mat.NewDense(bins, frames, nil)

	for b := 0; b < x.Batch; b++ {
		tensor.ReflectInto(padded, x.Row(b, 0), p, p)

		spectrum := e.stft.STFT(padded)
		if len(spectrum) < frames {
			return nil, fmt.Errorf("mel: stft produced %d frames, want %d", len(spectrum), frames)
		}
		for f, column := range spectrum[:frames] {
			for k := 0; k < bins; k++ {
				magnitude.Set(k, f, cmplx.Abs(column[k]))
			}
		}

		dst := out.Item(b)
		dst.Mul(e.basis, magnitude)
	}

	spectralNormalize(out.Data)
	return out, nil
}

// ToMel generates a mel spectrogram [1, NumMels, frames] from a single wave buffer.
func (e *Extractor) ToMel(buf []float64) (*tensor.Tensor, error) {
	x, err := tensor.FromWaveforms([][]float64{buf})
	if err != nil {
		return nil, err
	}
	return e.Forward(x)
}

// FromMel reconstructs waveforms [B, 1, frames*HopLength] from log-mel
// spectrograms using GriffinLimIterations phase estimation rounds.
func (e *Extractor) FromMel(spec *tensor.Tensor) (*tensor.Tensor, error) {
	return e.Invert(spec, e.cfg.GriffinLimIterations)
}

const magnitudeFloor = 1e-5

// LogFloor is the smallest value a spectrogram can contain.
var LogFloor = math.Log10(magnitudeFloor)

func spectralNormalize(buf []float64) {
	for i, v := range buf {
		if v < magnitudeFloor {
			v = magnitudeFloor
		}
		buf[i] = math.Log10(v)
	}
}

func spectralDenormalize(buf []float64) {
	for i, v := range buf {
		buf[i] = math.Pow(10, v)
	}
}
