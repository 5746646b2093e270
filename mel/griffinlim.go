package mel

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/mat"

	"github.com/neurlang/gomelgan/tensor"
)

// Invert reconstructs waveforms [B, 1, frames*HopLength] from log-mel
// spectrograms [B, NumMels, frames]. Mel energies are mapped back to linear
// magnitudes with the filterbank pseudo-inverse, then phases are estimated
// with the given number of Griffin-Lim rounds.
func (e *Extractor) Invert(spec *tensor.Tensor, iterations int) (*tensor.Tensor, error) {
	if err := spec.CheckChannels("mel.Invert", e.cfg.NumMels); err != nil {
		return nil, err
	}
	pinv, err := e.pseudoInverse()
	if err != nil {
		return nil, err
	}

	frames := spec.Length
	bins := e.cfg.NFFT/2 + 1
	p := e.cfg.Pad()
	out := tensor.New(spec.Batch, 1, frames*e.cfg.HopLength)

	linear := mat.NewDense(e.cfg.NumMels, frames, nil)
	magnitude := mat.NewDense(bins, frames, nil)
	for b := 0; b < spec.Batch; b++ {
		linear.Copy(spec.Item(b))
		spectralDenormalize(linear.RawMatrix().Data)
		magnitude.Mul(pinv, linear)

		spectrogram := make([][]complex128, frames)
		for f := range spectrogram {
			spectrogram[f] = make([]complex128, e.cfg.NFFT)
			for k := 0; k < bins; k++ {
				spectrogram[f][k] = complex(math.Max(magnitude.At(k, f), 0), 0)
			}
		}

		signal := e.griffinLim(spectrogram, iterations)
		copy(out.Row(b, 0), signal[p:p+out.Length])
	}
	return out, nil
}

// pseudoInverse returns the [bins, NumMels] Moore-Penrose inverse of the
// filterbank, truncating singular values below the usual tolerance.
func (e *Extractor) pseudoInverse() (*mat.Dense, error) {
	e.pinvOnce.Do(func() {
		var svd mat.SVD
		if !svd.Factorize(e.basis, mat.SVDThin) {
			e.pinvErr = fmt.Errorf("mel: filterbank factorization failed")
			return
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		values := svd.Values(nil)

		rows, cols := e.basis.Dims()
		tol := values[0] * float64(max(rows, cols)) * 2.220446049250313e-16
		vr, _ := v.Dims()
		for j, s := range values {
			inv := 0.0
			if s > tol {
				inv = 1 / s
			}
			for i := 0; i < vr; i++ {
				v.Set(i, j, v.At(i, j)*inv)
			}
		}

		e.pinv = mat.NewDense(cols, rows, nil)
		e.pinv.Mul(&v, u.T())
	})
	return e.pinv, e.pinvErr
}

// griffinLim alternates between enforcing the given magnitudes and
// re-estimating phases from the overlap-added signal. Only the first
// NFFT/2+1 bins of every frame are read; the rest are rebuilt by symmetry.
func (e *Extractor) griffinLim(spectrogram [][]complex128, iterations int) []float64 {
	bins := e.cfg.NFFT/2 + 1
	target := make([][]float64, len(spectrogram))
	for f, column := range spectrogram {
		target[f] = make([]float64, bins)
		for k := range target[f] {
			target[f][k] = cmplx.Abs(column[k])
		}
	}

	signal := e.istft(spectrogram)
	frame := make([]float64, e.cfg.NFFT)
	for iter := 0; iter < iterations; iter++ {
		for f := range spectrogram {
			start := f * e.cfg.HopLength
			for j := range frame {
				frame[j] = signal[start+j] * e.window[j]
			}
			estimate := fft.FFTReal(frame)
			for k := 0; k < bins; k++ {
				spectrogram[f][k] = cmplx.Rect(target[f][k], cmplx.Phase(estimate[k]))
			}
		}
		signal = e.istft(spectrogram)
	}
	return signal
}

// istft overlap-adds windowed inverse transforms and divides by the summed
// squared window.
func (e *Extractor) istft(spectrogram [][]complex128) []float64 {
	n := e.cfg.NFFT
	length := n + (len(spectrogram)-1)*e.cfg.HopLength
	signal := make([]float64, length)
	windowSum := make([]float64, length)

	for f, column := range spectrogram {
		for k := 1; k < n-k; k++ {
			column[n-k] = cmplx.Conj(column[k])
		}
		buf := fft.IFFT(column)
		start := f * e.cfg.HopLength
		for j := 0; j < n; j++ {
			signal[start+j] += real(buf[j]) * e.window[j]
			windowSum[start+j] += e.window[j] * e.window[j]
		}
	}

	for i := range signal {
		if windowSum[i] > 1e-11 {
			signal[i] /= windowSum[i]
		}
	}
	return signal
}
