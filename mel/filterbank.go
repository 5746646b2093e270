package mel

import (
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/mat"
)

const (
	// Slaney scale: linear below 1 kHz, logarithmic above.
	slaneyFSp       = 200.0 / 3
	slaneyMinLogHz  = 1000.0
	slaneyMinLogMel = slaneyMinLogHz / slaneyFSp

	// HTK scale.
	melBreakFrequencyHertz = 700.0
	melHighFrequencyQ      = 1127.0
)

var slaneyLogStep = math.Log(6.4) / 27

func hzToMel(hz float64, htk bool) float64 {
	if htk {
		return melHighFrequencyQ * math.Log(1.0+hz/melBreakFrequencyHertz)
	}
	if hz < slaneyMinLogHz {
		return hz / slaneyFSp
	}
	return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
}

func melToHz(mel float64, htk bool) float64 {
	if htk {
		return melBreakFrequencyHertz * (math.Exp(mel/melHighFrequencyQ) - 1.0)
	}
	if mel < slaneyMinLogMel {
		return mel * slaneyFSp
	}
	return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
}

// FilterBank builds the [numMels, nFFT/2+1] matrix of triangular mel filters
// spanning fmin..fmax, each scaled to unit area in Hz (Slaney normalization).
// fmax <= 0 selects the Nyquist frequency.
func FilterBank(sampleRate, nFFT, numMels int, fmin, fmax float64, htk bool) *mat.Dense {
	if fmax <= 0 {
		fmax = float64(sampleRate) / 2
	}
	bins := nFFT/2 + 1

	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	lo, hi := hzToMel(fmin, htk), hzToMel(fmax, htk)
	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(lo+(hi-lo)*float64(i)/float64(numMels+1), htk)
	}

	basis := mat.NewDense(numMels, bins, nil)
	for m := 0; m < numMels; m++ {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		enorm := 2.0 / (right - left)
		row := basis.RawRowView(m)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			if w := math.Min(lower, upper); w > 0 {
				row[k] = w * enorm
			}
		}
	}
	return basis
}

// analysisWindow is a periodic Hann window of winLength samples centered in
// a zero buffer of nFFT samples.
func analysisWindow(nFFT, winLength int) []float64 {
	hann := window.Hann(winLength + 1)[:winLength]
	out := make([]float64, nFFT)
	copy(out[(nFFT-winLength)/2:], hann)
	return out
}
