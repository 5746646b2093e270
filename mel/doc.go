// Package mel provides the log-mel spectrogram front end of the vocoder.
//
// The Extractor turns raw waveforms into log10 mel spectrograms the way the
// generator expects its input and the way adversarial losses compare real and
// generated audio. It supports:
//   - Reflection padding and center=false STFT framing with a periodic Hann window
//   - A fixed Slaney (librosa default) or HTK mel filterbank, area normalized
//   - Magnitude clamping at 1e-5 before the logarithm, so output is always finite
//   - Griffin-Lim reconstruction of a waveform from a log-mel spectrogram
//   - WAV/FLAC loading, WAV saving, PNG and float16 spectrogram dumps
package mel
