// Command towav converts half-precision mel spectrograms (.f16) back to audio files (WAV).
//
// Since mel spectrograms don't preserve phase information, the waveform is
// estimated with the Griffin-Lim algorithm from the pseudo-inverse of the mel
// filter bank. The audio settings must match the ones the spectrogram was
// computed with.
//
// Usage:
//
//	towav [--config file] [--iterations n] <f16_file>
//
// The output WAV file will be named <f16_file>.wav
package main
