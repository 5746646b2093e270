// Command tomel converts audio files (WAV/FLAC) to log-mel spectrograms.
//
// For every input it writes <audio_file>.png, a grayscale image of the
// spectrogram, and <audio_file>.f16, the same values in half precision for
// towav or a vocoder. Several files are converted in parallel.
//
// Usage:
//
//	tomel [--config file] [--workers n] <audio_file>...
//
// Supported input formats: .wav, .flac
package main
