// Command vocode runs an audio file through the MelGAN networks.
//
// It computes the log-mel spectrogram of the input, synthesizes a waveform
// with a freshly initialized generator, and scores both the real and the
// generated audio with the multi-scale discriminator. Network sizes and the
// initialization seed come from the config file, GOMELGAN_* environment
// variables or flags.
//
// Usage:
//
//	vocode [--config file] [--seed n] [--downsample] <audio_file>
//
// The generated audio is written to <audio_file>.gen.wav, replacing a .wav or
// .flac extension.
package main
