// Package melgan defines the generator and multi-scale discriminator networks
// of a MelGAN-style vocoder.
//
// The Generator upsamples a log-mel spectrogram by the product of its ratios
// into a single-channel waveform bounded to [-1, 1]. The Discriminator is an
// ensemble of NLayerDiscriminators, each a strided convolution stack with a
// feature-pyramid top-down path, returning per-level feature maps followed by
// a score map.
//
// Networks are built from a config, then initialized by an explicit pass over
// their declared layers. Their parameters can be enumerated by name with
// Parameters for an external optimizer or checkpointer.
package melgan
