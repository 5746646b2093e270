package melgan

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by invalid network hyperparameters.
var ErrConfig = errors.New("melgan: invalid configuration")

const maxChannels = 1024

// GeneratorConfig holds the Generator construction parameters.
type GeneratorConfig struct {
	// InputSize is the number of mel channels of the input spectrogram.
	InputSize       int   `mapstructure:"input_size"`
	NGF             int   `mapstructure:"ngf"`
	NResidualLayers int   `mapstructure:"n_residual_layers"`
	Ratios          []int `mapstructure:"ratios"`
	// Seed drives the weight initialization.
	Seed uint64 `mapstructure:"seed"`
}

// DefaultGeneratorConfig returns the 80-band, 256x upsampling generator.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		InputSize:       80,
		NGF:             32,
		NResidualLayers: 3,
		Ratios:          []int{8, 8, 2, 2},
	}
}

// Validate reports the first invalid parameter.
func (c GeneratorConfig) Validate() error {
	if c.InputSize <= 0 || c.NGF <= 0 || c.NResidualLayers < 0 {
		return fmt.Errorf("%w: input_size %d, ngf %d, n_residual_layers %d",
			ErrConfig, c.InputSize, c.NGF, c.NResidualLayers)
	}
	if len(c.Ratios) == 0 {
		return fmt.Errorf("%w: no upsampling ratios", ErrConfig)
	}
	for _, r := range c.Ratios {
		if r < 2 {
			return fmt.Errorf("%w: upsampling ratio %d is below 2", ErrConfig, r)
		}
	}
	return nil
}

// HopLength is the product of the upsampling ratios.
func (c GeneratorConfig) HopLength() int {
	hop := 1
	for _, r := range c.Ratios {
		hop *= r
	}
	return hop
}

// DiscriminatorConfig holds the Discriminator construction parameters.
type DiscriminatorConfig struct {
	NumD               int `mapstructure:"num_d"`
	NDF                int `mapstructure:"ndf"`
	NLayers            int `mapstructure:"n_layers"`
	DownsamplingFactor int `mapstructure:"downsampling_factor"`
	// Downsample feeds every ensemble member a 2x average-pooled copy of the
	// previous member's input. Off, all members see the same resolution.
	Downsample bool   `mapstructure:"downsample"`
	Seed       uint64 `mapstructure:"seed"`
}

// DefaultDiscriminatorConfig returns three 4-layer members with stride 4.
func DefaultDiscriminatorConfig() DiscriminatorConfig {
	return DiscriminatorConfig{
		NumD:               3,
		NDF:                16,
		NLayers:            4,
		DownsamplingFactor: 4,
	}
}

// Validate reports the first invalid parameter, including channel counts
// that the grouped convolutions cannot split.
func (c DiscriminatorConfig) Validate() error {
	if c.NumD <= 0 || c.NLayers <= 0 || c.DownsamplingFactor <= 0 {
		return fmt.Errorf("%w: num_D %d, n_layers %d, downsampling_factor %d",
			ErrConfig, c.NumD, c.NLayers, c.DownsamplingFactor)
	}
	if c.NDF <= 0 || c.NDF%4 != 0 || c.NDF > maxChannels {
		return fmt.Errorf("%w: ndf %d must be a positive multiple of 4 up to %d", ErrConfig, c.NDF, maxChannels)
	}
	ch := c.channels()
	for n := 1; n <= c.NLayers; n++ {
		if groups := ch[n-1] / 4; ch[n]%groups != 0 {
			return fmt.Errorf("%w: layer %d maps %d to %d channels, not divisible into %d groups",
				ErrConfig, n, ch[n-1], ch[n], groups)
		}
	}
	return nil
}

// channels is the channel count of every bottom-up level, 0..NLayers+1.
func (c DiscriminatorConfig) channels() []int {
	ch := make([]int, c.NLayers+2)
	ch[0] = c.NDF
	for n := 1; n <= c.NLayers; n++ {
		ch[n] = min(ch[n-1]*c.DownsamplingFactor, maxChannels)
	}
	ch[c.NLayers+1] = min(ch[c.NLayers]*2, maxChannels)
	return ch
}
