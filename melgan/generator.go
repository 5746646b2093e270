package melgan

import (
	"fmt"

	"github.com/livekit/protocol/logger"

	"github.com/neurlang/gomelgan/nn"
	"github.com/neurlang/gomelgan/tensor"
)

// MinFrames is the shortest spectrogram the Generator accepts.
const MinFrames = 4

// Generator upsamples a mel spectrogram [B, InputSize, F] into a waveform
// [B, 1, F*HopLength] bounded to [-1, 1].
type Generator struct {
	cfg    GeneratorConfig
	model  nn.Sequential
	layers []Named
	log    logger.Logger
}

// NewGenerator builds and initializes a Generator from cfg.
func NewGenerator(cfg GeneratorConfig, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := resolveOptions(opts)

	g := &Generator{cfg: cfg, log: o.log}
	b := &builder{}
	path := func() string { return fmt.Sprintf("model.%d", len(g.model)) }

	mult := 1 << len(cfg.Ratios)
	g.model = append(g.model, nn.ReflectionPad{Size: 3})
	g.model = append(g.model, b.conv(path(), cfg.InputSize, mult*cfg.NGF, 7))

	for _, r := range cfg.Ratios {
		ch := mult * cfg.NGF / 2
		g.model = append(g.model, nn.LeakyReLU{Slope: leakySlope})
		g.model = append(g.model, b.convTranspose(path(), mult*cfg.NGF, ch, 2*r,
			nn.Stride(r), nn.Padding(r/2+r%2), nn.OutputPadding(r%2)))

		dilation := 1
		for j := 0; j < cfg.NResidualLayers; j++ {
			block, err := NewResidualBlock(ch, dilation)
			if err != nil {
				return nil, err
			}
			b.nest(path(), block.Layers())
			g.model = append(g.model, block)
			dilation *= 3
		}
		mult /= 2
	}

	g.model = append(g.model, nn.LeakyReLU{Slope: leakySlope}, nn.ReflectionPad{Size: 3})
	g.model = append(g.model, b.conv(path(), cfg.NGF, 1, 7))
	g.model = append(g.model, nn.Tanh{})
	if b.err != nil {
		return nil, b.err
	}
	g.layers = b.layers

	nn.NewInitializer(cfg.Seed).Apply(g.Layers()...)
	g.log.Debugw("generator built",
		"params", g.NumParams(),
		"hopLength", cfg.HopLength(),
		"ratios", cfg.Ratios,
		"residualLayers", cfg.NResidualLayers,
	)
	return g, nil
}

// Config returns the construction parameters.
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

// HopLength is the number of output samples per input frame.
func (g *Generator) HopLength() int {
	return g.cfg.HopLength()
}

// Forward synthesizes a waveform from a log-mel spectrogram.
func (g *Generator) Forward(mel *tensor.Tensor) (*tensor.Tensor, error) {
	if err := mel.CheckChannels("Generator", g.cfg.InputSize); err != nil {
		return nil, err
	}
	if mel.Length < MinFrames {
		return nil, &tensor.ShapeError{
			Op:       "Generator",
			Expected: []int{tensor.Any, g.cfg.InputSize, MinFrames},
			Actual:   mel.Shape(),
		}
	}
	return g.model.Forward(mel)
}

// Layers returns every parameterized layer in declaration order.
func (g *Generator) Layers() []nn.Layer {
	return plainLayers(g.layers)
}

// Parameters lists every learned tensor under its module path.
func (g *Generator) Parameters() []nn.Param {
	return collectParams(g.layers)
}

// NumParams is the total number of learned scalars.
func (g *Generator) NumParams() int {
	return nn.CountParams(g.Layers()...)
}
