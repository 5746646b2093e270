package melgan

import (
	"github.com/livekit/protocol/logger"

	"github.com/neurlang/gomelgan/nn"
)

const leakySlope = 0.2

// Named is a parameterized layer with its path inside a network.
type Named struct {
	Name  string
	Layer nn.Layer
}

func collectParams(layers []Named) []nn.Param {
	var out []nn.Param
	for _, l := range layers {
		out = append(out, l.Layer.Params(l.Name+".")...)
	}
	return out
}

func plainLayers(layers []Named) []nn.Layer {
	out := make([]nn.Layer, len(layers))
	for i, l := range layers {
		out[i] = l.Layer
	}
	return out
}

// builder constructs weight-normalized layers, keeping the first error and
// recording every layer it creates under its name.
type builder struct {
	prefix string
	layers []Named
	err    error
}

func (b *builder) conv(name string, in, out, kernel int, opts ...nn.Option) *nn.Conv1d {
	if b.err != nil {
		return nil
	}
	c, err := nn.WNConv1d(in, out, kernel, opts...)
	if err != nil {
		b.err = err
		return nil
	}
	b.layers = append(b.layers, Named{Name: b.prefix + name, Layer: c})
	return c
}

func (b *builder) convTranspose(name string, in, out, kernel int, opts ...nn.Option) *nn.ConvTranspose1d {
	if b.err != nil {
		return nil
	}
	c, err := nn.WNConvTranspose1d(in, out, kernel, opts...)
	if err != nil {
		b.err = err
		return nil
	}
	b.layers = append(b.layers, Named{Name: b.prefix + name, Layer: c})
	return c
}

// nest records the layers of a submodule under prefix.
func (b *builder) nest(prefix string, layers []Named) {
	for _, l := range layers {
		b.layers = append(b.layers, Named{Name: prefix + "." + l.Name, Layer: l.Layer})
	}
}

type options struct {
	log logger.Logger
}

// Option configures network construction.
type Option func(*options)

// WithLogger sets the logger construction details are reported to.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

func resolveOptions(opts []Option) options {
	o := options{log: logger.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
