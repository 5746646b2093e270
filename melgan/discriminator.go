package melgan

import (
	"fmt"

	"github.com/livekit/protocol/logger"
	"golang.org/x/sync/errgroup"

	"github.com/neurlang/gomelgan/nn"
	"github.com/neurlang/gomelgan/tensor"
)

// NLayerDiscriminator maps a waveform [B, 1, T] to feature-pyramid outputs.
//
// The bottom-up stack produces levels 0..NLayers+1 with channels C[k]. The
// top-down path starts at the deepest level and merges each upsampled map
// with a 1x1 lateral projection of the bottom-up map at the same level:
//
//	M[n+1] = lateral[n+1](B[n+1])
//	M[k]   = crop(up[k](M[k+1]), len(B[k])) + lateral[k](B[k])
//
// Forward returns M[n+1], M[n], ..., M[0] followed by a single-channel score
// map computed from M[0], which has the length of the input waveform.
type NLayerDiscriminator struct {
	channels []int
	bottomUp []nn.Sequential
	laterals []*nn.Conv1d
	// upsample[k] maps level k+1 to the resolution and channels of level k.
	upsample []*nn.ConvTranspose1d
	score    *nn.Conv1d
	layers   []Named
}

// NewNLayerDiscriminator builds one ensemble member with weights drawn from
// the initializer seeded with seed.
func NewNLayerDiscriminator(ndf, nLayers, downsamplingFactor int, seed uint64) (*NLayerDiscriminator, error) {
	cfg := DiscriminatorConfig{NumD: 1, NDF: ndf, NLayers: nLayers, DownsamplingFactor: downsamplingFactor}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := downsamplingFactor
	ch := cfg.channels()
	top := len(ch) - 1
	d := &NLayerDiscriminator{
		channels: ch,
		bottomUp: make([]nn.Sequential, len(ch)),
		laterals: make([]*nn.Conv1d, len(ch)),
		upsample: make([]*nn.ConvTranspose1d, top),
	}
	b := &builder{}
	leaky := nn.LeakyReLU{Slope: leakySlope}

	d.bottomUp[0] = nn.Sequential{
		nn.ReflectionPad{Size: 7},
		b.conv("layer_0", 1, ch[0], 15),
		leaky,
	}
	for n := 1; n < top; n++ {
		d.bottomUp[n] = nn.Sequential{
			b.conv(fmt.Sprintf("layer_%d", n), ch[n-1], ch[n], 10*s+1,
				nn.Stride(s), nn.Padding(5*s), nn.Groups(ch[n-1]/4)),
			leaky,
		}
	}
	d.bottomUp[top] = nn.Sequential{
		b.conv(fmt.Sprintf("layer_%d", top), ch[top-1], ch[top], 5, nn.Padding(2)),
		leaky,
	}

	for k := top - 1; k >= 0; k-- {
		name := fmt.Sprintf("up_%d", k)
		if k+1 == top {
			d.upsample[k] = b.convTranspose(name, ch[k+1], ch[k], 5, nn.Padding(2))
		} else {
			d.upsample[k] = b.convTranspose(name, ch[k+1], ch[k], 10*s+1,
				nn.Stride(s), nn.Padding(5*s), nn.OutputPadding(s-1), nn.Groups(ch[k]/4))
		}
	}
	for k := top; k >= 0; k-- {
		d.laterals[k] = b.conv(fmt.Sprintf("lateral_%d", k), ch[k], ch[k], 1)
	}
	d.score = b.conv("score", ch[0], 1, 3, nn.Padding(1))
	if b.err != nil {
		return nil, b.err
	}
	d.layers = b.layers
	nn.NewInitializer(seed).Apply(plainLayers(d.layers)...)
	return d, nil
}

// Levels is the number of feature maps before the score map.
func (d *NLayerDiscriminator) Levels() int {
	return len(d.channels)
}

// Channels returns the channel count of each level, deepest last.
func (d *NLayerDiscriminator) Channels() []int {
	return append([]int(nil), d.channels...)
}

func (d *NLayerDiscriminator) Forward(x *tensor.Tensor) ([]*tensor.Tensor, error) {
	if err := x.CheckChannels("NLayerDiscriminator", 1); err != nil {
		return nil, err
	}
	levels := make([]*tensor.Tensor, len(d.bottomUp))
	h := x
	for k, layer := range d.bottomUp {
		var err error
		if h, err = layer.Forward(h); err != nil {
			return nil, fmt.Errorf("bottom-up level %d: %w", k, err)
		}
		levels[k] = h
	}

	top := len(levels) - 1
	merged, err := d.laterals[top].Forward(levels[top])
	if err != nil {
		return nil, err
	}
	out := make([]*tensor.Tensor, 0, len(levels)+1)
	out = append(out, merged)
	for k := top - 1; k >= 0; k-- {
		if merged, err = d.merge(k, merged, levels[k]); err != nil {
			return nil, fmt.Errorf("top-down level %d: %w", k, err)
		}
		out = append(out, merged)
	}

	score, err := d.score.Forward(merged)
	if err != nil {
		return nil, err
	}
	return append(out, score), nil
}

func (d *NLayerDiscriminator) merge(k int, deeper, lateral *tensor.Tensor) (*tensor.Tensor, error) {
	up, err := d.upsample[k].Forward(deeper)
	if err != nil {
		return nil, err
	}
	if up, err = up.Narrow(0, lateral.Length); err != nil {
		return nil, err
	}
	proj, err := d.laterals[k].Forward(lateral)
	if err != nil {
		return nil, err
	}
	return up.Add(proj)
}

// Layers lists the member's convolutions by parameter path.
func (d *NLayerDiscriminator) Layers() []Named {
	return d.layers
}

// Discriminator is an ensemble of NLayerDiscriminators scored concurrently.
type Discriminator struct {
	cfg     DiscriminatorConfig
	members []*NLayerDiscriminator
	pool    nn.AvgPool1d
	layers  []Named
	log     logger.Logger
}

// NewDiscriminator builds cfg.NumD members. Member i is initialized with
// seed cfg.Seed+i.
func NewDiscriminator(cfg DiscriminatorConfig, opts ...Option) (*Discriminator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := resolveOptions(opts)

	d := &Discriminator{
		cfg:  cfg,
		pool: nn.AvgPool1d{Kernel: 4, Stride: 2, Padding: 1},
		log:  o.log,
	}
	b := &builder{}
	for i := 0; i < cfg.NumD; i++ {
		m, err := NewNLayerDiscriminator(cfg.NDF, cfg.NLayers, cfg.DownsamplingFactor, cfg.Seed+uint64(i))
		if err != nil {
			return nil, err
		}
		d.members = append(d.members, m)
		b.nest(fmt.Sprintf("model.disc_%d", i), m.Layers())
	}
	d.layers = b.layers

	d.log.Debugw("discriminator built",
		"params", d.NumParams(),
		"members", cfg.NumD,
		"channels", d.members[0].Channels(),
		"downsample", cfg.Downsample,
	)
	return d, nil
}

// Config returns the construction parameters.
func (d *Discriminator) Config() DiscriminatorConfig {
	return d.cfg
}

// Members returns the ensemble in scoring order.
func (d *Discriminator) Members() []*NLayerDiscriminator {
	return d.members
}

// Forward scores x with every member. Result i holds member i's feature maps
// with its score map last.
func (d *Discriminator) Forward(x *tensor.Tensor) ([][]*tensor.Tensor, error) {
	if err := x.CheckChannels("Discriminator", 1); err != nil {
		return nil, err
	}
	inputs := make([]*tensor.Tensor, len(d.members))
	inputs[0] = x
	for i := 1; i < len(inputs); i++ {
		inputs[i] = inputs[i-1]
		if d.cfg.Downsample {
			pooled, err := d.pool.Forward(inputs[i-1])
			if err != nil {
				return nil, fmt.Errorf("downsample for member %d: %w", i, err)
			}
			inputs[i] = pooled
		}
	}

	results := make([][]*tensor.Tensor, len(d.members))
	var g errgroup.Group
	for i, m := range d.members {
		g.Go(func() error {
			out, err := m.Forward(inputs[i])
			if err != nil {
				return fmt.Errorf("member %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Layers returns every parameterized layer of every member.
func (d *Discriminator) Layers() []nn.Layer {
	return plainLayers(d.layers)
}

// Parameters lists every learned tensor under its module path.
func (d *Discriminator) Parameters() []nn.Param {
	return collectParams(d.layers)
}

// NumParams is the total number of learned scalars.
func (d *Discriminator) NumParams() int {
	return nn.CountParams(d.Layers()...)
}
