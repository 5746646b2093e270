package melgan

import (
	"fmt"

	"github.com/neurlang/gomelgan/nn"
	"github.com/neurlang/gomelgan/tensor"
)

// ResidualBlock is a dilated convolution unit with a pointwise shortcut:
// shortcut(x) + block(x), shape preserving.
type ResidualBlock struct {
	Dim      int
	Dilation int

	block    nn.Sequential
	shortcut *nn.Conv1d
	layers   []Named
}

// NewResidualBlock builds a block over dim channels. Inputs must be longer
// than dilation samples for the reflection padding.
func NewResidualBlock(dim, dilation int) (*ResidualBlock, error) {
	if dim <= 0 || dilation <= 0 {
		return nil, fmt.Errorf("%w: residual block dim %d, dilation %d", ErrConfig, dim, dilation)
	}
	b := &builder{}
	dilated := b.conv("block.2", dim, dim, 3, nn.Dilation(dilation))
	pointwise := b.conv("block.4", dim, dim, 1)
	shortcut := b.conv("shortcut", dim, dim, 1)
	if b.err != nil {
		return nil, b.err
	}
	return &ResidualBlock{
		Dim:      dim,
		Dilation: dilation,
		block: nn.Sequential{
			nn.LeakyReLU{Slope: leakySlope},
			nn.ReflectionPad{Size: dilation},
			dilated,
			nn.LeakyReLU{Slope: leakySlope},
			pointwise,
		},
		shortcut: shortcut,
		layers:   b.layers,
	}, nil
}

func (r *ResidualBlock) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := x.CheckChannels("ResidualBlock", r.Dim); err != nil {
		return nil, err
	}
	s, err := r.shortcut.Forward(x)
	if err != nil {
		return nil, err
	}
	y, err := r.block.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("residual block (dilation %d): %w", r.Dilation, err)
	}
	return s.Add(y)
}

// Layers lists the block's convolutions by parameter path.
func (r *ResidualBlock) Layers() []Named {
	return r.layers
}
