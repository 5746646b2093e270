// Package config loads the audio front end, network and logging settings
// from a config file, GOMELGAN_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/livekit/protocol/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/neurlang/gomelgan/mel"
	"github.com/neurlang/gomelgan/melgan"
)

const envPrefix = "GOMELGAN"

// Logging selects the log level and encoding of the command-line tools.
type Logging struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Config is the complete vocoder configuration.
type Config struct {
	Audio         mel.Mel                    `mapstructure:"audio"`
	Generator     melgan.GeneratorConfig     `mapstructure:"generator"`
	Discriminator melgan.DiscriminatorConfig `mapstructure:"discriminator"`
	Logging       Logging                    `mapstructure:"logging"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Audio:         *mel.NewMel(),
		Generator:     melgan.DefaultGeneratorConfig(),
		Discriminator: melgan.DefaultDiscriminatorConfig(),
		Logging:       Logging{Level: "info"},
	}
}

// Validate checks every section and that the generator consumes the
// spectrogram the audio front end produces.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Discriminator.Validate(); err != nil {
		return fmt.Errorf("discriminator: %w", err)
	}
	if c.Generator.InputSize != c.Audio.NumMels {
		return fmt.Errorf("%w: generator input_size %d != audio n_mel_channels %d",
			melgan.ErrConfig, c.Generator.InputSize, c.Audio.NumMels)
	}
	if hop := c.Generator.HopLength(); hop != c.Audio.HopLength {
		return fmt.Errorf("%w: generator hop length %d != audio hop_length %d",
			melgan.ErrConfig, hop, c.Audio.HopLength)
	}
	return nil
}

// LoggerConfig converts the logging section for logger.InitFromConfig.
func (c *Config) LoggerConfig() *logger.Config {
	return &logger.Config{Level: c.Logging.Level, JSON: c.Logging.JSON}
}

// flagKeys maps the flags registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"log-json":   "logging.json",
	"seed":       "generator.seed",
	"downsample": "discriminator.downsample",
}

// RegisterFlags adds the config file flag and the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("config", "c", "", "config file (yaml, json or toml)")
	fs.String("log-level", d.Logging.Level, "log level")
	fs.Bool("log-json", d.Logging.JSON, "log as json")
	fs.Uint64("seed", d.Generator.Seed, "weight initialization seed")
	fs.Bool("downsample", d.Discriminator.Downsample, "average-pool the input between discriminators")
}

// Load reads path (optional) into the defaults, then applies environment
// variables such as GOMELGAN_AUDIO_HOP_LENGTH, then any flags set in flags.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if path == "" {
			if f := flags.Lookup("config"); f != nil {
				path = f.Value.String()
			}
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	a := d.Audio
	for key, val := range map[string]any{
		"audio.n_fft":                  a.NFFT,
		"audio.hop_length":             a.HopLength,
		"audio.win_length":             a.WinLength,
		"audio.sampling_rate":          a.SampleRate,
		"audio.n_mel_channels":         a.NumMels,
		"audio.mel_fmin":               a.MelFmin,
		"audio.mel_fmax":               a.MelFmax,
		"audio.htk":                    a.HTK,
		"audio.y_reverse":              a.YReverse,
		"audio.griffin_lim_iterations": a.GriffinLimIterations,

		"generator.input_size":        d.Generator.InputSize,
		"generator.ngf":               d.Generator.NGF,
		"generator.n_residual_layers": d.Generator.NResidualLayers,
		"generator.ratios":            d.Generator.Ratios,
		"generator.seed":              d.Generator.Seed,

		"discriminator.num_d":               d.Discriminator.NumD,
		"discriminator.ndf":                 d.Discriminator.NDF,
		"discriminator.n_layers":            d.Discriminator.NLayers,
		"discriminator.downsampling_factor": d.Discriminator.DownsamplingFactor,
		"discriminator.downsample":          d.Discriminator.Downsample,
		"discriminator.seed":                d.Discriminator.Seed,

		"logging.level": d.Logging.Level,
		"logging.json":  d.Logging.JSON,
	} {
		v.SetDefault(key, val)
	}
}
