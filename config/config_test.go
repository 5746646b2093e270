package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/gomelgan/melgan"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 256, cfg.Generator.HopLength())
	assert.Equal(t, "info", cfg.LoggerConfig().Level)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "small.yaml", `
audio:
  n_fft: 512
  hop_length: 128
  win_length: 512
  sampling_rate: 16000
  n_mel_channels: 40
  mel_fmax: 7600
generator:
  input_size: 40
  ratios: [8, 4, 2, 2]
  seed: 7
discriminator:
  num_d: 2
  downsample: true
logging:
  level: debug
  json: true
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Audio.NFFT)
	assert.Equal(t, 128, cfg.Audio.HopLength)
	assert.Equal(t, 7600.0, cfg.Audio.MelFmax)
	assert.True(t, cfg.Audio.YReverse)
	assert.Equal(t, []int{8, 4, 2, 2}, cfg.Generator.Ratios)
	assert.Equal(t, uint64(7), cfg.Generator.Seed)
	assert.Equal(t, 32, cfg.Generator.NGF)
	assert.Equal(t, 2, cfg.Discriminator.NumD)
	assert.True(t, cfg.Discriminator.Downsample)
	assert.Equal(t, 16, cfg.Discriminator.NDF)
	assert.Equal(t, Logging{Level: "debug", JSON: true}, cfg.Logging)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("GOMELGAN_DISCRIMINATOR_NUM_D", "5")
	t.Setenv("GOMELGAN_LOGGING_LEVEL", "warn")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Discriminator.NumD)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestFlags(t *testing.T) {
	path := writeFile(t, "seed.json", `{"generator": {"seed": 3}}`)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--seed", "9", "--downsample"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), cfg.Generator.Seed)
	assert.True(t, cfg.Discriminator.Downsample)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestUnsetFlagsKeepFileValues(t *testing.T) {
	path := writeFile(t, "seed.toml", "[generator]\nseed = 3\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Generator.Seed)
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "mismatch.yaml", "generator:\n  ratios: [8, 8, 2]\n")
	_, err := Load(path, nil)
	require.ErrorIs(t, err, melgan.ErrConfig)

	path = writeFile(t, "mels.yaml", "audio:\n  n_mel_channels: 64\n")
	_, err = Load(path, nil)
	require.ErrorIs(t, err, melgan.ErrConfig)

	path = writeFile(t, "ndf.yaml", "discriminator:\n  ndf: 10\n")
	_, err = Load(path, nil)
	require.ErrorIs(t, err, melgan.ErrConfig)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
