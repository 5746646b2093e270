package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/livekit/protocol/logger"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat"

	"github.com/neurlang/gomelgan/config"
	"github.com/neurlang/gomelgan/mel"
	"github.com/neurlang/gomelgan/melgan"
	"github.com/neurlang/gomelgan/tensor"
)

func main() {
	flags := pflag.NewFlagSet("vocode", pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() < 1 {
		fmt.Println("Usage: vocode [flags] <audio.wav|audio.flac>")
		flags.PrintDefaults()
		os.Exit(1)
	}
	var filename = flags.Arg(0)

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.InitFromConfig(cfg.LoggerConfig(), "vocode")
	log := logger.GetLogger()

	if err := run(cfg, filename, log); err != nil {
		log.Errorw("vocoding failed", err, "file", filename)
		os.Exit(1)
	}
}

func run(cfg *config.Config, filename string, log logger.Logger) error {
	e, err := mel.NewExtractor(&cfg.Audio)
	if err != nil {
		return err
	}
	g, err := melgan.NewGenerator(cfg.Generator, melgan.WithLogger(log))
	if err != nil {
		return err
	}
	d, err := melgan.NewDiscriminator(cfg.Discriminator, melgan.WithLogger(log))
	if err != nil {
		return err
	}
	log.Infow("networks ready",
		"generatorParams", g.NumParams(),
		"discriminatorParams", d.NumParams(),
		"hopLength", g.HopLength(),
	)

	buf, sr, err := mel.LoadAudio(filename)
	if err != nil {
		return err
	}
	if sr != cfg.Audio.SampleRate {
		log.Warnw("sample rate differs from config, not resampling", nil,
			"sampleRate", sr, "expected", cfg.Audio.SampleRate)
	}
	orig, err := tensor.FromWaveforms([][]float64{buf})
	if err != nil {
		return err
	}

	spec, err := e.Forward(orig)
	if err != nil {
		return err
	}
	fake, err := g.Forward(spec)
	if err != nil {
		return err
	}
	log.Infow("synthesized", "mel", spec.Shape(), "wave", fake.Shape())

	for _, in := range []struct {
		name string
		x    *tensor.Tensor
	}{{"real", orig}, {"generated", fake}} {
		results, err := d.Forward(in.x)
		if err != nil {
			return fmt.Errorf("scoring %s audio: %w", in.name, err)
		}
		for i, maps := range results {
			score := maps[len(maps)-1]
			log.Infow("discriminator score",
				"input", in.name,
				"member", i,
				"maps", len(maps),
				"mean", stat.Mean(score.Data, nil),
			)
		}
	}

	outputFile := strings.TrimSuffix(filename, ".flac")
	outputFile = strings.TrimSuffix(outputFile, ".wav") + ".gen.wav"
	if err := mel.SaveWav(outputFile, fake.Row(0, 0), cfg.Audio.SampleRate); err != nil {
		return err
	}
	log.Infow("wave written", "file", outputFile, "samples", fake.Length)
	return nil
}
