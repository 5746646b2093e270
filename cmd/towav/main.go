package main

import (
	"fmt"
	"os"

	"github.com/livekit/protocol/logger"
	"github.com/spf13/pflag"

	"github.com/neurlang/gomelgan/config"
	"github.com/neurlang/gomelgan/mel"
)

func main() {
	flags := pflag.NewFlagSet("towav", pflag.ExitOnError)
	config.RegisterFlags(flags)
	iterations := flags.IntP("iterations", "n", 0, "Griffin-Lim iterations (0 uses the config)")
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() < 1 {
		fmt.Println("Usage: towav [flags] <f16_filename>")
		flags.PrintDefaults()
		os.Exit(1)
	}
	var filename = flags.Arg(0)

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.InitFromConfig(cfg.LoggerConfig(), "towav")
	log := logger.GetLogger()

	if *iterations > 0 {
		cfg.Audio.GriffinLimIterations = *iterations
	}
	e, err := mel.NewExtractor(&cfg.Audio)
	if err != nil {
		log.Errorw("invalid audio config", err)
		os.Exit(1)
	}

	spec, err := mel.LoadFloat16(filename)
	if err != nil {
		log.Errorw("cannot read spectrogram", err, "file", filename)
		os.Exit(1)
	}
	wave, err := e.FromMel(spec)
	if err != nil {
		log.Errorw("reconstruction failed", err, "file", filename)
		os.Exit(1)
	}

	outputFile := filename + ".wav"
	if err := mel.SaveWav(outputFile, wave.Row(0, 0), cfg.Audio.SampleRate); err != nil {
		log.Errorw("cannot write wav", err, "file", outputFile)
		os.Exit(1)
	}
	log.Infow("wave written", "file", outputFile, "samples", wave.Length,
		"iterations", cfg.Audio.GriffinLimIterations)
}
