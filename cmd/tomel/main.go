package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/livekit/protocol/logger"
	"github.com/spf13/pflag"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"

	"github.com/neurlang/gomelgan/config"
	"github.com/neurlang/gomelgan/mel"
)

func main() {
	flags := pflag.NewFlagSet("tomel", pflag.ExitOnError)
	config.RegisterFlags(flags)
	workers := flags.IntP("workers", "j", runtime.NumCPU(), "files converted in parallel")
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() < 1 {
		fmt.Println("Usage: tomel [flags] <audio.wav|audio.flac>...")
		flags.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.InitFromConfig(cfg.LoggerConfig(), "tomel")
	log := logger.GetLogger()

	e, err := mel.NewExtractor(&cfg.Audio)
	if err != nil {
		log.Errorw("invalid audio config", err)
		os.Exit(1)
	}

	files := flags.Args()
	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(files)),
		mpb.PrependDecorators(
			decor.Name("Converting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	var g errgroup.Group
	g.SetLimit(max(*workers, 1))
	for _, name := range files {
		g.Go(func() error {
			defer bar.Increment()
			if err := convert(e, &cfg.Audio, name, log); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	err = g.Wait()
	p.Wait()
	if err != nil {
		log.Errorw("conversion failed", err)
		os.Exit(1)
	}
}

// convert writes name.png and name.f16 for one audio file.
func convert(e *mel.Extractor, m *mel.Mel, name string, log logger.Logger) error {
	buf, sr, err := mel.LoadAudio(name)
	if err != nil {
		return err
	}
	if sr != m.SampleRate {
		log.Warnw("sample rate differs from config, not resampling", nil,
			"file", name, "sampleRate", sr, "expected", m.SampleRate)
	}

	spec, err := e.ToMel(buf)
	if err != nil {
		return err
	}
	if err := m.SavePNG(name+".png", spec, 0); err != nil {
		return err
	}
	if err := mel.SaveFloat16(name+".f16", spec, 0); err != nil {
		return err
	}
	log.Debugw("mel spectrogram written", "file", name, "frames", spec.Length, "mels", spec.Channels)
	return nil
}
