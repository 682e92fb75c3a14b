// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"lightshow/cmd"
	"lightshow/internal/audio"
	"lightshow/internal/config"
	"lightshow/internal/log"
	"lightshow/internal/tui"
	"lightshow/pkg/build"
)

// main is the entry point of the light show.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Connect fixtures and the monitor
//   - Run live capture or replay a file through the pipeline
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Close fixture sessions
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("development build: %v", err)
	}

	// One thread for the audio callback, one for transport and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.Command == "" {
		return // --help or --version
	}

	if opts.Command == cmd.CommandList {
		if err := listDevices(opts.Pick); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := opts.Apply(cfg); err != nil {
		log.Fatalf("%v", err)
	}
	configureLogging(cfg)
	log.Infof("%s", build.GetBuildFlags())

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Command {
	case cmd.CommandReplay:
		err = replay(ctx, cfg, opts)
	default:
		err = live(ctx, cfg, opts)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v", err)
	}
}

func configureLogging(cfg *config.Config) {
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

func listDevices(pick bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	if !pick {
		return audio.ListDevices(os.Stdout)
	}

	devices, err := audio.HostDevices()
	if err != nil {
		return err
	}
	sel, err := tui.Pick(devices)
	if err != nil {
		return err
	}
	out, err := sel.YAML()
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", sel.Device.Name, out)
	return nil
}

// live captures from PortAudio until ctx is cancelled.
func live(ctx context.Context, cfg *config.Config, opts *cmd.Options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	show, err := cmd.NewShow(cfg, time.Now())
	if err != nil {
		return err
	}
	if err := show.Start(ctx); err != nil {
		return err
	}

	engine, err := audio.NewEngine(cfg.Audio, show.Spectrum(), show)
	if err != nil {
		return err
	}
	if opts.NoGate {
		engine.Gate().Disable()
	}

	// CRITICAL: Start of real-time audio processing. From here on PortAudio
	// calls the engine, which runs detection and dispatch synchronously.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	var recording string
	if cfg.Recording.Enabled {
		recording = audio.RecordingName(cfg.Recording.OutputDir, time.Now())
		if err := engine.StartRecording(recording); err != nil {
			log.Errorf("recording disabled: %v", err)
			recording = ""
		}
	}

	<-ctx.Done()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := engine.Close(); err != nil {
		log.Errorf("error closing audio engine: %v", err)
	}
	if recording != "" {
		fmt.Printf("\nRecording saved to: %s\n", recording)
	}
	return show.Close()
}

// replay drives the show from a file at the file's own sample rate.
func replay(ctx context.Context, cfg *config.Config, opts *cmd.Options) error {
	src, err := audio.OpenFile(opts.File)
	if err != nil {
		return err
	}
	defer src.Close()

	cfg.Audio.SampleRate = src.SampleRate()
	cfg.Audio.Channels = src.Channels()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cannot replay %s: %w", opts.File, err)
	}

	show, err := cmd.NewShow(cfg, time.Now())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := show.Start(ctx); err != nil {
		return err
	}

	log.Infof("replaying %s (%.0f Hz, %d ch, paced: %v)", opts.File, src.SampleRate(), src.Channels(), opts.Paced)
	n, err := audio.Replay(ctx, src, cfg.Audio.ChunkSize, show.Spectrum(), show, opts.Paced)
	log.Infof("replayed %d chunks", n)

	cancel()
	if cerr := show.Close(); err == nil {
		err = cerr
	}
	return err
}
