package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"

	"github.com/liuscraft/orion-stt/internal/app"
	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/audio/source"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/engine/coqui"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/recognition"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	device := flag.String("device", "", "input device name (partial match), overrides config")
	record := flag.String("record", "", "write the audio fed to the engine to this WAV file")
	replay := flag.String("file", "", "replay an audio file in real time instead of using the microphone")
	flag.Parse()

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	if *device != "" {
		cfg.Capture.Device = *device
	}
	if *record != "" {
		cfg.Pipeline.RecordPath = *record
	}

	logging.Infof("Engine version: %s", coqui.Version())
	model, err := app.LoadModel(coqui.NewEngine(), cfg)
	if err != nil {
		logging.Fatalf("Failed to load model: %v", err)
	}
	defer model.Close()

	var (
		capture audio.Capture
		ended   <-chan struct{}
	)
	if *replay != "" {
		file, err := source.OpenFile(*replay, cfg.Capture.BlockMs, true)
		if err != nil {
			logging.Fatalf("Failed to open %s: %v", *replay, err)
		}
		capture, ended = file, file.Ended()
	} else {
		if err := portaudio.Initialize(); err != nil {
			logging.Fatalf("Failed to initialize PortAudio: %v", err)
		}
		defer portaudio.Terminate()

		mic, err := source.NewMicrophone(app.MicrophoneConfig(cfg.Capture))
		if err != nil {
			logging.Fatalf("Failed to open microphone: %v", err)
		}
		defer mic.Close()
		logging.Infof("Capturing %s", mic.Format())
		capture = mic
	}

	ctlCfg, err := recognition.ConfigFrom(cfg)
	if err != nil {
		logging.Fatalf("Invalid pipeline config: %v", err)
	}
	ctl := recognition.NewController(capture, ctlCfg)
	ctl.OnPartialResult(func(r engine.Result) {
		fmt.Printf("\rpartial: %s", r.Text)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("listening... press Ctrl+C to finish")
	result, err := app.Recognize(ctx, ctl, model, ended)
	if err != nil {
		logging.Errorf("Recognition failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("\nfinal: %s\n", result.Text)
	for i, c := range result.Candidates {
		if i == 0 {
			continue
		}
		fmt.Printf("  alt %d (%.2f): %s\n", i, c.Confidence, c.Text)
	}
}
