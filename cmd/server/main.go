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
	"github.com/liuscraft/orion-stt/internal/audio/source"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine/coqui"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/recognition"
	"github.com/liuscraft/orion-stt/internal/server"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	addr := flag.String("addr", "", "listen address, overrides config")
	flag.Parse()

	cfg, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	model, err := app.LoadModel(coqui.NewEngine(), cfg)
	if err != nil {
		logging.Fatalf("Failed to load model: %v", err)
	}
	defer model.Close()

	if err := portaudio.Initialize(); err != nil {
		logging.Fatalf("Failed to initialize PortAudio: %v", err)
	}
	defer portaudio.Terminate()

	mic, err := source.NewMicrophone(app.MicrophoneConfig(cfg.Capture))
	if err != nil {
		logging.Fatalf("Failed to open microphone: %v", err)
	}
	defer mic.Close()

	ctlCfg, err := recognition.ConfigFrom(cfg)
	if err != nil {
		logging.Fatalf("Invalid pipeline config: %v", err)
	}
	ctl := recognition.NewController(mic, ctlCfg)

	srv := server.New(cfg.Server, ctl, model)
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logging.Errorf("Server stopped: %v", err)
		os.Exit(1)
	}
	logging.Infof("Server stopped")
}
