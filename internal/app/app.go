// Package app holds the start-up steps shared by the command binaries.
package app

import (
	"context"
	"fmt"

	"github.com/liuscraft/orion-stt/internal/audio/source"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/recognition"
)

// Bootstrap loads the config (Load validates it), then initializes logging
// and a process trace id.
func Bootstrap(configPath string) (*config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logging.SetTraceID(logging.NewTraceID())
	for _, w := range cfg.Warnings() {
		logging.Warnf("Config: %s", w)
	}
	return cfg, nil
}

func TuningOptions(cfg config.EngineConfig) engine.Options {
	return engine.Options{
		BeamWidth:  cfg.BeamWidth,
		ScorerPath: cfg.ScorerPath,
		Alpha:      cfg.Alpha,
		Beta:       cfg.Beta,
		HotWords:   cfg.HotWords,
	}
}

// LoadModel loads the configured model and applies tuning. The model is
// closed again if tuning fails.
func LoadModel(e engine.Engine, cfg *config.AppConfig) (engine.Model, error) {
	if err := cfg.ValidateModel(); err != nil {
		return nil, err
	}
	logging.Infof("Loading model %s", cfg.Engine.ModelPath)
	model, err := e.LoadModel(cfg.Engine.ModelPath)
	if err != nil {
		return nil, err
	}
	if err := engine.Configure(model, TuningOptions(cfg.Engine)); err != nil {
		_ = model.Close()
		return nil, fmt.Errorf("configure model: %w", err)
	}
	logging.Infof("Model loaded (%d Hz)", model.SampleRate())
	return model, nil
}

func MicrophoneConfig(cfg config.CaptureConfig) source.MicrophoneConfig {
	return source.MicrophoneConfig{
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
		BlockMs:     cfg.BlockMs,
		HighLatency: cfg.HighLatency,
		Device:      cfg.Device,
	}
}

// Recognize starts ctl on model and waits until ctx ends, ended is closed or
// the session reports an error. It then stops ctl and returns the final
// result. On an error event the session is cancelled and that error is
// returned.
func Recognize(ctx context.Context, ctl *recognition.Controller, model engine.Model, ended <-chan struct{}) (engine.Result, error) {
	failed := make(chan error, 1)
	unsubscribe := ctl.OnError(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	defer unsubscribe()

	// Ctrl+C finishes the utterance through Stop, so the session does not
	// watch ctx itself.
	if err := ctl.Start(context.Background(), model); err != nil {
		return engine.Result{}, fmt.Errorf("start recognition: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-ended:
	case err := <-failed:
		_ = ctl.Cancel()
		return engine.Result{}, err
	}
	return ctl.Stop()
}
