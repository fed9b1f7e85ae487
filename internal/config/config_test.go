package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liuscraft/orion-stt/internal/errs"
)

func TestLoad_MergesDefaultsAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "stt.json")
	data := `{
		"logging": {"level": "debug"},
		"capture": {"sample_rate": 48000, "channels": 2},
		"pipeline": {"decode_interval_ms": 500}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STT_MODEL_PATH", "/models/en.tflite")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to override config, got %q", cfg.Logging.Level)
	}
	if cfg.Capture.SampleRate != 48000 || cfg.Capture.Channels != 2 {
		t.Fatalf("expected capture 48000/2, got %d/%d", cfg.Capture.SampleRate, cfg.Capture.Channels)
	}
	if cfg.Pipeline.DecodeIntervalMs != 500 {
		t.Fatalf("expected decode interval 500, got %d", cfg.Pipeline.DecodeIntervalMs)
	}
	if cfg.Pipeline.FeedIntervalMs != 120 {
		t.Fatalf("expected default feed interval to be preserved, got %d", cfg.Pipeline.FeedIntervalMs)
	}
	if cfg.Engine.ModelPath != "/models/en.tflite" {
		t.Fatalf("expected model path from env, got %q", cfg.Engine.ModelPath)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "stt.yaml")
	data := `
engine:
  model_path: model.tflite
  scorer_path: huge-vocab.scorer
  beam_width: 500
  alpha: 0.93
  beta: 1.18
  hot_words:
    orion: 7.5
pipeline:
  mixdown: first
  queue_capacity: 64
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.ScorerPath != "huge-vocab.scorer" || cfg.Engine.BeamWidth != 500 {
		t.Fatalf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.Alpha == nil || *cfg.Engine.Alpha != float32(0.93) {
		t.Fatalf("expected alpha 0.93, got %v", cfg.Engine.Alpha)
	}
	if cfg.Engine.HotWords["orion"] != 7.5 {
		t.Fatalf("expected hot word boost, got %v", cfg.Engine.HotWords)
	}
	if cfg.Pipeline.Mixdown != "first" || cfg.Pipeline.QueueCapacity != 64 {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Capture.BlockMs != 100 {
		t.Fatalf("expected default block ms, got %d", cfg.Capture.BlockMs)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pipeline.TargetSampleRate != 0 {
		t.Fatalf("expected target rate to follow the model by default, got %d", cfg.Pipeline.TargetSampleRate)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultEnvFile), []byte("STT_AUDIO_DEVICE=usb mic\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("STT_AUDIO_DEVICE")
	})

	cfg, err := Load("absent.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Capture.Device != "usb mic" {
		t.Fatalf("expected device from .env, got %q", cfg.Capture.Device)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"zero capture rate", func(c *AppConfig) { c.Capture.SampleRate = 0 }},
		{"negative target rate", func(c *AppConfig) { c.Pipeline.TargetSampleRate = -1 }},
		{"zero feed interval", func(c *AppConfig) { c.Pipeline.FeedIntervalMs = 0 }},
		{"zero decode interval", func(c *AppConfig) { c.Pipeline.DecodeIntervalMs = 0 }},
		{"bad mixdown", func(c *AppConfig) { c.Pipeline.Mixdown = "left" }},
		{"negative queue", func(c *AppConfig) { c.Pipeline.QueueCapacity = -1 }},
		{"alpha without beta", func(c *AppConfig) {
			alpha := float32(1)
			c.Engine.Alpha = &alpha
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errs.IsKind(err, errs.KindConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Pipeline.TargetSampleRate = 0
	cfg.Pipeline.Mixdown = "AVERAGE"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("model-rate target and upper-case mixdown should be valid: %v", err)
	}
}

func TestWarnings(t *testing.T) {
	cfg := DefaultConfig()
	if w := cfg.Warnings(); len(w) != 0 {
		t.Fatalf("default config should not warn: %v", w)
	}
	cfg.Pipeline.DecodeIntervalMs = 100
	if w := cfg.Warnings(); len(w) != 1 {
		t.Fatalf("expected decode window warning, got %v", w)
	}
	cfg.Pipeline.DecodeIntervalMs = 350
	cfg.Pipeline.FeedIntervalMs = 20
	if w := cfg.Warnings(); len(w) != 1 || !strings.Contains(w[0], "much shorter") {
		t.Fatalf("expected short feed interval warning, got %v", w)
	}
}

func TestValidateModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.ModelPath = " "
	if err := cfg.ValidateModel(); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("expected config error when model path is missing, got %v", err)
	}
}
