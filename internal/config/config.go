package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/liuscraft/orion-stt/internal/errs"
)

const (
	DefaultPath    = "config/stt.json"
	DefaultEnvFile = ".env"

	// minDecodeWindowMs is 16 engine timesteps of 20ms; an intermediate
	// decode issued more often than this sees no new logits.
	minDecodeWindowMs = 320
)

type AppConfig struct {
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Capture  CaptureConfig  `json:"capture" yaml:"capture"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Batch    BatchConfig    `json:"batch" yaml:"batch"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type EngineConfig struct {
	ModelPath  string             `json:"model_path" yaml:"model_path"`
	ScorerPath string             `json:"scorer_path" yaml:"scorer_path"`
	BeamWidth  int                `json:"beam_width" yaml:"beam_width"`
	Alpha      *float32           `json:"alpha" yaml:"alpha"`
	Beta       *float32           `json:"beta" yaml:"beta"`
	HotWords   map[string]float32 `json:"hot_words" yaml:"hot_words"`
	NumResults int                `json:"num_results" yaml:"num_results"`
}

type CaptureConfig struct {
	Device      string `json:"device" yaml:"device"`
	SampleRate  int    `json:"sample_rate" yaml:"sample_rate"`
	Channels    int    `json:"channels" yaml:"channels"`
	BlockMs     int    `json:"block_ms" yaml:"block_ms"`
	HighLatency bool   `json:"high_latency" yaml:"high_latency"`
}

type PipelineConfig struct {
	TargetSampleRate int    `json:"target_sample_rate" yaml:"target_sample_rate"`
	FrameMs          int    `json:"frame_ms" yaml:"frame_ms"`
	Mixdown          string `json:"mixdown" yaml:"mixdown"`
	QueueCapacity    int    `json:"queue_capacity" yaml:"queue_capacity"`
	FeedIntervalMs   int    `json:"feed_interval_ms" yaml:"feed_interval_ms"`
	DecodeIntervalMs int    `json:"decode_interval_ms" yaml:"decode_interval_ms"`
	DedupePartials   bool   `json:"dedupe_partials" yaml:"dedupe_partials"`
	RecordPath       string `json:"record_path" yaml:"record_path"`
}

type BatchConfig struct {
	Workers    int      `json:"workers" yaml:"workers"`
	Extensions []string `json:"extensions" yaml:"extensions"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	Path string `json:"path" yaml:"path"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Engine: EngineConfig{
			ModelPath:  "models/model.tflite",
			NumResults: 1,
		},
		Capture: CaptureConfig{
			SampleRate: 16000,
			Channels:   1,
			BlockMs:    100,
		},
		Pipeline: PipelineConfig{
			FrameMs:          20,
			Mixdown:          "average",
			FeedIntervalMs:   120,
			DecodeIntervalMs: 350,
		},
		Batch: BatchConfig{
			Workers:    1,
			Extensions: []string{".wav", ".mp3", ".pcm", ".raw"},
		},
		Server: ServerConfig{
			Addr: ":8089",
			Path: "/ws",
		},
	}
}

// Load reads path (JSON or YAML by extension) on top of the defaults, then
// applies a .env file if one exists and the process environment.
func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	if err := loadEnvFile(DefaultEnvFile); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file %s: %w", path, err)
	}
	// godotenv.Load never overrides variables already set in the environment.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if model := strings.TrimSpace(os.Getenv("STT_MODEL_PATH")); model != "" {
		c.Engine.ModelPath = model
	}
	if scorer := strings.TrimSpace(os.Getenv("STT_SCORER_PATH")); scorer != "" {
		c.Engine.ScorerPath = scorer
	}
	if device := strings.TrimSpace(os.Getenv("STT_AUDIO_DEVICE")); device != "" {
		c.Capture.Device = device
	}
}

// Validate reports the first invalid setting as a KindConfig error.
func (c *AppConfig) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return invalid("capture.sample_rate must be positive")
	}
	if c.Capture.Channels <= 0 {
		return invalid("capture.channels must be positive")
	}
	if c.Capture.BlockMs <= 0 {
		return invalid("capture.block_ms must be positive")
	}
	// 0 means use the model's sample rate
	if c.Pipeline.TargetSampleRate < 0 {
		return invalid("pipeline.target_sample_rate must be non-negative")
	}
	if c.Pipeline.FrameMs < 0 {
		return invalid("pipeline.frame_ms must be non-negative")
	}
	if c.Pipeline.QueueCapacity < 0 {
		return invalid("pipeline.queue_capacity must be non-negative")
	}
	if c.Pipeline.FeedIntervalMs <= 0 {
		return invalid("pipeline.feed_interval_ms must be positive")
	}
	if c.Pipeline.DecodeIntervalMs <= 0 {
		return invalid("pipeline.decode_interval_ms must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.Pipeline.Mixdown)) {
	case "", "average", "first":
	default:
		return invalid(fmt.Sprintf("invalid pipeline.mixdown: %s", c.Pipeline.Mixdown))
	}

	if c.Engine.NumResults < 0 {
		return invalid("engine.num_results must be non-negative")
	}
	if c.Engine.BeamWidth < 0 {
		return invalid("engine.beam_width must be non-negative")
	}
	if (c.Engine.Alpha == nil) != (c.Engine.Beta == nil) {
		return invalid("engine.alpha and engine.beta must be set together")
	}
	if c.Batch.Workers < 0 {
		return invalid("batch.workers must be non-negative")
	}

	return nil
}

func invalid(message string) error {
	return errs.New(errs.KindConfig, "config.validate", message)
}

// Warnings reports settings that are legal but likely mistuned.
func (c *AppConfig) Warnings() []string {
	var out []string
	if c.Pipeline.DecodeIntervalMs < minDecodeWindowMs {
		out = append(out, fmt.Sprintf(
			"pipeline.decode_interval_ms=%d is below the engine decode window (%dms); partials will repeat",
			c.Pipeline.DecodeIntervalMs, minDecodeWindowMs))
	}
	if c.Pipeline.FeedIntervalMs < c.Capture.BlockMs/2 {
		out = append(out, fmt.Sprintf(
			"pipeline.feed_interval_ms=%d is much shorter than capture.block_ms=%d; most feed ticks will be empty",
			c.Pipeline.FeedIntervalMs, c.Capture.BlockMs))
	}
	return out
}

func (c *AppConfig) ValidateModel() error {
	if strings.TrimSpace(c.Engine.ModelPath) == "" {
		return errs.New(errs.KindConfig, "config.validate_model", "engine.model_path is required")
	}
	return nil
}
