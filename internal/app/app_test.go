package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/engine/enginetest"
	"github.com/liuscraft/orion-stt/internal/errs"
	"github.com/liuscraft/orion-stt/internal/recognition"
)

func TestBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stt.json")
	body := `{"logging":{"level":"debug"},"engine":{"model_path":"m.tflite"},"pipeline":{"decode_interval_ms":100}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Bootstrap(path)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if cfg.Engine.ModelPath != "m.tflite" || cfg.Pipeline.DecodeIntervalMs != 100 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stt.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"mixdown":"loudest"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Bootstrap(path); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoadModelAppliesTuning(t *testing.T) {
	eng := enginetest.NewEngine()
	cfg := config.DefaultConfig()
	cfg.Engine.ModelPath = "models/en.tflite"
	cfg.Engine.BeamWidth = 256
	cfg.Engine.HotWords = map[string]float32{"orion": 3}

	model, err := LoadModel(eng, cfg)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if model.SampleRate() != 16000 || eng.Model.Path() != "models/en.tflite" {
		t.Fatalf("unexpected model %v at %s", model, eng.Model.Path())
	}
	calls := eng.Model.TuneCalls()
	want := []string{"beam:256", "clear", "hotword:orion=3"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("expected tune calls %v, got %v", want, calls)
	}
}

func TestLoadModelClosesOnTuningFailure(t *testing.T) {
	eng := enginetest.NewEngine()
	cfg := config.DefaultConfig()
	alpha, beta := float32(0.5), float32(1)
	cfg.Engine.Alpha, cfg.Engine.Beta = &alpha, &beta

	_, err := LoadModel(eng, cfg)
	if engine.CodeOf(err) != engine.CodeScorerNotEnabled {
		t.Fatalf("expected scorer-not-enabled, got %v", err)
	}
	if !eng.Model.Closed() {
		t.Fatal("model should be closed after a tuning failure")
	}
}

func TestLoadModelErrors(t *testing.T) {
	eng := enginetest.NewEngine()
	eng.LoadErr = engine.NewError(engine.CodeInvalidAlphabet)
	cfg := config.DefaultConfig()
	if _, err := LoadModel(eng, cfg); engine.CodeOf(err) != engine.CodeInvalidAlphabet {
		t.Fatalf("expected load error unchanged, got %v", err)
	}

	cfg.Engine.ModelPath = " "
	if _, err := LoadModel(eng, cfg); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestMicrophoneConfig(t *testing.T) {
	mc := MicrophoneConfig(config.CaptureConfig{Device: "USB", SampleRate: 44100, Channels: 2, BlockMs: 50, HighLatency: true})
	if mc.Device != "USB" || mc.SampleRate != 44100 || mc.Channels != 2 || mc.BlockMs != 50 || !mc.HighLatency {
		t.Fatalf("unexpected microphone config %+v", mc)
	}
}

// oneBlockCapture delivers a single block from its own goroutine and then
// closes ended, like a file source reaching the end of its data.
type oneBlockCapture struct {
	samples []int16
	format  audio.Format
	ended   chan struct{}
	wg      sync.WaitGroup
}

func newOneBlockCapture(samples int, format audio.Format) *oneBlockCapture {
	return &oneBlockCapture{samples: make([]int16, samples), format: format, ended: make(chan struct{})}
}

func (c *oneBlockCapture) Start(onBlock audio.BlockHandler) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		onBlock(audio.Int16ToBytes(c.samples), c.format)
		close(c.ended)
	}()
	return nil
}

func (c *oneBlockCapture) Stop() error {
	c.wg.Wait()
	return nil
}

func quietController(capture audio.Capture) *recognition.Controller {
	cfg := recognition.DefaultConfig()
	cfg.FeedInterval = time.Hour
	cfg.DecodeInterval = time.Hour
	return recognition.NewController(capture, cfg)
}

func TestRecognizeStopsAtEndOfInput(t *testing.T) {
	capture := newOneBlockCapture(480, audio.Mono16k)
	ctl := quietController(capture)

	result, err := Recognize(context.Background(), ctl, enginetest.NewModel(16000), capture.ended)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if result.Text != "480 samples" {
		t.Fatalf("unexpected final %q", result.Text)
	}
}

func TestRecognizeReturnsSessionError(t *testing.T) {
	bad := audio.Format{SampleRate: 16000, Channels: 1, Encoding: audio.EncodingF64LE}
	capture := newOneBlockCapture(320, bad)
	ctl := quietController(capture)
	model := enginetest.NewModel(16000)

	done := make(chan error, 1)
	go func() {
		// no end-of-input signal: only the error can end the wait
		_, err := Recognize(context.Background(), ctl, model, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if !errs.IsKind(err, errs.KindConversion) {
			t.Fatalf("expected conversion error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Recognize did not return after a conversion error")
	}
	if s := model.LastStream(); s.Finishes() != 0 {
		t.Fatal("a failed session must not be finished")
	}
}
