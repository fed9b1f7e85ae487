package engine_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/engine/enginetest"
)

func TestCodeMessage(t *testing.T) {
	cases := map[engine.Code]string{
		engine.CodeOK:               "No error.",
		engine.CodeNoModel:          "Missing model information.",
		engine.CodeFailCreateStream: "Error creating the stream.",
		engine.CodeFailEraseHotWord: "Could not erase hot-word.",
	}
	for code, want := range cases {
		if got := code.Message(); got != want {
			t.Fatalf("%s: expected %q, got %q", code, want, got)
		}
	}
	if got := engine.Code(0x4242).Message(); got != "Unknown error 0x4242." {
		t.Fatalf("unexpected message for unknown code: %q", got)
	}
}

func TestErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("open session: %w", engine.NewError(engine.CodeFailCreateStream))

	if !errors.Is(err, engine.NewError(engine.CodeFailCreateStream)) {
		t.Fatalf("expected wrapped engine error to match by code")
	}
	if errors.Is(err, engine.NewError(engine.CodeFailRunSess)) {
		t.Fatalf("did not expect match on a different code")
	}
	if got := engine.CodeOf(err); got != engine.CodeFailCreateStream {
		t.Fatalf("expected CodeOf to unwrap 0x3004, got %s", got)
	}
	if got := engine.CodeOf(errors.New("plain")); got != engine.CodeOK {
		t.Fatalf("expected CodeOK for non-engine error, got %s", got)
	}
}

func TestNewResult(t *testing.T) {
	md := engine.Metadata{Transcripts: []engine.CandidateTranscript{
		{Tokens: []engine.Token{{Text: "h"}, {Text: "i"}}, Confidence: -1},
		{Text: "high", Confidence: -3},
	}}
	r := engine.NewResult(md)
	if r.Text != "hi" {
		t.Fatalf("expected best text from tokens, got %q", r.Text)
	}
	if len(r.Candidates) != 2 || r.Candidates[1].Text != "high" {
		t.Fatalf("unexpected candidates: %+v", r.Candidates)
	}

	md.Transcripts[0].Tokens[0].Text = "x"
	if r.Candidates[0].Tokens[0].Text != "h" {
		t.Fatalf("result must not share token storage with metadata")
	}

	if !engine.NewResult(engine.Metadata{}).Empty() {
		t.Fatalf("expected empty result for empty metadata")
	}
}

func TestConfigure(t *testing.T) {
	model := enginetest.NewModel(16000)
	alpha, beta := float32(0.9), float32(1.2)

	err := engine.Configure(model, engine.Options{
		BeamWidth:  1024,
		ScorerPath: "kenlm.scorer",
		Alpha:      &alpha,
		Beta:       &beta,
		HotWords:   map[string]float32{"zeta": 2, "alpha": 1.5},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	want := []string{
		"beam:1024",
		"scorer:kenlm.scorer",
		"alphabeta:0.9/1.2",
		"clear",
		"hotword:alpha=1.5",
		"hotword:zeta=2",
	}
	if got := model.TuneCalls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected calls %v, got %v", want, got)
	}
}

func TestConfigureAlphaBetaWithoutScorer(t *testing.T) {
	alpha, beta := float32(1), float32(1)
	err := engine.Configure(enginetest.NewModel(16000), engine.Options{Alpha: &alpha, Beta: &beta})
	if engine.CodeOf(err) != engine.CodeScorerNotEnabled {
		t.Fatalf("expected scorer-not-enabled, got %v", err)
	}
}

type plainModel struct{}

func (plainModel) SampleRate() int                      { return 16000 }
func (plainModel) CreateStream() (engine.Stream, error) { return nil, nil }
func (plainModel) Close() error                         { return nil }

func TestConfigureUntunableModel(t *testing.T) {
	if err := engine.Configure(plainModel{}, engine.Options{}); err != nil {
		t.Fatalf("empty options should always apply: %v", err)
	}
	if err := engine.Configure(plainModel{}, engine.Options{BeamWidth: 10}); err == nil {
		t.Fatalf("expected error tuning a model without Tuner")
	}
}
