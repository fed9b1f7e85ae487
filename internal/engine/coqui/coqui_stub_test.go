//go:build !coqui

package coqui

import (
	"testing"

	"github.com/liuscraft/orion-stt/internal/engine"
)

func TestStubReportsNoModel(t *testing.T) {
	_, err := NewEngine().LoadModel("model.tflite")
	if engine.CodeOf(err) != engine.CodeNoModel {
		t.Fatalf("expected CodeNoModel, got %v", err)
	}
}
