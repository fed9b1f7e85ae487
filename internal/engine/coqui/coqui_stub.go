//go:build !coqui

package coqui

import (
	"github.com/liuscraft/orion-stt/internal/engine"
)

// Engine without the coqui build tag has no native library to call; every
// model load fails with CodeNoModel so the binaries still build and report
// a clear error.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func Version() string { return "unavailable (built without -tags coqui)" }

func (e *Engine) LoadModel(path string) (engine.Model, error) {
	return nil, &engine.Error{
		Code:    engine.CodeNoModel,
		Message: engine.CodeNoModel.Message() + " Rebuild with -tags coqui to load " + path,
	}
}
