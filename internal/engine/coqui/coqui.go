//go:build coqui

// Package coqui binds the engine contract to the libstt C API.
package coqui

/*
#cgo LDFLAGS: -lstt
#include <stdlib.h>
#include <coqui-stt.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/logging"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Version reports the libstt version string.
func Version() string {
	v := C.STT_Version()
	defer C.STT_FreeString(v)
	return C.GoString(v)
}

func (e *Engine) LoadModel(path string) (engine.Model, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var state *C.ModelState
	if code := C.STT_CreateModel(cPath, &state); code != 0 {
		return nil, codeError(code)
	}
	m := &Model{state: state}
	logging.Infof("coqui: loaded model %s (sample rate %d, beam width %d, libstt %s)",
		path, m.SampleRate(), m.BeamWidth(), Version())
	return m, nil
}

func codeError(code C.int) *engine.Error {
	msg := C.STT_ErrorCodeToErrorMessage(code)
	defer C.STT_FreeString(msg)
	return &engine.Error{Code: engine.Code(code), Message: C.GoString(msg)}
}

// Model wraps a ModelState. Tuning calls are serialized; libstt does not
// guard the scorer against concurrent mutation.
type Model struct {
	mu    sync.Mutex
	state *C.ModelState
}

func (m *Model) SampleRate() int {
	return int(C.STT_GetModelSampleRate(m.state))
}

func (m *Model) CreateStream() (engine.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, engine.NewError(engine.CodeNoModel)
	}
	var ss *C.StreamingState
	if code := C.STT_CreateStream(m.state, &ss); code != 0 {
		return nil, codeError(code)
	}
	return &Stream{state: ss}, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		C.STT_FreeModel(m.state)
		m.state = nil
	}
	return nil
}

func (m *Model) BeamWidth() int {
	return int(C.STT_GetModelBeamWidth(m.state))
}

func (m *Model) SetBeamWidth(width int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_SetModelBeamWidth(m.state, C.uint(width)))
}

func (m *Model) EnableExternalScorer(path string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_EnableExternalScorer(m.state, cPath))
}

func (m *Model) DisableExternalScorer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_DisableExternalScorer(m.state))
}

func (m *Model) SetScorerAlphaBeta(alpha, beta float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_SetScorerAlphaBeta(m.state, C.float(alpha), C.float(beta)))
}

func (m *Model) AddHotWord(word string, boost float32) error {
	cWord := C.CString(word)
	defer C.free(unsafe.Pointer(cWord))
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_AddHotWord(m.state, cWord, C.float(boost)))
}

func (m *Model) EraseHotWord(word string) error {
	cWord := C.CString(word)
	defer C.free(unsafe.Pointer(cWord))
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_EraseHotWord(m.state, cWord))
}

func (m *Model) ClearHotWords() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return check(C.STT_ClearHotWords(m.state))
}

func check(code C.int) error {
	if code == 0 {
		return nil
	}
	return codeError(code)
}

// Stream wraps a StreamingState. libstt frees the state itself in
// FinishStream; Discard frees it without decoding.
type Stream struct {
	state *C.StreamingState
}

func (s *Stream) Feed(samples []int16) error {
	if s.state == nil {
		return engine.NewError(engine.CodeFailRunSess)
	}
	if len(samples) == 0 {
		return nil
	}
	C.STT_FeedAudioContent(s.state, (*C.short)(unsafe.Pointer(&samples[0])), C.uint(len(samples)))
	return nil
}

func (s *Stream) IntermediateDecode(numResults int) (engine.Metadata, error) {
	if s.state == nil {
		return engine.Metadata{}, engine.NewError(engine.CodeFailRunSess)
	}
	md := C.STT_IntermediateDecodeWithMetadata(s.state, C.uint(numResults))
	if md == nil {
		return engine.Metadata{}, engine.NewError(engine.CodeFailRunSess)
	}
	defer C.STT_FreeMetadata(md)
	return convertMetadata(md), nil
}

func (s *Stream) Finish(numResults int) (engine.Metadata, error) {
	if s.state == nil {
		return engine.Metadata{}, engine.NewError(engine.CodeFailRunSess)
	}
	md := C.STT_FinishStreamWithMetadata(s.state, C.uint(numResults))
	s.state = nil
	if md == nil {
		return engine.Metadata{}, engine.NewError(engine.CodeFailRunSess)
	}
	defer C.STT_FreeMetadata(md)
	return convertMetadata(md), nil
}

func (s *Stream) Discard() {
	if s.state == nil {
		return
	}
	C.STT_FreeStream(s.state)
	s.state = nil
}

func convertMetadata(md *C.Metadata) engine.Metadata {
	if md.num_transcripts == 0 {
		return engine.Metadata{}
	}
	transcripts := unsafe.Slice(md.transcripts, int(md.num_transcripts))
	out := engine.Metadata{Transcripts: make([]engine.CandidateTranscript, 0, len(transcripts))}
	for _, t := range transcripts {
		candidate := engine.CandidateTranscript{Confidence: float64(t.confidence)}
		if t.num_tokens > 0 {
			tokens := unsafe.Slice(t.tokens, int(t.num_tokens))
			candidate.Tokens = make([]engine.Token, 0, len(tokens))
			for _, tok := range tokens {
				candidate.Tokens = append(candidate.Tokens, engine.Token{
					Text:      C.GoString(tok.text),
					Timestep:  int(tok.timestep),
					StartTime: float32(tok.start_time),
				})
			}
		}
		candidate.Text = engine.TokensText(candidate.Tokens)
		out.Transcripts = append(out.Transcripts, candidate)
	}
	return out
}

func (m *Model) String() string {
	return fmt.Sprintf("coqui.Model(%p)", m.state)
}
