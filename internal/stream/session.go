// Package stream owns the lifecycle of a single engine decoding stream.
//
// A Session moves Uninitialized -> Active -> Finished exactly once. Every
// call into the engine stream is made under the session mutex, so callers on
// different goroutines never reach the engine concurrently, and the handle
// is released exactly once on every path.
package stream

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/errs"
	"github.com/liuscraft/orion-stt/internal/logging"
)

var (
	// ErrInvalidState matches every operation attempted in the wrong state.
	ErrInvalidState = errs.New(errs.KindInvalidState, "", "")
	// ErrNotActive is returned by Feed and IntermediateDecode outside Active.
	ErrNotActive = errs.New(errs.KindInvalidState, "", "stream is not active")
	// ErrFrameOrder rejects frames whose sequence does not advance.
	ErrFrameOrder = errors.New("frame out of order")
)

type Session struct {
	id  string
	log *logging.Logger

	mu      sync.Mutex
	state   State
	handle  engine.Stream
	lastSeq uint64
	samples int64
	frames  int64
}

func New() *Session {
	id := uuid.NewString()
	return &Session{
		id:    id,
		log:   logging.WithSession(id),
		state: StateUninitialized,
	}
}

// Open creates a session and its engine stream in one step.
func Open(model engine.Model) (*Session, error) {
	s := New()
	if err := s.Create(model); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FedSamples is the number of samples accepted by the engine so far.
func (s *Session) FedSamples() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

func (s *Session) FedFrames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Create asks the engine for a stream. On failure the engine error is
// returned unchanged and the session ends in Finished with nothing to
// release.
func (s *Session) Create(model engine.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return s.invalid("create")
	}
	if model == nil {
		s.transition(StateFinished)
		return engine.NewError(engine.CodeNoModel)
	}

	handle, err := model.CreateStream()
	if err != nil {
		s.transition(StateFinished)
		s.log.Errorf("Session: create stream failed: %v", err)
		return err
	}
	s.handle = handle
	s.transition(StateActive)
	s.log.Infof("Session: stream created")
	return nil
}

// Feed passes one frame to the engine. Sequenced frames must arrive in
// strictly increasing order; sequence 0 marks an unsequenced frame.
func (s *Session) Feed(frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return s.notActive("feed")
	}
	if seq := frame.Sequence(); seq != 0 {
		if seq <= s.lastSeq {
			return fmt.Errorf("feed frame %d after %d: %w", seq, s.lastSeq, ErrFrameOrder)
		}
		s.lastSeq = seq
	}
	if err := s.handle.Feed(frame.Samples()); err != nil {
		return err
	}
	s.samples += int64(frame.Len())
	s.frames++
	return nil
}

// IntermediateDecode returns the current best guess without ending the
// stream. numResults below 1 is treated as 1.
func (s *Session) IntermediateDecode(numResults int) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return engine.Result{}, s.notActive("intermediate decode")
	}
	md, err := s.handle.IntermediateDecode(clampResults(numResults))
	if err != nil {
		return engine.Result{}, err
	}
	return engine.NewResult(md), nil
}

// Finish computes the final transcript and releases the stream. The handle
// is released even when the engine reports an error.
func (s *Session) Finish(numResults int) (engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return engine.Result{}, s.invalid("finish")
	}
	handle := s.handle
	s.handle = nil
	s.transition(StateFinished)

	md, err := handle.Finish(clampResults(numResults))
	if err != nil {
		s.log.Errorf("Session: finish failed: %v", err)
		return engine.Result{}, err
	}
	result := engine.NewResult(md)
	s.log.Infof("Session: finished after %d frames (%d samples): %q", s.frames, s.samples, result.Text)
	return result, nil
}

// Discard releases the stream without decoding. It is a no-op once the
// session has finished.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateFinished:
		return nil
	case StateActive:
		s.handle.Discard()
		s.handle = nil
		s.log.Infof("Session: discarded after %d frames", s.frames)
	}
	s.transition(StateFinished)
	return nil
}

func (s *Session) transition(to State) {
	if !CanTransition(s.state, to) {
		// unreachable through the public API
		panic(fmt.Sprintf("stream: illegal transition %s -> %s", s.state, to))
	}
	s.state = to
}

func (s *Session) invalid(op string) error {
	return errs.Newf(errs.KindInvalidState, "stream."+op, "cannot %s in state %s", op, s.state)
}

func (s *Session) notActive(op string) error {
	return &errs.Error{
		Kind:    errs.KindInvalidState,
		Op:      "stream." + op,
		Message: ErrNotActive.Message,
		Cause:   fmt.Errorf("state %s", s.state),
	}
}

func clampResults(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
