// Package enginetest provides a recording in-memory engine for tests.
package enginetest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liuscraft/orion-stt/internal/engine"
)

// Engine hands out a single shared Model.
type Engine struct {
	Model   *Model
	LoadErr error
}

func NewEngine() *Engine {
	return &Engine{Model: NewModel(16000)}
}

func (e *Engine) LoadModel(path string) (engine.Model, error) {
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	e.Model.mu.Lock()
	e.Model.path = path
	e.Model.mu.Unlock()
	return e.Model, nil
}

// Model records every stream it creates. Error fields are consulted on each
// call so tests can inject failures at any point.
type Model struct {
	mu         sync.Mutex
	path       string
	sampleRate int
	streams    []*Stream
	closed     bool

	CreateErr error
	FeedErr   error
	DecodeErr error
	FinishErr error
	// FeedDelay slows every Feed to widen race windows.
	FeedDelay time.Duration

	beamWidth int
	scorer    string
	alpha     float32
	beta      float32
	hotWords  map[string]float32
	tuneCalls []string
}

func NewModel(sampleRate int) *Model {
	return &Model{sampleRate: sampleRate, beamWidth: 500, hotWords: map[string]float32{}}
}

func (m *Model) SampleRate() int { return m.sampleRate }

func (m *Model) CreateStream() (engine.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	s := &Stream{model: m, id: len(m.streams) + 1}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Model) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

func (m *Model) Streams() []*Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Stream(nil), m.streams...)
}

// LastStream returns the most recently created stream or nil.
func (m *Model) LastStream() *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

func (m *Model) errs() (feed, decode, finish error, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FeedErr, m.DecodeErr, m.FinishErr, m.FeedDelay
}

func (m *Model) BeamWidth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beamWidth
}

func (m *Model) SetBeamWidth(width int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beamWidth = width
	m.tuneCalls = append(m.tuneCalls, fmt.Sprintf("beam:%d", width))
	return nil
}

func (m *Model) EnableExternalScorer(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scorer = path
	m.tuneCalls = append(m.tuneCalls, "scorer:"+path)
	return nil
}

func (m *Model) DisableExternalScorer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scorer = ""
	m.tuneCalls = append(m.tuneCalls, "scorer:off")
	return nil
}

func (m *Model) SetScorerAlphaBeta(alpha, beta float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scorer == "" {
		return engine.NewError(engine.CodeScorerNotEnabled)
	}
	m.alpha, m.beta = alpha, beta
	m.tuneCalls = append(m.tuneCalls, fmt.Sprintf("alphabeta:%g/%g", alpha, beta))
	return nil
}

func (m *Model) AddHotWord(word string, boost float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotWords[word] = boost
	m.tuneCalls = append(m.tuneCalls, fmt.Sprintf("hotword:%s=%g", word, boost))
	return nil
}

func (m *Model) EraseHotWord(word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hotWords[word]; !ok {
		return engine.NewError(engine.CodeFailEraseHotWord)
	}
	delete(m.hotWords, word)
	m.tuneCalls = append(m.tuneCalls, "erase:"+word)
	return nil
}

func (m *Model) ClearHotWords() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotWords = map[string]float32{}
	m.tuneCalls = append(m.tuneCalls, "clear")
	return nil
}

// TuneCalls lists tuning calls in the order they were made.
func (m *Model) TuneCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tuneCalls...)
}

// Stream transcribes audio as "<n> samples" where n is the number of
// samples fed so far.
type Stream struct {
	model *Model
	id    int

	mu          sync.Mutex
	fed         []int
	fedSamples  int
	decodes     int
	finishes    int
	discards    int
	released    bool
	useAfterRel int

	inFlight   int32
	concurrent int32
}

func (s *Stream) enter() {
	if atomic.AddInt32(&s.inFlight, 1) > 1 {
		atomic.StoreInt32(&s.concurrent, 1)
	}
}

func (s *Stream) leave() {
	atomic.AddInt32(&s.inFlight, -1)
}

func (s *Stream) Feed(samples []int16) error {
	s.enter()
	defer s.leave()

	feedErr, _, _, delay := s.model.errs()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		s.useAfterRel++
		return engine.NewError(engine.CodeFailRunSess)
	}
	if feedErr != nil {
		return feedErr
	}
	s.fed = append(s.fed, len(samples))
	s.fedSamples += len(samples)
	return nil
}

func (s *Stream) IntermediateDecode(numResults int) (engine.Metadata, error) {
	s.enter()
	defer s.leave()

	_, decodeErr, _, _ := s.model.errs()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		s.useAfterRel++
		return engine.Metadata{}, engine.NewError(engine.CodeFailRunSess)
	}
	s.decodes++
	if decodeErr != nil {
		return engine.Metadata{}, decodeErr
	}
	return s.metadata(numResults), nil
}

func (s *Stream) Finish(numResults int) (engine.Metadata, error) {
	s.enter()
	defer s.leave()

	_, _, finishErr, _ := s.model.errs()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		s.useAfterRel++
		return engine.Metadata{}, engine.NewError(engine.CodeFailRunSess)
	}
	s.finishes++
	s.released = true
	if finishErr != nil {
		return engine.Metadata{}, finishErr
	}
	return s.metadata(numResults), nil
}

func (s *Stream) Discard() {
	s.enter()
	defer s.leave()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		s.useAfterRel++
		return
	}
	s.discards++
	s.released = true
}

func (s *Stream) metadata(numResults int) engine.Metadata {
	if numResults < 1 {
		numResults = 1
	}
	md := engine.Metadata{}
	for i := 0; i < numResults; i++ {
		text := fmt.Sprintf("%d samples", s.fedSamples)
		if i > 0 {
			text = fmt.Sprintf("%s alt%d", text, i)
		}
		md.Transcripts = append(md.Transcripts, engine.CandidateTranscript{
			Text:       text,
			Confidence: -float64(i + 1),
			Tokens: []engine.Token{
				{Text: text, Timestep: s.fedSamples / 320, StartTime: float32(s.fedSamples) / float32(s.model.sampleRate)},
			},
		})
	}
	return md
}

func (s *Stream) ID() int { return s.id }

// FedSamples is the total number of samples accepted by Feed.
func (s *Stream) FedSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fedSamples
}

// FedChunks lists the length of every accepted Feed call.
func (s *Stream) FedChunks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.fed...)
}

func (s *Stream) Decodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decodes
}

func (s *Stream) Finishes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishes
}

func (s *Stream) Discards() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discards
}

// Released reports whether Finish or Discard has run.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// UseAfterRelease counts calls made after the stream was released.
func (s *Stream) UseAfterRelease() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useAfterRel
}

// Concurrent reports whether two calls ever overlapped.
func (s *Stream) Concurrent() bool {
	return atomic.LoadInt32(&s.concurrent) == 1
}
