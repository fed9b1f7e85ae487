// Package engine describes the narrow contract between a recognition session
// and the external decoding engine (acoustic model, language model, beam
// search). Implementations live in sub-packages.
package engine

// Engine loads acoustic models.
type Engine interface {
	LoadModel(path string) (Model, error)
}

// Model is a loaded acoustic model. A Model may serve several streams over
// its lifetime but the session layer only ever holds one at a time.
type Model interface {
	// SampleRate is the rate the model expects audio at.
	SampleRate() int
	CreateStream() (Stream, error)
	Close() error
}

// Stream is a single in-flight decoding stream. Implementations need not be
// safe for concurrent use; callers serialize access.
type Stream interface {
	Feed(samples []int16) error
	IntermediateDecode(numResults int) (Metadata, error)
	// Finish computes the final decode and releases the stream. The stream
	// must not be used afterwards.
	Finish(numResults int) (Metadata, error)
	// Discard releases the stream without decoding.
	Discard()
}

// Tuner is implemented by models that expose decoder tuning.
type Tuner interface {
	BeamWidth() int
	SetBeamWidth(width int) error
	EnableExternalScorer(path string) error
	DisableExternalScorer() error
	SetScorerAlphaBeta(alpha, beta float32) error
	AddHotWord(word string, boost float32) error
	EraseHotWord(word string) error
	ClearHotWords() error
}
