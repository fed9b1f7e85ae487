package engine

import (
	"errors"
	"fmt"
)

// Code is a status reported by the decoding engine.
type Code int

const (
	CodeOK Code = 0x0000

	CodeNoModel Code = 0x1000

	CodeInvalidAlphabet       Code = 0x2000
	CodeInvalidShape          Code = 0x2001
	CodeInvalidScorer         Code = 0x2002
	CodeModelIncompatible     Code = 0x2003
	CodeScorerNotEnabled      Code = 0x2004
	CodeScorerUnreadable      Code = 0x2005
	CodeScorerInvalidLM       Code = 0x2006
	CodeScorerNoTrie          Code = 0x2007
	CodeScorerInvalidTrie     Code = 0x2008
	CodeScorerVersionMismatch Code = 0x2009

	CodeFailInitMmap      Code = 0x3000
	CodeFailInitSess      Code = 0x3001
	CodeFailInterpreter   Code = 0x3002
	CodeFailRunSess       Code = 0x3003
	CodeFailCreateStream  Code = 0x3004
	CodeFailReadProtobuf  Code = 0x3005
	CodeFailCreateSess    Code = 0x3006
	CodeFailCreateModel   Code = 0x3007
	CodeFailInsertHotWord Code = 0x3008
	CodeFailClearHotWord  Code = 0x3009
	CodeFailEraseHotWord  Code = 0x3010
)

var codeMessages = map[Code]string{
	CodeOK:                    "No error.",
	CodeNoModel:               "Missing model information.",
	CodeInvalidAlphabet:       "Invalid alphabet embedded in model. (Data corruption?)",
	CodeInvalidShape:          "Invalid model shape.",
	CodeInvalidScorer:         "Invalid scorer file.",
	CodeModelIncompatible:     "Incompatible model.",
	CodeScorerNotEnabled:      "External scorer is not enabled.",
	CodeScorerUnreadable:      "Could not read scorer file.",
	CodeScorerInvalidLM:       "Could not recognize language model header in scorer.",
	CodeScorerNoTrie:          "Reached end of scorer file before loading vocabulary trie.",
	CodeScorerInvalidTrie:     "Invalid magic in trie header.",
	CodeScorerVersionMismatch: "Scorer file version does not match expected version.",
	CodeFailInitMmap:          "Failed to initialize memory mapped model.",
	CodeFailInitSess:          "Failed to initialize the session.",
	CodeFailInterpreter:       "Interpreter failed.",
	CodeFailRunSess:           "Failed to run the session.",
	CodeFailCreateStream:      "Error creating the stream.",
	CodeFailReadProtobuf:      "Error reading the proto buffer model file.",
	CodeFailCreateSess:        "Failed to create session.",
	CodeFailCreateModel:       "Could not allocate model state.",
	CodeFailInsertHotWord:     "Could not insert hot-word.",
	CodeFailClearHotWord:      "Could not clear hot-words.",
	CodeFailEraseHotWord:      "Could not erase hot-word.",
}

// Message returns the engine's canonical description of c.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error 0x%04X.", int(c))
}

func (c Code) String() string {
	return fmt.Sprintf("0x%04X", int(c))
}

// Error is a failure reported by the engine. The code and message are
// carried verbatim and never retried.
type Error struct {
	Code    Code
	Message string
}

func NewError(code Code) *Error {
	return &Error{Code: code, Message: code.Message()}
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine error %s: %s", e.Code, e.Message)
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the engine code from err, or CodeOK if err does not wrap
// an engine error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeOK
}
