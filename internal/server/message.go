package server

import (
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/recognition"
)

// Outbound message types.
const (
	TypePartial = "partial"
	TypeFinal   = "final"
	TypeError   = "error"
	TypeState   = "state"
)

// Commands accepted from clients.
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

type Token struct {
	Text      string  `json:"text"`
	Timestep  int     `json:"timestep"`
	StartTime float32 `json:"start_time"`
}

type Candidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Tokens     []Token `json:"tokens,omitempty"`
}

// Message is the JSON frame pushed to every connected client.
type Message struct {
	Type       string      `json:"type"`
	SessionID  string      `json:"session_id,omitempty"`
	Text       string      `json:"text,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	State      string      `json:"state,omitempty"`
	Error      string      `json:"error,omitempty"`
	// Code is the engine status code, set for engine failures only.
	Code string `json:"code,omitempty"`
}

type Command struct {
	Type string `json:"type"`
}

func messageFromEvent(e recognition.Event) (Message, bool) {
	switch ev := e.(type) {
	case *recognition.PartialResultEvent:
		return resultMessage(TypePartial, ev.SessionID(), ev.Result), true
	case *recognition.FinalResultEvent:
		return resultMessage(TypeFinal, ev.SessionID(), ev.Result), true
	case *recognition.ErrorEvent:
		return errorMessage(ev.SessionID(), ev.Err), true
	case *recognition.StateChangedEvent:
		return Message{Type: TypeState, SessionID: ev.SessionID(), State: ev.To.String()}, true
	default:
		return Message{}, false
	}
}

func resultMessage(typ, sessionID string, r engine.Result) Message {
	msg := Message{Type: typ, SessionID: sessionID, Text: r.Text}
	for _, c := range r.Candidates {
		cand := Candidate{Text: c.Text, Confidence: c.Confidence}
		for _, t := range c.Tokens {
			cand.Tokens = append(cand.Tokens, Token{Text: t.Text, Timestep: t.Timestep, StartTime: t.StartTime})
		}
		msg.Candidates = append(msg.Candidates, cand)
	}
	return msg
}

func errorMessage(sessionID string, err error) Message {
	msg := Message{Type: TypeError, SessionID: sessionID, Error: err.Error()}
	if code := engine.CodeOf(err); code != engine.CodeOK {
		msg.Code = code.String()
	}
	return msg
}
