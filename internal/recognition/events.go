package recognition

import (
	"time"

	"github.com/liuscraft/orion-stt/internal/engine"
)

type EventType int

const (
	EventTypePartialResult EventType = iota
	EventTypeFinalResult
	EventTypeError
	EventTypeStateChanged
)

func (t EventType) String() string {
	switch t {
	case EventTypePartialResult:
		return "partial"
	case EventTypeFinalResult:
		return "final"
	case EventTypeError:
		return "error"
	case EventTypeStateChanged:
		return "state"
	default:
		return "unknown"
	}
}

type Event interface {
	Type() EventType
	Timestamp() time.Time
	// SessionID identifies the stream session the event belongs to.
	SessionID() string
}

type BaseEvent struct {
	eventType EventType
	timestamp time.Time
	sessionID string
}

func newBaseEvent(t EventType, sessionID string) BaseEvent {
	return BaseEvent{eventType: t, timestamp: time.Now(), sessionID: sessionID}
}

func (e *BaseEvent) Type() EventType {
	return e.eventType
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

func (e *BaseEvent) SessionID() string {
	return e.sessionID
}

// PartialResultEvent 中间识别结果，只在文本变化时发布
type PartialResultEvent struct {
	BaseEvent
	Result engine.Result
}

func NewPartialResultEvent(sessionID string, result engine.Result) *PartialResultEvent {
	return &PartialResultEvent{
		BaseEvent: newBaseEvent(EventTypePartialResult, sessionID),
		Result:    result,
	}
}

// FinalResultEvent 会话结束时的最终结果
type FinalResultEvent struct {
	BaseEvent
	Result engine.Result
}

func NewFinalResultEvent(sessionID string, result engine.Result) *FinalResultEvent {
	return &FinalResultEvent{
		BaseEvent: newBaseEvent(EventTypeFinalResult, sessionID),
		Result:    result,
	}
}

// ErrorEvent 会话失败（转换错误或结束时的引擎错误）
type ErrorEvent struct {
	BaseEvent
	Err error
}

func NewErrorEvent(sessionID string, err error) *ErrorEvent {
	return &ErrorEvent{
		BaseEvent: newBaseEvent(EventTypeError, sessionID),
		Err:       err,
	}
}

// StateChangedEvent 控制器状态变化
type StateChangedEvent struct {
	BaseEvent
	From State
	To   State
}

func NewStateChangedEvent(sessionID string, from, to State) *StateChangedEvent {
	return &StateChangedEvent{
		BaseEvent: newBaseEvent(EventTypeStateChanged, sessionID),
		From:      from,
		To:        to,
	}
}
