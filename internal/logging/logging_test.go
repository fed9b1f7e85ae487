package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	prev := current.Load()
	current.Store(zap.New(core))
	traceID.Store("")
	sessionSeq.Store(0)
	t.Cleanup(func() { current.Store(prev) })
	return recorded
}

func contextFields(entry observer.LoggedEntry) map[string]interface{} {
	fields := map[string]interface{}{}
	for _, field := range entry.Context {
		fields[field.Key] = field.Interface
		if field.Type == zapcore.StringType {
			fields[field.Key] = field.String
		}
		if field.Type == zapcore.Uint64Type || field.Type == zapcore.Int64Type {
			fields[field.Key] = field.Integer
		}
	}
	return fields
}

func TestNextSessionAddsLogFields(t *testing.T) {
	recorded := observe(t)

	SetTraceID("trace-123")
	NextSession()
	Infof("hello")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}

	fields := contextFields(logs[0])
	if fields["trace_id"] != "trace-123" {
		t.Fatalf("expected trace_id to be trace-123, got %v", fields["trace_id"])
	}
	if fields["session_seq"] != int64(1) {
		t.Fatalf("expected session_seq to be 1, got %v", fields["session_seq"])
	}
	if fields["log_id"] != "trace-123-1" {
		t.Fatalf("expected log_id to be trace-123-1, got %v", fields["log_id"])
	}
}

func TestWithSessionTagsEntries(t *testing.T) {
	recorded := observe(t)

	SetTraceID("trace-abc")
	WithSession("sess-1").Warnf("queue full, dropped %d", 3)

	logs := recorded.FilterField(zap.String("session_id", "sess-1")).All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 session entry, got %d", len(logs))
	}
	if logs[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", logs[0].Level)
	}
	if logs[0].Message != "queue full, dropped 3" {
		t.Fatalf("unexpected message %q", logs[0].Message)
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	prev := current.Load()
	defer current.Store(prev)

	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
