package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "error with cause",
			err:      Wrap(KindIO, "audio.read_file", "open failed", errors.New("file not found")),
			contains: []string{"[io:audio.read_file]", "open failed", "file not found"},
		},
		{
			name:     "error without cause",
			err:      New(KindInvalidState, "stream.feed", "stream is not active"),
			contains: []string{"[invalid_state:stream.feed]", "stream is not active"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindIO, "op", "msg", nil) != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
}

func TestIsMatchesSentinelByKindAndMessage(t *testing.T) {
	anyInvalid := New(KindInvalidState, "", "")
	notActive := New(KindInvalidState, "", "stream is not active")

	err := fmt.Errorf("tick: %w", New(KindInvalidState, "stream.feed", "stream is not active"))
	if !errors.Is(err, anyInvalid) {
		t.Fatal("expected kind-only sentinel to match")
	}
	if !errors.Is(err, notActive) {
		t.Fatal("expected message sentinel to match")
	}

	other := New(KindInvalidState, "stream.feed", "frame out of order")
	if errors.Is(other, notActive) {
		t.Fatal("different message should not match")
	}
	if errors.Is(New(KindIO, "x", "stream is not active"), anyInvalid) {
		t.Fatal("different kind should not match")
	}
}

func TestIsKind(t *testing.T) {
	cause := New(KindConversion, "audio.convert", "unsupported encoding")
	wrapped := fmt.Errorf("session failed: %w", cause)

	if !IsKind(wrapped, KindConversion) {
		t.Fatal("expected conversion kind in chain")
	}
	if IsKind(wrapped, KindIO) {
		t.Fatal("did not expect io kind")
	}
	if IsKind(errors.New("plain"), KindIO) {
		t.Fatal("plain errors carry no kind")
	}

	nested := Wrap(KindIO, "batch.file", "transcribe failed", cause)
	if !IsKind(nested, KindConversion) || !IsKind(nested, KindIO) {
		t.Fatal("expected both kinds along the chain")
	}
}
