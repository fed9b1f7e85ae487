package recognition

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/engine/enginetest"
	"github.com/liuscraft/orion-stt/internal/stream"
)

func openSession(t *testing.T, model *enginetest.Model) *stream.Session {
	t.Helper()
	s, err := stream.Open(model)
	if err != nil {
		t.Fatalf("stream.Open() error = %v", err)
	}
	return s
}

func TestFeedSchedulerFeedsInOrder(t *testing.T) {
	model := enginetest.NewModel(16000)
	session := openSession(t, model)
	queue := audio.NewBufferQueue(0)

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	feed := NewFeedScheduler(queue, session, time.Millisecond, func(f audio.Frame) {
		mu.Lock()
		seqs = append(seqs, f.Sequence())
		mu.Unlock()
	})
	feed.Start(context.Background())

	for seq := uint64(1); seq <= 50; seq++ {
		if err := queue.Push(audio.NewFrame(make([]int16, 16), 16000, seq)); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
	}
	waitFor(t, "all frames fed", func() bool { return feed.Fed() == 50 })
	feed.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("frames fed out of order: %v", seqs)
		}
	}
	if _, err := session.Finish(1); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
}

func TestFeedSchedulerStopsWhenSessionEnds(t *testing.T) {
	model := enginetest.NewModel(16000)
	session := openSession(t, model)
	queue := audio.NewBufferQueue(0)

	feed := NewFeedScheduler(queue, session, time.Millisecond, nil)
	if _, err := session.Finish(1); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	_ = queue.Push(audio.NewFrame(make([]int16, 16), 16000, 1))

	feed.Start(context.Background())
	waitFor(t, "queue to be consumed", func() bool { return queue.Len() == 0 })
	feed.Stop()

	if feed.Fed() != 0 || feed.Failed() != 0 {
		t.Fatalf("finished session should stop the scheduler quietly, fed %d failed %d", feed.Fed(), feed.Failed())
	}
	if model.LastStream().UseAfterRelease() != 0 {
		t.Fatal("scheduler reached a released stream")
	}
}

func TestFeedSchedulerContinuesAfterEngineError(t *testing.T) {
	model := enginetest.NewModel(16000)
	session := openSession(t, model)
	feed := NewFeedScheduler(audio.NewBufferQueue(0), session, time.Hour, nil)

	model.FeedErr = engine.NewError(engine.CodeFailRunSess)
	frames := []audio.Frame{
		audio.NewFrame(make([]int16, 16), 16000, 1),
		audio.NewFrame(make([]int16, 16), 16000, 2),
	}
	n, ok := feed.FeedFrames(frames)
	if n != 0 || !ok || feed.Failed() != 2 {
		t.Fatalf("FeedFrames() = %d, %v (failed %d)", n, ok, feed.Failed())
	}

	model.FeedErr = nil
	n, ok = feed.FeedFrames([]audio.Frame{audio.NewFrame(make([]int16, 16), 16000, 3)})
	if n != 1 || !ok {
		t.Fatalf("expected feeding to resume, got %d, %v", n, ok)
	}
	_ = session.Discard()
}

// collectPartials returns a callback recording partial texts and a reader.
func collectPartials() (func(engine.Result), func() []string) {
	var (
		mu       sync.Mutex
		partials []string
	)
	record := func(r engine.Result) {
		mu.Lock()
		partials = append(partials, r.Text)
		mu.Unlock()
	}
	read := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), partials...)
	}
	return record, read
}

func TestDecodeSchedulerPublishesEveryTick(t *testing.T) {
	model := enginetest.NewModel(16000)
	session := openSession(t, model)
	record, partials := collectPartials()
	decode := NewDecodeScheduler(session, 1, time.Hour, false, record)

	decode.tick()
	model.DecodeErr = engine.NewError(engine.CodeFailRunSess)
	if !decode.tick() {
		t.Fatal("engine errors must not stop the scheduler")
	}
	model.DecodeErr = nil
	_ = session.Feed(audio.NewFrame(make([]int16, 320), 16000, 1))
	decode.tick()
	decode.tick()
	if decode.Last().Text != "320 samples" {
		t.Fatalf("unexpected last partial %q", decode.Last().Text)
	}

	_ = session.Discard()
	if decode.tick() {
		t.Fatal("scheduler should stop once the session is no longer active")
	}

	want := []string{"0 samples", "320 samples", "320 samples"}
	got := partials()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDecodeSchedulerDedupeSkipsIdenticalResults(t *testing.T) {
	model := enginetest.NewModel(16000)
	session := openSession(t, model)
	record, partials := collectPartials()
	decode := NewDecodeScheduler(session, 2, time.Hour, true, record)

	decode.tick()
	decode.tick()
	_ = session.Feed(audio.NewFrame(make([]int16, 320), 16000, 1))
	decode.tick()
	decode.tick()
	_ = session.Discard()

	want := []string{"0 samples", "320 samples"}
	got := partials()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if last := decode.Last(); len(last.Candidates) != 2 || last.Candidates[1].Text != "320 samples alt1" {
		t.Fatalf("expected both candidates kept, got %+v", last)
	}
}
