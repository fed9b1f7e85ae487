package recognition

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/stream"
)

const DefaultFeedInterval = 120 * time.Millisecond

// FeedScheduler 定时把队列中的帧按顺序喂给会话
//
// 会话不再活跃时自行停止；其它喂入错误只记录日志，不中断后续帧。
type FeedScheduler struct {
	queue   *audio.BufferQueue
	session *stream.Session
	onFed   func(audio.Frame)
	task    *periodicTask
	log     *logging.Logger

	fed    atomic.Int64
	failed atomic.Int64
}

// NewFeedScheduler creates a scheduler for session. onFed, when non-nil, is
// called with every frame the engine accepted, on the feeding goroutine.
func NewFeedScheduler(queue *audio.BufferQueue, session *stream.Session, interval time.Duration, onFed func(audio.Frame)) *FeedScheduler {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	f := &FeedScheduler{
		queue:   queue,
		session: session,
		onFed:   onFed,
		log:     logging.WithSession(session.ID()),
	}
	f.task = newPeriodicTask("FeedScheduler", interval, f.tick)
	return f
}

func (f *FeedScheduler) Start(ctx context.Context) {
	f.task.Start(ctx)
}

// Stop halts the scheduler and waits for an in-flight batch to finish.
func (f *FeedScheduler) Stop() {
	f.task.Stop()
}

// Drain feeds everything currently queued on the calling goroutine. It must
// not run concurrently with the scheduler.
func (f *FeedScheduler) Drain() int {
	n, _ := f.FeedFrames(f.queue.PopAll())
	return n
}

// FeedFrames feeds frames in order and returns how many the engine accepted.
// ok is false when the session stopped accepting audio.
func (f *FeedScheduler) FeedFrames(frames []audio.Frame) (n int, ok bool) {
	for _, frame := range frames {
		if err := f.session.Feed(frame); err != nil {
			if errors.Is(err, stream.ErrNotActive) {
				f.log.Debugf("FeedScheduler: session no longer active, dropping %d frames", len(frames)-n)
				return n, false
			}
			f.failed.Add(1)
			f.log.Warnf("FeedScheduler: feed frame %d failed: %v", frame.Sequence(), err)
			continue
		}
		n++
		f.fed.Add(1)
		if f.onFed != nil {
			f.onFed(frame)
		}
	}
	return n, true
}

// Fed is the number of frames accepted by the engine.
func (f *FeedScheduler) Fed() int64 {
	return f.fed.Load()
}

func (f *FeedScheduler) Failed() int64 {
	return f.failed.Load()
}

func (f *FeedScheduler) tick() bool {
	frames := f.queue.PopAll()
	if len(frames) == 0 {
		return f.session.State() == stream.StateActive
	}
	_, ok := f.FeedFrames(frames)
	return ok
}
