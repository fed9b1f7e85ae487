package recognition

import (
	"context"
	"sync"
	"time"

	"github.com/liuscraft/orion-stt/internal/logging"
)

// periodicTask runs tick every interval on its own goroutine until the
// context ends, Stop is called, or tick returns false.
type periodicTask struct {
	name     string
	interval time.Duration
	tick     func() bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPeriodicTask(name string, interval time.Duration, tick func() bool) *periodicTask {
	return &periodicTask{name: name, interval: interval, tick: tick}
}

func (t *periodicTask) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
}

// Stop cancels the task and waits for an in-flight tick to return.
func (t *periodicTask) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *periodicTask) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	logging.Debugf("%s: started (interval %v)", t.name, t.interval)
	for {
		select {
		case <-ctx.Done():
			logging.Debugf("%s: stopped", t.name)
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		if !t.tick() {
			logging.Debugf("%s: stopped itself", t.name)
			return
		}
	}
}
