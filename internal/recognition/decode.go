package recognition

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/stream"
)

const DefaultDecodeInterval = 350 * time.Millisecond

// DecodeScheduler 定时做中间解码，每次成功都回调；开启 dedupe 时与上次
// 完全相同（含候选与置信度）的结果不再回调
type DecodeScheduler struct {
	session    *stream.Session
	numResults int
	dedupe     bool
	onPartial  func(engine.Result)
	task       *periodicTask
	log        *logging.Logger

	mu        sync.Mutex
	last      engine.Result
	published bool
}

func NewDecodeScheduler(session *stream.Session, numResults int, interval time.Duration, dedupe bool, onPartial func(engine.Result)) *DecodeScheduler {
	if interval <= 0 {
		interval = DefaultDecodeInterval
	}
	d := &DecodeScheduler{
		session:    session,
		numResults: numResults,
		dedupe:     dedupe,
		onPartial:  onPartial,
		log:        logging.WithSession(session.ID()),
	}
	d.task = newPeriodicTask("DecodeScheduler", interval, d.tick)
	return d
}

func (d *DecodeScheduler) Start(ctx context.Context) {
	d.task.Start(ctx)
}

func (d *DecodeScheduler) Stop() {
	d.task.Stop()
}

// Last returns the most recently published partial.
func (d *DecodeScheduler) Last() engine.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *DecodeScheduler) tick() bool {
	result, err := d.session.IntermediateDecode(d.numResults)
	if err != nil {
		if errors.Is(err, stream.ErrNotActive) {
			return false
		}
		d.log.Warnf("DecodeScheduler: intermediate decode failed: %v", err)
		return true
	}

	d.mu.Lock()
	repeat := d.dedupe && d.published && reflect.DeepEqual(result, d.last)
	if !repeat {
		d.last = result
		d.published = true
	}
	d.mu.Unlock()

	if !repeat && d.onPartial != nil {
		d.onPartial(result)
	}
	return true
}
