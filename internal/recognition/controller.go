// Package recognition drives a stream session from live capture: captured
// blocks are converted and queued, a feed scheduler moves them into the
// session, a decode scheduler publishes partial results, and Stop drains
// the tail before finishing.
package recognition

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liuscraft/orion-stt/internal/audio"
	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/errs"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/stream"
)

// ErrAlreadyRunning is returned by Start while a session is in progress.
var ErrAlreadyRunning = errs.New(errs.KindInvalidState, "recognition.start", "recognition already running")

// State 控制器状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

type Config struct {
	// TargetRate 0 表示使用模型采样率
	TargetRate     int
	FrameMs        int
	Mixdown        audio.Mixdown
	QueueCapacity  int
	FeedInterval   time.Duration
	DecodeInterval time.Duration
	NumResults     int
	// DedupePartials 只在中间结果有变化时发布
	DedupePartials bool
	// RecordPath 非空时把送入引擎的音频另存为 WAV
	RecordPath string
}

func DefaultConfig() Config {
	return Config{
		FrameMs:        audio.DefaultFrameMs,
		Mixdown:        audio.MixdownAverage,
		FeedInterval:   DefaultFeedInterval,
		DecodeInterval: DefaultDecodeInterval,
		NumResults:     1,
	}
}

// ConfigFrom maps the application config onto a controller config.
func ConfigFrom(app *config.AppConfig) (Config, error) {
	mix, err := audio.ParseMixdown(app.Pipeline.Mixdown)
	if err != nil {
		return Config{}, err
	}
	return Config{
		TargetRate:     app.Pipeline.TargetSampleRate,
		FrameMs:        app.Pipeline.FrameMs,
		Mixdown:        mix,
		QueueCapacity:  app.Pipeline.QueueCapacity,
		FeedInterval:   time.Duration(app.Pipeline.FeedIntervalMs) * time.Millisecond,
		DecodeInterval: time.Duration(app.Pipeline.DecodeIntervalMs) * time.Millisecond,
		NumResults:     app.Engine.NumResults,
		DedupePartials: app.Pipeline.DedupePartials,
		RecordPath:     app.Pipeline.RecordPath,
	}, nil
}

func (c Config) converterConfig(modelRate int) audio.ConverterConfig {
	rate := c.TargetRate
	if rate <= 0 {
		rate = modelRate
	}
	if rate <= 0 {
		rate = audio.DefaultTargetRate
	}
	frameMs := c.FrameMs
	if frameMs <= 0 {
		frameMs = audio.DefaultFrameMs
	}
	return audio.ConverterConfig{
		TargetRate:   rate,
		FrameSamples: rate * frameMs / 1000,
		Mixdown:      c.Mixdown,
	}
}

// run holds everything owned by one Start..Stop cycle.
type run struct {
	session   *stream.Session
	converter *audio.Converter
	queue     *audio.BufferQueue
	feed      *FeedScheduler
	decode    *DecodeScheduler
	recorder  *audio.WAVWriter
	log       *logging.Logger

	cancel   context.CancelFunc
	stopWait func() bool
	failed   atomic.Bool
}

type Controller struct {
	capture audio.Capture
	cfg     Config
	bus     EventBus

	mu     sync.Mutex
	state  State
	cur    *run
	lastID string

	errMu sync.Mutex
	err   error
}

func NewController(capture audio.Capture, cfg Config) *Controller {
	if cfg.NumResults < 1 {
		cfg.NumResults = 1
	}
	return &Controller{
		capture: capture,
		cfg:     cfg,
		bus:     NewEventBus(),
		state:   StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events exposes the bus every result, error and state change is published on.
func (c *Controller) Events() EventBus {
	return c.bus
}

// Err returns the conversion error that ended the last session, if any.
func (c *Controller) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Controller) OnPartialResult(handler func(engine.Result)) (unsubscribe func()) {
	return c.bus.Subscribe(EventTypePartialResult, func(e Event) {
		handler(e.(*PartialResultEvent).Result)
	})
}

func (c *Controller) OnFinalResult(handler func(engine.Result)) (unsubscribe func()) {
	return c.bus.Subscribe(EventTypeFinalResult, func(e Event) {
		handler(e.(*FinalResultEvent).Result)
	})
}

func (c *Controller) OnError(handler func(error)) (unsubscribe func()) {
	return c.bus.Subscribe(EventTypeError, func(e Event) {
		handler(e.(*ErrorEvent).Err)
	})
}

// Start opens a stream on model, starts both schedulers and then capture.
// Cancelling ctx cancels the session. Engine errors from opening the stream
// are returned unchanged.
func (c *Controller) Start(ctx context.Context, model engine.Model) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.setErr(nil)
	logging.NextSession()

	r, err := c.open(model)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.cur = r
	events := []Event{c.setState(StateRunning)}

	err = c.capture.Start(func(raw []byte, format audio.Format) {
		c.handleBlock(r, raw, format)
	})
	if err != nil {
		c.cur = nil
		events = append(events, c.setState(StateIdle))
	} else {
		r.stopWait = context.AfterFunc(ctx, func() { c.cancelRun(r) })
	}
	c.mu.Unlock()

	if err != nil {
		r.log.Errorf("Controller: start capture failed: %v", err)
		c.teardown(r)
		c.publish(events...)
		return fmt.Errorf("start capture: %w", err)
	}
	c.publish(events...)
	r.log.Infof("Controller: started (target %d Hz, %d samples/frame)", r.converter.TargetRate(), r.converter.FrameSamples())
	return nil
}

// open creates the session and starts its schedulers.
func (c *Controller) open(model engine.Model) (*run, error) {
	session, err := stream.Open(model)
	if err != nil {
		logging.Errorf("Controller: open session failed: %v", err)
		return nil, err
	}

	r := &run{
		session:   session,
		converter: audio.NewConverter(c.cfg.converterConfig(model.SampleRate())),
		queue:     audio.NewBufferQueue(c.cfg.QueueCapacity),
		log:       logging.WithSession(session.ID()),
	}
	if c.cfg.RecordPath != "" {
		rec, err := audio.CreateWAV(c.cfg.RecordPath, r.converter.TargetRate(), 1)
		if err != nil {
			_ = session.Discard()
			return nil, err
		}
		r.recorder = rec
	}
	r.feed = NewFeedScheduler(r.queue, session, c.cfg.FeedInterval, r.record)
	r.decode = NewDecodeScheduler(session, c.cfg.NumResults, c.cfg.DecodeInterval, c.cfg.DedupePartials, func(res engine.Result) {
		c.bus.Publish(NewPartialResultEvent(session.ID(), res))
	})

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.feed.Start(runCtx)
	r.decode.Start(runCtx)
	return r, nil
}

// Stop ends capture, feeds every remaining frame including the converter's
// partial tail, and returns the final result. Calling Stop while idle
// returns an empty result and no error. Stop and Cancel wait for event
// delivery and must not be called from an event handler.
func (c *Controller) Stop() (engine.Result, error) {
	r := c.beginStop(nil)
	if r == nil {
		return engine.Result{}, nil
	}
	r.detach()

	if err := c.capture.Stop(); err != nil {
		r.log.Warnf("Controller: stop capture: %v", err)
	}
	r.feed.Stop()
	r.decode.Stop()

	drained := r.feed.Drain()
	tail, _ := r.feed.FeedFrames(r.converter.Flush())
	r.log.Debugf("Controller: drained %d queued frames and %d tail frames", drained, tail)

	result, err := r.session.Finish(c.cfg.NumResults)
	r.release()
	if err != nil {
		c.bus.Publish(NewErrorEvent(r.session.ID(), err))
	} else {
		c.bus.Publish(NewFinalResultEvent(r.session.ID(), result))
	}
	c.finishStop()
	c.bus.Wait()
	return result, err
}

// Cancel discards the session without a final result. Calling it while
// idle is a no-op.
func (c *Controller) Cancel() error {
	c.cancelRun(nil)
	return nil
}

func (c *Controller) cancelRun(target *run) {
	r := c.beginStop(target)
	if r == nil {
		return
	}
	r.detach()
	if err := c.capture.Stop(); err != nil {
		r.log.Warnf("Controller: stop capture: %v", err)
	}
	c.teardown(r)
	c.finishStop()
	c.bus.Wait()
}

// beginStop moves Running to Stopping and hands back the active run. When
// target is non-nil it only applies to that run.
func (c *Controller) beginStop(target *run) *run {
	c.mu.Lock()
	if c.state != StateRunning || (target != nil && c.cur != target) {
		c.mu.Unlock()
		return nil
	}
	r := c.cur
	event := c.setState(StateStopping)
	c.mu.Unlock()

	c.publish(event)
	return r
}

func (c *Controller) finishStop() {
	c.mu.Lock()
	c.cur = nil
	event := c.setState(StateIdle)
	c.mu.Unlock()

	c.publish(event)
}

// teardown stops the schedulers and releases the stream without decoding.
// Capture must already be stopped.
func (c *Controller) teardown(r *run) {
	r.feed.Stop()
	r.decode.Stop()
	dropped := r.queue.Clear()
	r.converter.Reset()
	_ = r.session.Discard()
	r.release()
	r.log.Infof("Controller: cancelled, dropped %d queued frames", dropped)
}

func (c *Controller) handleBlock(r *run, raw []byte, format audio.Format) {
	if r.failed.Load() {
		return
	}
	frames, err := r.converter.Convert(raw, format)
	if err != nil {
		if r.failed.CompareAndSwap(false, true) {
			r.log.Errorf("Controller: conversion failed, cancelling session: %v", err)
			c.setErr(err)
			c.bus.Publish(NewErrorEvent(r.session.ID(), err))
			go c.cancelRun(r)
		}
		return
	}
	for _, frame := range frames {
		if err := r.queue.Push(frame); err != nil {
			r.log.Warnf("Controller: dropping frame %d: %v", frame.Sequence(), err)
		}
	}
}

// setState must be called with c.mu held. The returned event is published
// by the caller after unlocking so handlers may query the controller.
func (c *Controller) setState(to State) Event {
	from := c.state
	if from == to {
		return nil
	}
	c.state = to
	id := c.lastID
	if c.cur != nil {
		id = c.cur.session.ID()
		c.lastID = id
	}
	logging.Debugf("Controller: %s -> %s", from, to)
	return NewStateChangedEvent(id, from, to)
}

func (c *Controller) publish(events ...Event) {
	for _, e := range events {
		if e != nil {
			c.bus.Publish(e)
		}
	}
}

func (c *Controller) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.err = err
}

func (r *run) record(frame audio.Frame) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.WriteSamples(frame.Samples()); err != nil {
		r.log.Warnf("Controller: record frame %d: %v", frame.Sequence(), err)
	}
}

// detach stops watching the caller's context.
func (r *run) detach() {
	if r.stopWait != nil {
		r.stopWait()
	}
}

func (r *run) release() {
	r.cancel()
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			r.log.Warnf("Controller: close recording: %v", err)
		}
	}
}
