// Package server pushes recognition results to websocket clients and lets
// them start, stop and cancel the live session. Audio never travels over
// the socket; it always comes from the local capture device.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/liuscraft/orion-stt/internal/config"
	"github.com/liuscraft/orion-stt/internal/engine"
	"github.com/liuscraft/orion-stt/internal/logging"
	"github.com/liuscraft/orion-stt/internal/recognition"
)

const shutdownTimeout = 5 * time.Second

// Recognizer is the part of recognition.Controller the server drives.
type Recognizer interface {
	Start(ctx context.Context, model engine.Model) error
	Stop() (engine.Result, error)
	Cancel() error
	Events() recognition.EventBus
}

type Server struct {
	cfg      config.ServerConfig
	rec      Recognizer
	model    engine.Model
	hub      *Hub
	upgrader websocket.Upgrader

	mu      sync.Mutex
	baseCtx context.Context
	unsubs  []func()
}

func New(cfg config.ServerConfig, rec Recognizer, model engine.Model) *Server {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	s := &Server{
		cfg:   cfg,
		rec:   rec,
		model: model,
		hub:   NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		baseCtx: context.Background(),
	}
	for _, t := range []recognition.EventType{
		recognition.EventTypePartialResult,
		recognition.EventTypeFinalResult,
		recognition.EventTypeError,
		recognition.EventTypeStateChanged,
	} {
		s.unsubs = append(s.unsubs, rec.Events().Subscribe(t, s.forward))
	}
	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run serves until ctx ends, then shuts the listener down, cancels any live
// session and disconnects every client.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	httpSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Infof("Server: listening on %s%s", s.cfg.Addr, s.cfg.Path)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		_ = s.rec.Cancel()
		s.hub.CloseAll()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// Close detaches the server from the recognizer's events.
func (s *Server) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.hub.CloseAll()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("Server: upgrade failed: %v", err)
		return
	}
	c := newClient(conn, sendBuffer)
	s.hub.Register(c)
	go c.writePump()

	c.readPump(func(cmd Command) { s.handleCommand(c, cmd) })
	s.hub.Unregister(c)
}

func (s *Server) handleCommand(c *Client, cmd Command) {
	logging.Infof("Server: client %s sent %q", c.id, cmd.Type)
	switch cmd.Type {
	case CommandStart:
		if err := s.rec.Start(s.context(), s.model); err != nil {
			c.reply(errorMessage("", err))
		}
	case CommandStop:
		// the final result, or the engine error, arrives as an event
		_, _ = s.rec.Stop()
	case CommandCancel:
		_ = s.rec.Cancel()
	default:
		c.reply(Message{Type: TypeError, Error: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}

func (s *Server) forward(e recognition.Event) {
	msg, ok := messageFromEvent(e)
	if !ok {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.Errorf("Server: encode %s event: %v", e.Type(), err)
		return
	}
	s.hub.Broadcast(payload)
}

func (s *Server) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}
