package logging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const unknownTrace = "trace-unknown"

type Config struct {
	Level  string
	Format string // console | json
}

// 日志器在 Init 时整体替换，采集、调度和服务协程并发读取
var (
	current    atomic.Pointer[zap.Logger]
	traceID    atomic.Value
	sessionSeq atomic.Uint64
)

func init() {
	current.Store(zap.NewNop())
}

// InitFromEnv configures logging from LOG_LEVEL and LOG_FORMAT.
func InitFromEnv() error {
	return Init(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(s))
		if err != nil {
			return fmt.Errorf("invalid log level %q", cfg.Level)
		}
		level = parsed
	}

	var zapCfg zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	current.Store(logger)
	return nil
}

func Sync() {
	_ = current.Load().Sync()
}

// SetTraceID tags every later entry with id. Blank ids are ignored.
func SetTraceID(id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	traceID.Store(id)
}

func NewTraceID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return unknownTrace
	}
	return hex.EncodeToString(buf)
}

// NextSession bumps the process-wide session counter that appears as
// session_seq on every entry.
func NextSession() uint64 {
	return sessionSeq.Add(1)
}

func Debugf(format string, args ...interface{}) { sugared().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { sugared().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sugared().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { sugared().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { sugared().Fatalf(format, args...) }

// Logger carries a session_id on every entry. It keeps the logger that was
// current when it was created.
type Logger struct {
	s *zap.SugaredLogger
}

func WithSession(id string) *Logger {
	return &Logger{s: sugared().With("session_id", id)}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

func sugared() *zap.SugaredLogger {
	tid, _ := traceID.Load().(string)
	if tid == "" {
		tid = unknownTrace
	}
	seq := sessionSeq.Load()
	return current.Load().Sugar().With(
		"trace_id", tid,
		"session_seq", seq,
		"log_id", fmt.Sprintf("%s-%d", tid, seq),
	)
}
