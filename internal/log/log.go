// Package log provides the process-wide structured logger.
package log

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures Init.
type LogConfig struct {
	// Path enables a rotating JSON log file in addition to stderr.
	Path  string
	Level string
}

type ctxFieldsKey struct{}

var (
	mu      sync.RWMutex
	logger  = zap.NewNop().Sugar()
	level   = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	closers []func() error
)

// Init installs a console logger on stderr and, when cfg.Path is set, a
// rotating file logger.
func Init(cfg *LogConfig) error {
	if cfg == nil {
		cfg = &LogConfig{}
	}
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !isTerminal(os.Stderr) {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	var fileCloser func() error
	if path := strings.TrimSpace(cfg.Path); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.TimeKey = "ts"
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), level))
		fileCloser = rotator.Close
	}

	l := zap.New(zapcore.NewTee(cores...))
	mu.Lock()
	logger = l.Sugar()
	closers = closers[:0]
	closers = append(closers, l.Sync)
	if fileCloser != nil {
		closers = append(closers, fileCloser)
	}
	mu.Unlock()
	return nil
}

// ParseLevel accepts debug, info, warn and error. Empty means warn.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zapcore.WarnLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.WarnLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

// ReplaceLogger installs l, mainly for tests.
func ReplaceLogger(l *zap.Logger) {
	if l == nil {
		panic("log: nil logger provided")
	}
	mu.Lock()
	logger = l.Sugar()
	mu.Unlock()
}

// Close flushes the logger and closes the log file. Later log calls are
// dropped until the next Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range closers {
		// Best-effort flush; stderr sync fails on some terminals.
		_ = c()
	}
	closers = nil
	logger = zap.NewNop().Sugar()
}

// With returns a context whose log lines carry the given key/value pairs.
func With(ctx context.Context, keysAndValues ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	prev, _ := ctx.Value(ctxFieldsKey{}).([]any)
	fields := append(append([]any(nil), prev...), keysAndValues...)
	return context.WithValue(ctx, ctxFieldsKey{}, fields)
}

func from(ctx context.Context) *zap.SugaredLogger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if ctx == nil {
		return l
	}
	if fields, ok := ctx.Value(ctxFieldsKey{}).([]any); ok && len(fields) > 0 {
		return l.With(fields...)
	}
	return l
}

// Debugf logs at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	from(ctx).Debugf(format, args...)
}

// Infof logs at info level.
func Infof(ctx context.Context, format string, args ...any) {
	from(ctx).Infof(format, args...)
}

// Warnf logs at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	from(ctx).Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	from(ctx).Errorf(format, args...)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
