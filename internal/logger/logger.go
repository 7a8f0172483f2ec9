package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	zapLevels = map[int]zapcore.Level{
		LevelDebug: zapcore.DebugLevel,
		LevelInfo:  zapcore.InfoLevel,
		LevelWarn:  zapcore.WarnLevel,
		LevelError: zapcore.ErrorLevel,
	}

	// Default to INFO in production, DEBUG in development
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	baseMu sync.RWMutex
	base   *zap.Logger
)

// Logger is a component-scoped logger
type Logger struct {
	component string
}

func init() {
	if IsDevelopment() {
		level.SetLevel(zapcore.DebugLevel)
	}
	base = build(IsDevelopment())
}

func build(development bool) *zap.Logger {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	cfg.DisableStacktrace = !development

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: falling back to no-op logger: %v\n", err)
		return zap.NewNop()
	}
	return l
}

// New creates a new logger for a specific component
func New(component string) *Logger {
	return &Logger{component: component}
}

// SetMinLevel allows changing the minimum log level at runtime
func SetMinLevel(l int) {
	if zl, ok := zapLevels[l]; ok {
		level.SetLevel(zl)
	}
}

// Replace swaps the underlying zap logger. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) {
	baseMu.Lock()
	base = l
	baseMu.Unlock()
}

// Configure rebuilds the shared logger for env, once .env and config files
// have been read.
func Configure(env string) {
	development := env == "development"
	if development {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
	Replace(build(development))
}

// Named returns a plain zap logger for callers that log structured fields
// themselves, such as request middleware.
func Named(name string) *zap.Logger {
	return Zap().WithOptions(zap.AddCallerSkip(-2)).Named(name)
}

// Zap returns the shared zap logger, for libraries that want one directly.
func Zap() *zap.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

// Sync flushes buffered entries. Call it before exit.
func Sync() {
	_ = Zap().Sync()
}

func (l *Logger) logf(lvl int, format string, args ...interface{}) {
	s := Zap().Sugar().With("component", l.component)
	switch lvl {
	case LevelDebug:
		s.Debugf(format, args...)
	case LevelInfo:
		s.Infof(format, args...)
	case LevelWarn:
		s.Warnf(format, args...)
	default:
		s.Errorf(format, args...)
	}
}

// Debug logs debug information
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Info logs information messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "development" // Default to development
	}
	return env
}

// IsDevelopment returns true if the current environment is development
func IsDevelopment() bool {
	return GetAppEnv() == "development"
}
