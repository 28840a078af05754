// Package logging provides the level-based logger every jiufeng subsystem
// takes at Init. It keeps the teacher's internal/logging shape (a Logger
// type, a package-level default, Debug/Info/Warn/Error plus key-value
// args) but is backed by logrus instead of the standard library's log
// package, following the logging library the rest of the retrieval pack
// (jesseduffield-lazydocker's pkg/log) actually reaches for.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel mirrors spec.md §6's servctl -T levels: none/error/info/debug.
// "data" (level 4) is folded into Debug — the original's finest level
// exists for protocol byte dumps this repo has no equivalent of.
type LogLevel int

const (
	LevelNone LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelNone:
		return logrus.PanicLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Config holds logger construction parameters.
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// DefaultConfig returns level=Info logging to stderr.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo, Output: os.Stderr}
}

// Logger wraps a *logrus.Logger with the level/arg-pair API jiukun,
// clieng, and configmgr all use.
type Logger struct {
	entry *logrus.Logger
}

// NewLogger constructs a Logger from Config, defaulting a nil Config.
func NewLogger(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(cfg.Level.logrusLevel())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return &Logger{entry: l}
}

// SetOutput redirects where this logger writes.
func (l *Logger) SetOutput(w io.Writer) { l.entry.SetOutput(w) }

// SetLevel changes the minimum logged level at runtime.
func (l *Logger) SetLevel(level LogLevel) { l.entry.SetLevel(level.logrusLevel()) }

func fields(args []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *Logger) Debug(msg string, args ...any) { l.entry.WithFields(fields(args)).Debug(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.entry.WithFields(fields(args)).Info(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.entry.WithFields(fields(args)).Warn(msg) }
func (l *Logger) Error(msg string, args ...any) { l.entry.WithFields(fields(args)).Error(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Printf satisfies callers that just want a printf-shaped logger.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Default returns the process-wide default logger, creating it lazily.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Global convenience functions, delegating to Default().
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
