package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Logger is the component-tagged printf logger every package writes through.
type Logger interface {
	Tracef(component string, format string, args ...interface{})
	Infof(component string, format string, args ...interface{})
	Warnf(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type Level int

const (
	LevelTrace Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "OFF"
}

type NoopLogger struct{}

func (NoopLogger) Tracef(component, format string, args ...interface{}) {}
func (NoopLogger) Infof(component, format string, args ...interface{})  {}
func (NoopLogger) Warnf(component, format string, args ...interface{})  {}
func (NoopLogger) Errorf(component, format string, args ...interface{}) {}

// FileLogger writes "timestamp [LEVEL] component: message" lines to w.
// Levels are colourised when w is a terminal.
type FileLogger struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	now   func() time.Time
}

func NewFileLogger(w io.Writer) *FileLogger {
	l := &FileLogger{w: w, now: time.Now}
	if f, ok := w.(*os.File); ok {
		l.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return l
}

func (l *FileLogger) Tracef(component string, format string, args ...interface{}) {
	l.write(LevelTrace, component, format, args...)
}
func (l *FileLogger) Infof(component string, format string, args ...interface{}) {
	l.write(LevelInfo, component, format, args...)
}
func (l *FileLogger) Warnf(component string, format string, args ...interface{}) {
	l.write(LevelWarn, component, format, args...)
}
func (l *FileLogger) Errorf(component string, format string, args ...interface{}) {
	l.write(LevelError, component, format, args...)
}

var levelColors = map[Level]string{
	LevelTrace: "\x1b[90m",
	LevelInfo:  "\x1b[36m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

func (l *FileLogger) write(level Level, component, format string, args ...interface{}) {
	timestamp := l.now().Format(time.RFC3339)
	tag := "[" + level.String() + "]"
	if l.color {
		tag = levelColors[level] + tag + "\x1b[0m"
	}
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	_, _ = io.WriteString(l.w, timestamp+" "+tag+" "+component+": "+msg+"\n")
	l.mu.Unlock()
}

// Filter drops everything below Min before handing it to Next.
type Filter struct {
	Next Logger
	Min  Level
}

// NewFilter maps the -v / -q command line switches to a minimum level.
func NewFilter(next Logger, verbose, quiet bool) Filter {
	min := LevelInfo
	if verbose {
		min = LevelTrace
	}
	if quiet {
		min = LevelOff
	}
	return Filter{Next: next, Min: min}
}

func (f Filter) Tracef(component, format string, args ...interface{}) {
	if f.Min <= LevelTrace {
		f.Next.Tracef(component, format, args...)
	}
}
func (f Filter) Infof(component, format string, args ...interface{}) {
	if f.Min <= LevelInfo {
		f.Next.Infof(component, format, args...)
	}
}
func (f Filter) Warnf(component, format string, args ...interface{}) {
	if f.Min <= LevelWarn {
		f.Next.Warnf(component, format, args...)
	}
}
func (f Filter) Errorf(component, format string, args ...interface{}) {
	if f.Min <= LevelError {
		f.Next.Errorf(component, format, args...)
	}
}

// Multi broadcasts every message to all loggers in order.
type Multi []Logger

func (m Multi) Tracef(component, format string, args ...interface{}) {
	for _, l := range m {
		l.Tracef(component, format, args...)
	}
}
func (m Multi) Infof(component, format string, args ...interface{}) {
	for _, l := range m {
		l.Infof(component, format, args...)
	}
}
func (m Multi) Warnf(component, format string, args ...interface{}) {
	for _, l := range m {
		l.Warnf(component, format, args...)
	}
}
func (m Multi) Errorf(component, format string, args ...interface{}) {
	for _, l := range m {
		l.Errorf(component, format, args...)
	}
}

// OrNoop returns l, or a NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

// Setup builds the logger of a binary. Without a path everything goes to
// stderr. With one, the file gets the full log and stderr only errors.
// The returned close func is never nil.
func Setup(path string, verbose, quiet bool) (Logger, func() error, error) {
	stderr := NewFileLogger(os.Stderr)
	if path == "" {
		return NewFilter(stderr, verbose, quiet), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return NewFilter(stderr, verbose, quiet), func() error { return nil }, fmt.Errorf("open log file: %w", err)
	}
	console := Filter{Next: stderr, Min: LevelError}
	if quiet {
		console.Min = LevelOff
	}
	return Multi{NewFilter(NewFileLogger(f), verbose, false), console}, f.Close, nil
}
