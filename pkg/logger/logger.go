package logger

import (
	"log"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// Scope identifies which client subsystem emitted a log message.
type Scope int

const (
	None Scope = iota
	HTTP
	WS
	Track
	Agent
)

var scopePrefixes = map[Scope]string{
	None:  "",
	HTTP:  "[HTTP]  ",
	WS:    "[WS]    ",
	Track: "[TRACK] ",
	Agent: "[AGENT] ",
}

var colors = map[Scope]color.Attribute{
	None:  color.FgWhite,
	HTTP:  color.FgHiGreen,
	WS:    color.FgYellow,
	Track: color.FgHiBlue,
	Agent: color.FgMagenta,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithScope(scope Scope, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithScope(scope Scope, format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithScope(scope Scope, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithScope(scope Scope, format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) InfoWithScope(_ Scope, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) ErrorWithScope(_ Scope, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) DebugWithScope(_ Scope, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) NoticeWithScope(_ Scope, _ string, _ ...interface{}) {
}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, scope prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, scope Scope, format string) string {
	scopePrefix := scopePrefixes[scope]
	if l.enableColoring {
		scopePrefix = color.New(colors[scope]).Sprint(scopePrefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + scopePrefix + format
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.InfoWithScope(None, format, args...)
}

func (l *StdLogger) InfoWithScope(scope Scope, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, scope, format), args...)
	}
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.ErrorWithScope(None, format, args...)
}

func (l *StdLogger) ErrorWithScope(scope Scope, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, scope, format), args...)
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.DebugWithScope(None, format, args...)
}

func (l *StdLogger) DebugWithScope(scope Scope, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, scope, format), args...)
	}
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.NoticeWithScope(None, format, args...)
}

func (l *StdLogger) NoticeWithScope(scope Scope, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, scope, format), args...)
	}
}
