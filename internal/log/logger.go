// Package log provides a global logger with configurable logging level and per-component
// categories. Platform components tag every line with their category so that a single stderr
// stream can be filtered by subsystem.

package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs anomalies that are not expected to occur during normal use.
	LevelWarning              // Logs anomalies that are expected to occur occasionally during normal use.
	LevelInfo                 // Logs major events.
	LevelDebug                // Logs detailed IO
)

var (
	globalLogLevel Level
	output         io.Writer = os.Stderr
	logMutex       sync.Mutex
)

var labels = map[Level]string{
	LevelDebug:   "[debug]",
	LevelInfo:    "[info ]",
	LevelWarning: "[warn ]",
	LevelError:   "[error]",
}

func SetLevel(level Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	globalLogLevel = level
}

// SetOutput redirects log lines to w. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

func logLevel() Level {
	logMutex.Lock()
	defer logMutex.Unlock()
	return globalLogLevel
}

func log(level Level, category, format string, a ...interface{}) {
	if level > logLevel() {
		return
	}
	msg := fmt.Sprintf("%s %s ", time.Now().Format(time.RFC3339), labels[level])
	if category != "" {
		msg += "[" + category + "] "
	}
	msg += fmt.Sprintf(format, a...)

	logMutex.Lock()
	defer logMutex.Unlock()
	fmt.Fprintln(output, msg)
}

func Debug(format string, a ...interface{}) {
	log(LevelDebug, "", format, a...)
}
func Info(format string, a ...interface{}) {
	log(LevelInfo, "", format, a...)
}
func Warning(format string, a ...interface{}) {
	log(LevelWarning, "", format, a...)
}
func Error(format string, a ...interface{}) {
	log(LevelError, "", format, a...)
}

// Logger writes lines tagged with a fixed category.
type Logger struct {
	category string
}

// New returns a Logger for category, e.g. "BLEPeripheralManager" or "KeyValueStore".
func New(category string) *Logger {
	return &Logger{category: category}
}

func (l *Logger) Debug(format string, a ...interface{}) {
	log(LevelDebug, l.category, format, a...)
}
func (l *Logger) Info(format string, a ...interface{}) {
	log(LevelInfo, l.category, format, a...)
}
func (l *Logger) Warning(format string, a ...interface{}) {
	log(LevelWarning, l.category, format, a...)
}
func (l *Logger) Error(format string, a ...interface{}) {
	log(LevelError, l.category, format, a...)
}
