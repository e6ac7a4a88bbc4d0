package logging

import (
	"context"
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
)

// DefaultLogger is a colored logger implementation using Go's standard log package
// Debug/Info -> stdout (no color)
// Warn -> stderr (yellow)
// Error -> stderr (red)
// Fatal -> stderr (bold red)
type DefaultLogger struct {
	stdoutLogger *log.Logger
	stderrLogger *log.Logger
	level        *Level
	fields       Fields
	useColors    bool
}

// NewDefaultLogger creates a new default logger with colored output
func NewDefaultLogger() *DefaultLogger {
	level := InfoLevel
	return &DefaultLogger{
		stdoutLogger: log.New(os.Stdout, "", log.LstdFlags),
		stderrLogger: log.New(os.Stderr, "", log.LstdFlags),
		level:        &level,
		fields:       make(Fields),
		useColors:    isTerminal(),
	}
}

// NewDefaultLoggerNoColor creates a new default logger without colored output
func NewDefaultLoggerNoColor() *DefaultLogger {
	l := NewDefaultLogger()
	l.useColors = false
	return l
}

// isTerminal reports whether stdout is a character device
func isTerminal() bool {
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// formatFields renders fields in key order so log lines are stable
func formatFields(fields Fields) string {
	keys := slices.Collect(maps.Keys(fields))
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	allFields := make(Fields, len(d.fields))
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	logMsg := fmt.Sprintf("[%s] %s", level.String(), msg)

	if err != nil {
		logMsg += fmt.Sprintf(": %v", err)
	}

	if len(allFields) > 0 {
		logMsg += " " + formatFields(allFields)
	}

	if d.useColors {
		switch level {
		case WarnLevel:
			logMsg = ColorYellow + logMsg + ColorReset
		case ErrorLevel:
			logMsg = ColorRed + logMsg + ColorReset
		case FatalLevel:
			logMsg = ColorBold + ColorRed + logMsg + ColorReset
		}
	}

	return logMsg
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < *d.level {
		return
	}

	formattedMsg := d.formatMessage(level, err, msg, fields...)

	switch level {
	case DebugLevel, InfoLevel:
		d.stdoutLogger.Println(formattedMsg)
	case WarnLevel, ErrorLevel:
		d.stderrLogger.Println(formattedMsg)
	case FatalLevel:
		d.stderrLogger.Println(formattedMsg)
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

// WithFields returns a child logger. Children share the parent's level.
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(d.fields)+len(fields))
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		stdoutLogger: d.stdoutLogger,
		stderrLogger: d.stderrLogger,
		level:        d.level,
		fields:       newFields,
		useColors:    d.useColors,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	*d.level = level
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}

// Entry is one record held by a CaptureLogger.
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// CaptureLogger keeps entries in memory. Tests use it to assert on what the
// pipeline reported.
type CaptureLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  Fields
	level   *Level
}

// NewCaptureLogger returns an empty CaptureLogger at DebugLevel.
func NewCaptureLogger() *CaptureLogger {
	level := DebugLevel
	return &CaptureLogger{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		fields:  Fields{},
		level:   &level,
	}
}

func (c *CaptureLogger) record(level Level, err error, msg string, fields ...Fields) {
	if level < *c.level {
		return
	}
	all := make(Fields, len(c.fields))
	maps.Copy(all, c.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	c.mu.Lock()
	*c.entries = append(*c.entries, Entry{Level: level, Message: msg, Err: err, Fields: all})
	c.mu.Unlock()
}

func (c *CaptureLogger) Debug(msg string, fields ...Fields) { c.record(DebugLevel, nil, msg, fields...) }
func (c *CaptureLogger) Info(msg string, fields ...Fields)  { c.record(InfoLevel, nil, msg, fields...) }
func (c *CaptureLogger) Warn(msg string, fields ...Fields)  { c.record(WarnLevel, nil, msg, fields...) }

func (c *CaptureLogger) Error(err error, msg string, fields ...Fields) {
	c.record(ErrorLevel, err, msg, fields...)
}

// Fatal records at FatalLevel without exiting.
func (c *CaptureLogger) Fatal(err error, msg string, fields ...Fields) {
	c.record(FatalLevel, err, msg, fields...)
}

func (c *CaptureLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(c.fields)+len(fields))
	maps.Copy(merged, c.fields)
	maps.Copy(merged, fields)
	return &CaptureLogger{mu: c.mu, entries: c.entries, fields: merged, level: c.level}
}

func (c *CaptureLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return c.WithFields(fields)
	}
	return c
}

func (c *CaptureLogger) SetLevel(level Level) { *c.level = level }

// Entries returns a copy of everything recorded so far.
func (c *CaptureLogger) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(*c.entries)
}

// Count returns how many entries were recorded at level.
func (c *CaptureLogger) Count(level Level) int {
	n := 0
	for _, e := range c.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
