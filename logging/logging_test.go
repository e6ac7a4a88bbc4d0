package logging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer) *DefaultLogger {
	l := NewDefaultLoggerNoColor()
	l.stdoutLogger = log.New(buf, "", 0)
	l.stderrLogger = log.New(buf, "", 0)
	return l
}

func TestDefaultLoggerFormatsFieldsInKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf)

	l.WithFields(Fields{"component": "queue"}).Info("pruned", Fields{"dropped": 3, "band": 0})

	assert.Equal(t, "[INFO] pruned band=0 component=queue dropped=3\n", buf.String())
}

func TestDefaultLoggerLevelIsSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf)
	child := l.WithFields(Fields{"k": "v"})

	l.SetLevel(WarnLevel)
	child.Info("hidden")
	child.Warn("shown")

	assert.Equal(t, "[WARN] shown k=v\n", buf.String())
}

func TestDefaultLoggerErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferedLogger(&buf)

	l.Error(errors.New("boom"), "feed rejected")

	assert.Equal(t, "[ERROR] feed rejected: boom\n", buf.String())
}

func TestCaptureLoggerSharesEntriesAcrossChildren(t *testing.T) {
	c := NewCaptureLogger()
	child := c.WithFields(Fields{"component": "display"})

	child.Debug("underrun")
	c.Warn("capacity exceeded", Fields{"dropped": 2})

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "display", entries[0].Fields["component"])
	assert.Equal(t, 2, entries[1].Fields["dropped"])
	assert.Equal(t, 1, c.Count(WarnLevel))
}

func TestWithContextPicksUpFields(t *testing.T) {
	c := NewCaptureLogger()
	ctx := ContextWithFields(context.Background(), Fields{"track": "intro.mod"})

	c.WithContext(ctx).Info("session started")

	require.Len(t, c.Entries(), 1)
	assert.Equal(t, "intro.mod", c.Entries()[0].Fields["track"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestSetGlobalLoggerNilSilences(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	SetGlobalLogger(nil)
	_, ok := GetGlobalLogger().(*NoOpLogger)
	assert.True(t, ok)
}
