package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelWarn,
		"":        slog.LevelWarn,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSimpleTextHandlerOmitsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	h := &simpleTextHandler{handler: slog.NewTextHandler(&buf, nil), writer: &buf}
	r := slog.Record{Level: slog.LevelInfo, Message: "hello"}
	r.AddAttrs(slog.String("agent", "a1"))

	a := assert.New(t)
	a.NoError(h.Handle(context.Background(), r))
	out := buf.String()
	a.Contains(out, "INFO hello")
	a.Contains(out, "agent=a1")
	a.False(strings.Contains(out, "/"))
}

func TestColoredTextHandlerVerboseIncludesTimestamp(t *testing.T) {
	var buf bytes.Buffer
	h := &coloredTextHandler{handler: slog.NewTextHandler(&buf, nil), writer: &buf, simple: false}
	r := slog.Record{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Level: slog.LevelWarn, Message: "careful"}

	assert.NoError(t, h.Handle(context.Background(), r))
	assert.Contains(t, buf.String(), "2024/01/02 03:04:05")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "careful")
}

func TestNewReturnsUsableLogger(t *testing.T) {
	logger := New(slog.LevelInfo, os.Stderr, "simple")
	assert.NotNil(t, logger)
}

func TestOpenLogFileCreatesAppendableFile(t *testing.T) {
	path := t.TempDir() + "/gateway.log"
	f, cleanup, err := OpenLogFile(path)
	assert.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, f)
}
