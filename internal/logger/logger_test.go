package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestModuleLoggerFieldsAndScope(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).Module("tracking").Module("engine")

	log.With(String("camera_ip", "10.0.0.5")).Info("camera moved",
		String("micro_id", "3"),
		Int("preset", 11),
		Bool("tracking", true))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "camera moved", entries[0]["msg"])
	assert.Equal(t, "tracking.engine", entries[0]["module"])
	assert.Equal(t, "10.0.0.5", entries[0]["camera_ip"])
	assert.Equal(t, "3", entries[0]["micro_id"])
	assert.InDelta(t, 11, entries[0]["preset"], 0)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelWarn, nil)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown", Error(os.ErrNotExist))
	log.Log(LogLevelInfo, "hidden")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, os.ErrNotExist.Error(), entries[1]["error"])
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	NewSlogLogger(buf, LogLevelTrace, nil).Trace("raw frame")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "TRACE", entries[0]["level"])
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, nil)

	log.WithContext(WithTraceID(t.Context(), "tick-42")).Info("tick")
	log.WithContext(t.Context()).Info("no trace")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "tick-42", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
}

func TestCentralLoggerModuleLevelsAndFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "camtrack.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"dcerno": "debug"},
	})
	require.NoError(t, err)

	cl.Module("dcerno").Debug("reply received")
	cl.Module("ptz").Debug("suppressed by default level")
	require.NoError(t, cl.Close())
	require.NoError(t, cl.Close(), "close is idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reply received")
	assert.NotContains(t, string(data), "suppressed by default level")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestFieldToAttrRoundsFloats(t *testing.T) {
	t.Parallel()

	attr := fieldToAttr(Float64("seconds", 0.123456))
	assert.InDelta(t, 0.123, attr.Value.Float64(), 1e-9)

	attr = fieldToAttr(Any("elapsed", 1500*time.Microsecond))
	assert.Equal(t, "2ms", attr.Value.String())
}
