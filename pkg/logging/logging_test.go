package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, logger.GetLevel())
	logger.Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")

	buf.Reset()
	logger.SetLevel(ErrorLevel)
	logger.Warn("hidden warn")
	logger.Error("shown error")
	assert.NotContains(t, buf.String(), "hidden warn")
	assert.Contains(t, buf.String(), "shown error")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter()).
		WithFields(String("component", "server"), String("conn_id", "abc"))

	logger.Info("accepted connection", Int("active", 3))

	out := buf.String()
	assert.Contains(t, out, "accepted connection")
	assert.Contains(t, out, "conn_id=abc")
	assert.Contains(t, out, "active=3")
}

func TestWithErrorExtractsProtocolErrorFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	err := mcperrors.ReadTimeout("127.0.0.1:8765", time.Second)
	logger.WithError(err).Warn("exchange failed")

	out := buf.String()
	assert.Contains(t, out, "exchange failed")
	assert.Contains(t, out, "error_category=timeout")
	assert.Contains(t, out, "remote_addr=127.0.0.1:8765")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	logger.Info("frame received", Int("bytes", 128), String("conn_id", "abc"))

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "frame received", entry["message"])
	assert.Equal(t, float64(128), entry["bytes"])
	assert.Equal(t, "abc", entry["conn_id"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	logger.Error("dropped")
	logger.WithError(nil)
	logger.WithFields(String("k", "v")).Info("also dropped")
}
