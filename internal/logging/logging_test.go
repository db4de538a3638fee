package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	logger.Info("test message", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestSetupTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "text", Output: &buf})

	logger.Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
}

func TestSetupLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "warn", Format: "text", Output: &buf})

	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestSetupUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "bogus", Format: "text", Output: &buf})

	logger.Debug("debug line")
	logger.Info("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestContextHandlerAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRunID(context.Background(), "run-123")
	logger.InfoContext(ctx, "with run")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-123", entry["run_id"])
}

func TestContextHandlerAddsRequestIndex(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRequestIndex(WithRunID(context.Background(), "run-9"), 42)
	logger.InfoContext(ctx, "with index")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-9", entry["run_id"])
	assert.Equal(t, float64(42), entry["request_index"])
}

func TestContextHandlerIgnoresEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	logger.InfoContext(context.Background(), "plain")

	line := buf.String()
	assert.False(t, strings.Contains(line, "run_id"))
	assert.False(t, strings.Contains(line, "request_index"))
}

func TestSetupSetsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "text", Output: &buf})

	assert.Equal(t, logger, slog.Default())
}
