package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLoggerFiltersByLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(LogLevelWarn, core)

	logger.Error("e %d", 1)
	logger.Warn("w %d", 2)
	logger.Info("i %d", 3)
	logger.Debug("d %d", 4)

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "e 1", entries[0].Message)
		assert.Equal(t, "w 2", entries[1].Message)
	}
}

func TestLoggerWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerWithCore(LogLevelTrace, core).With("run_id", "abc")

	logger.Trace("step %s", "fit")

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "[TRACE] step fit", entries[0].Message)
		assert.Equal(t, "abc", entries[0].ContextMap()["run_id"])
	}
}
