package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "k", Value: "v"}, String("k", "v"))
	assert.Equal(t, Field{Key: "n", Value: 42}, Int("n", 42))
	assert.Equal(t, Field{Key: "f", Value: 1.5}, Float64("f", 1.5))
	assert.Equal(t, Field{Key: "b", Value: true}, Bool("b", true))
	assert.Equal(t, Field{Key: "d", Value: time.Second}, Duration("d", time.Second))
}

func TestErr(t *testing.T) {
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: "<nil>"}, Err(nil))
}

func TestZapLogger_EmitsFields(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromCore(core)

	log.Info("valuation complete",
		String("neighborhood", "Downtown"),
		Int("comparables", 5),
		Float64("estimate", 780000),
	)

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "valuation complete", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Downtown", fields["neighborhood"])
	assert.EqualValues(t, 5, fields["comparables"])
	assert.EqualValues(t, 780000, fields["estimate"])
}

func TestZapLogger_With(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromCore(core).With(String("component", "aggregator"))

	log.Warn("falling back to neighborhood median")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "aggregator", entries[0].ContextMap()["component"])
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	log := NewLoggerFromCore(core)

	log.Debug("not emitted")
	log.Info("not emitted either")
	log.Warn("emitted")

	assert.Equal(t, 1, observed.Len())
}

func TestNewLogger_Defaults(t *testing.T) {
	log, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewDefaultLogger(t *testing.T) {
	assert.NotNil(t, NewDefaultLogger())
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	// Must be safe to call every method.
	log.Debug("x")
	log.Info("x")
	log.Warn("x")
	log.Error("x")
	assert.Equal(t, log, log.With(String("k", "v")))
	assert.Equal(t, log, log.Named("child"))
}

func TestDefaultLogger_SetAndGet(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	log := NewNopLogger()
	SetDefault(log)
	assert.Equal(t, log, Default())

	// nil is ignored
	SetDefault(nil)
	assert.Equal(t, log, Default())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}
