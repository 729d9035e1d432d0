package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKeyValues(t *testing.T) {
	prev := log
	t.Cleanup(func() { log = prev })

	core, logs := observer.New(zapcore.DebugLevel)
	log = zap.New(core).Sugar()

	Warn("ledger write failed", "write_id", "w-1", "shipment_id", int64(7))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "ledger write failed", entry.Message)
	assert.Equal(t, map[string]interface{}{"write_id": "w-1", "shipment_id": int64(7)}, entry.ContextMap())
}

func TestInitLevel(t *testing.T) {
	prev := log
	t.Cleanup(func() { log = prev })

	Init("warn")
	assert.False(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.WarnLevel))

	Init("nonsense")
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))

	Init("debug")
	assert.True(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
}
