package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).
		Named("jcr-query").
		WithFields(map[string]interface{}{"taskType": "jcr-query"}).
		WithError(errors.New("boom"))

	log.Info("query executed", map[string]interface{}{"nodes": 3, "cause": errors.New("inner")})

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "query executed", e.Message)
	assert.Equal(t, "jcr-query", e.LoggerName)

	ctx := e.ContextMap()
	assert.Equal(t, "jcr-query", ctx["taskType"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "inner", ctx["cause"])
	assert.EqualValues(t, 3, ctx["nodes"])
}

func TestNew_Levels(t *testing.T) {
	l, err := New("warn", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = New("nonsense", "console")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.WithFields(nil).Error("ignored", nil)
	})
}
