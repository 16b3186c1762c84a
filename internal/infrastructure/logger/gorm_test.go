package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func selectEntries() (string, int64) {
	return "SELECT * FROM ledger_entries WHERE contract_id = $1", 3
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, defaultSlowThreshold, gl.slowThreshold)
	assert.True(t, gl.ignoreRecordNotFoundError)

	var _ gormlogger.Interface = gl
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)
	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
}

func TestGormLogger_LogModeClones(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	lowered := gl.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	clone, ok := lowered.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, clone.logLevel)
}

func TestGormLogger_LeveledMessages(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	gl.Info(context.Background(), "migrated %d tables", 4)
	gl.Warn(context.Background(), "pool saturated")
	gl.Error(context.Background(), "connection refused")

	logs := recorded.All()
	require.Len(t, logs, 3)
	assert.Equal(t, "migrated 4 tables", logs[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs[2].Level)
}

func TestGormLogger_SilentSuppressesAll(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Silent)

	gl.Info(context.Background(), "ignored")
	gl.Trace(context.Background(), time.Now(), selectEntries, nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("query error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), selectEntries, errors.New("deadlock detected"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Error", logs[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	})

	t.Run("record not found suppressed", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), selectEntries, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("record not found surfaced when configured", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))
		gl.Trace(context.Background(), time.Now(), selectEntries, gormlogger.ErrRecordNotFound)
		require.Len(t, recorded.All(), 1)
	})

	t.Run("slow query warns", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), selectEntries, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
	})

	t.Run("normal query at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)
		gl.Trace(context.Background(), time.Now(), selectEntries, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Query", logs[0].Message)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})

	t.Run("request id from context", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")
		gl.Trace(ctx, time.Now(), selectEntries, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "req-7", logs[0].ContextMap()["request_id"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"bogus", gormlogger.Warn},
		{"", gormlogger.Warn},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapGormLogLevel(tt.level), tt.level)
	}
}
