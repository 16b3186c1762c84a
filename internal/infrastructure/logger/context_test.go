package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWithContext_RoundTrip(t *testing.T) {
	base := zap.NewNop()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestFromContext_MissingLoggerReturnsNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	ctx, enriched := WithRequestID(context.Background(), zap.NewNop(), "req-123")
	assert.NotNil(t, enriched)
	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Same(t, enriched, FromContext(ctx))
}

func TestWithRunID(t *testing.T) {
	ctx, enriched := WithRunID(context.Background(), zap.NewNop(), "correction:2023-02")
	assert.NotNil(t, enriched)
	assert.Equal(t, "correction:2023-02", GetRunID(ctx))
}

func TestGetRunID_Empty(t *testing.T) {
	assert.Empty(t, GetRunID(context.Background()))
}
