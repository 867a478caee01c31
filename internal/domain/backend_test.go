package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_DefaultsWeightToOne(t *testing.T) {
	b, err := NewBackend("http://localhost:8081", 0, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, b.Weight())
}

func TestNewBackend_RejectsInvalidURL(t *testing.T) {
	_, err := NewBackend("http://[::1", 1, context.Background())
	assert.Error(t, err)
}

func TestBackend_SetStatus_NoopWhenUnchanged(t *testing.T) {
	b, err := NewBackend("http://localhost:8081", 1, context.Background())
	require.NoError(t, err)

	assert.True(t, b.SetStatus(StatusHealthy))
	b.IncrementServed()
	b.IncrementServed()

	assert.False(t, b.SetStatus(StatusHealthy))
	assert.Equal(t, uint64(2), b.RequestsServedSinceLastStatusChange())
}

func TestBackend_SetStatus_ResetsCounterOnTransition(t *testing.T) {
	b, err := NewBackend("http://localhost:8081", 1, context.Background())
	require.NoError(t, err)

	b.SetStatus(StatusHealthy)
	b.IncrementServed()
	b.IncrementServed()
	assert.Equal(t, uint64(2), b.RequestsServedSinceLastStatusChange())

	assert.True(t, b.SetStatus(StatusUnhealthy))
	assert.Equal(t, uint64(0), b.RequestsServedSinceLastStatusChange())
	assert.Equal(t, uint64(2), b.TotalRequestsServed())
}

func TestBackend_StatusString(t *testing.T) {
	assert.Equal(t, "unknown", StatusUnknown.String())
	assert.Equal(t, "healthy", StatusHealthy.String())
	assert.Equal(t, "unhealthy", StatusUnhealthy.String())
}
