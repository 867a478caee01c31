package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvikar/glb/internal/domain"
)

func TestNewPool_RejectsEmptySpecs(t *testing.T) {
	_, err := NewPool(nil, context.Background())
	assert.Error(t, err)
}

func TestNewPool_BuildsBackendsInOrder(t *testing.T) {
	pool, err := NewPool([]domain.BackendSpec{
		{URL: "http://localhost:8081", Weight: 1},
		{URL: "http://localhost:8082", Weight: 2},
	}, context.Background())
	require.NoError(t, err)

	all := pool.All()
	require.Len(t, all, 2)
	assert.Equal(t, "http://localhost:8081", all[0].URL().String())
	assert.Equal(t, "http://localhost:8082", all[1].URL().String())
	assert.Equal(t, 2, pool.Len())
}

func TestPool_Healthy_FiltersByStatus(t *testing.T) {
	pool, err := NewPool([]domain.BackendSpec{
		{URL: "http://localhost:8081", Weight: 1},
		{URL: "http://localhost:8082", Weight: 1},
	}, context.Background())
	require.NoError(t, err)

	assert.Empty(t, pool.Healthy())

	pool.All()[0].SetStatus(domain.StatusHealthy)
	assert.Len(t, pool.Healthy(), 1)
}
