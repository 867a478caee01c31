package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvikar/glb/internal/domain"
	"github.com/arvikar/glb/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func newTestBackend(t *testing.T, rawURL string) *domain.Backend {
	t.Helper()
	b, err := domain.NewBackend(rawURL, 1, context.Background())
	require.NoError(t, err)
	return b
}

func buildGET(rawURL string) RequestFactory {
	return func(backend *domain.Backend) (*http.Request, error) {
		return http.NewRequest(http.MethodGet, backend.URL().String(), nil)
	}
}

func TestForward_SuccessOnFirstAttempt(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	c, err := New(2, domain.LinearDelay(time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	backend := newTestBackend(t, upstream.URL)
	result, err := c.Forward(context.Background(), backend, buildGET(upstream.URL), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	assert.Equal(t, 1, result.Attempts)
}

func TestForward_FourHundredIsNotRetried(t *testing.T) {
	calls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	c, err := New(2, domain.LinearDelay(time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	backend := newTestBackend(t, upstream.URL)
	result, err := c.Forward(context.Background(), backend, buildGET(upstream.URL), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, result.Response.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestForward_FiveHundredRetriesThenReselects(t *testing.T) {
	calls := 0
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	c, err := New(1, domain.ConstantDelay(time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	backend := newTestBackend(t, failing.URL)
	healthyBackend := newTestBackend(t, healthy.URL)

	selected := false
	selectFn := func(ctx context.Context) (*domain.Backend, error) {
		selected = true
		return healthyBackend, nil
	}

	result, err := c.Forward(context.Background(), backend,
		func(b *domain.Backend) (*http.Request, error) {
			return http.NewRequest(http.MethodGet, b.URL().String(), nil)
		},
		selectFn, nil)

	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestForward_RetryExhaustionReturnsError(t *testing.T) {
	calls := 0
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	c, err := New(2, domain.ConstantDelay(time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	backend := newTestBackend(t, failing.URL)
	selectFn := func(ctx context.Context) (*domain.Backend, error) {
		return backend, nil
	}

	result, err := c.Forward(context.Background(), backend, buildGET(failing.URL), selectFn, nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 3, calls)
}

func TestForward_RetryExhaustionOnTransportErrorReturnsError(t *testing.T) {
	refused := newTestBackend(t, "http://127.0.0.1:1")
	selectFn := func(ctx context.Context) (*domain.Backend, error) {
		return refused, nil
	}

	c, err := New(1, domain.ConstantDelay(time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	result, err := c.Forward(context.Background(), refused,
		func(b *domain.Backend) (*http.Request, error) {
			return http.NewRequest(http.MethodGet, b.URL().String(), nil)
		},
		selectFn, func(ctx context.Context, b *domain.Backend) {})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestForward_ConnectionRefusedProbesBeforeReselecting(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	refused := newTestBackend(t, "http://127.0.0.1:1")
	healthyBackend := newTestBackend(t, healthy.URL)

	c, err := New(1, domain.LinearDelay(time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	probed := false
	probeFn := func(ctx context.Context, b *domain.Backend) { probed = true }
	selectFn := func(ctx context.Context) (*domain.Backend, error) { return healthyBackend, nil }

	result, err := c.Forward(context.Background(), refused,
		func(b *domain.Backend) (*http.Request, error) {
			return http.NewRequest(http.MethodGet, b.URL().String(), nil)
		},
		selectFn, probeFn)

	require.NoError(t, err)
	assert.True(t, probed)
	assert.Equal(t, http.StatusOK, result.Response.StatusCode)
}

func TestForward_CancellationAbortsRetry(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	c, err := New(5, domain.LinearDelay(50*time.Millisecond), time.Second, testLogger(t))
	require.NoError(t, err)

	backend := newTestBackend(t, failing.URL)
	ctx, cancel := context.WithCancel(context.Background())
	selectFn := func(ctx context.Context) (*domain.Backend, error) {
		cancel()
		return backend, nil
	}

	_, err = c.Forward(ctx, backend, buildGET(failing.URL), selectFn, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
