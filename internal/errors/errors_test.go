package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadBalancerError_ErrorString(t *testing.T) {
	err := NewError(ErrCodeNoBackends, "load_balancer", "no healthy backends")
	assert.Contains(t, err.Error(), "NO_BACKENDS_AVAILABLE")
	assert.Contains(t, err.Error(), "load_balancer")
}

func TestWrapError_PreservesCause(t *testing.T) {
	cause := errors.New("dial failed")
	err := WrapError(cause, ErrCodeBackendUnavailable, "httpclient", "forward failed")
	assert.ErrorIs(t, err, cause)
}

func TestWrapError_NilIsNil(t *testing.T) {
	assert.Nil(t, WrapError(nil, ErrCodeInternalError, "x", "y"))
}

func TestIsLoadBalancerError(t *testing.T) {
	err := NewNoBackendsError()
	assert.True(t, IsLoadBalancerError(err))
	assert.False(t, IsLoadBalancerError(errors.New("plain")))
}

func TestGetErrorCode(t *testing.T) {
	err := NewError(ErrCodeHealthCheckFailed, "health_checker", "probe failed")
	assert.Equal(t, ErrCodeHealthCheckFailed, GetErrorCode(err))
	assert.Equal(t, ErrCodeInternalError, GetErrorCode(errors.New("plain")))
}

func TestLoadBalancerError_HTTPStatusCode(t *testing.T) {
	err := NewNoBackendsError()
	assert.Equal(t, 500, err.HTTPStatusCode())
}

func TestLoadBalancerError_Is(t *testing.T) {
	a := NewError(ErrCodeConfigLoad, "config", "bad")
	b := NewError(ErrCodeConfigLoad, "config", "different message")
	assert.True(t, errors.Is(a, b))
}
