// Package httpclient is the retrying egress client the ingress forwarder
// uses to talk to backends: it owns the retry budget, the retry predicate,
// the retry-delay schedule, and the connection-refusal-triggers-a-probe
// behavior described by the forwarding state machine.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"github.com/arvikar/glb/internal/domain"
	lberrors "github.com/arvikar/glb/internal/errors"
	"github.com/arvikar/glb/pkg/logger"
)

// SelectFunc re-selects a backend from the current healthy set, used to
// pick the next attempt's target after a retryable failure.
type SelectFunc func(ctx context.Context) (*domain.Backend, error)

// ProbeFunc issues an on-demand probe against a backend, used when a
// forward attempt observes connection refusal.
type ProbeFunc func(ctx context.Context, backend *domain.Backend)

// RequestFactory builds the outbound request for one attempt against the
// given backend. Called once per attempt so a body reader can be rewound.
type RequestFactory func(backend *domain.Backend) (*http.Request, error)

// Client is the retrying HTTP client.
type Client struct {
	http        *http.Client
	retryBudget int
	delay       domain.RetryDelayFunc
	log         *logger.Logger
}

// New constructs a Client. The transport is tuned the way the pack's health
// checker tunes its own probe transport, with HTTP/2 negotiation enabled on
// top via http2.ConfigureTransport so backends that support it get it.
func New(retryBudget int, delay domain.RetryDelayFunc, timeout time.Duration, log *logger.Logger) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		retryBudget: retryBudget,
		delay:       delay,
		log:         log.WithField("component", "httpclient"),
	}, nil
}

// Result is what one Forward call settles to.
type Result struct {
	Response *http.Response
	Backend  *domain.Backend
	Attempts int
}

// Forward sends the request built for backend, retrying against
// re-selected backends according to the retry budget and predicate:
// connection refusal probes the failed backend and reselects immediately;
// any other transport error or 5xx response reselects after a delay; a
// successful response (anything that isn't a transport error or 5xx,
// including 4xx) ends the attempt loop. ctx cancellation aborts both
// in-flight attempts and retry sleeps. Retry budget exhaustion always
// returns an error, never a Result wrapping the last failing response —
// the caller synthesizes its own status for any failure, it never relays
// an upstream 5xx body or status code verbatim.
func (c *Client) Forward(ctx context.Context, backend *domain.Backend, buildReq RequestFactory, selectFn SelectFunc, probeFn ProbeFunc) (*Result, error) {
	attempt := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := buildReq(backend)
		if err != nil {
			return nil, lberrors.WrapError(err, lberrors.ErrCodeInternalError, "httpclient", "failed to build outbound request")
		}

		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return &Result{Response: resp, Backend: backend, Attempts: attempt}, nil
		}

		retriesLeft := c.retryBudget - (attempt - 1)
		if retriesLeft <= 0 {
			if err != nil {
				return nil, lberrors.WrapError(err, lberrors.ErrCodeBackendUnavailable, "httpclient", "retry budget exhausted")
			}
			resp.Body.Close()
			return nil, lberrors.NewError(lberrors.ErrCodeBackendUnavailable, "httpclient",
				fmt.Sprintf("retry budget exhausted, last response %d from %s", resp.StatusCode, backend.URL()))
		}

		if err == nil {
			resp.Body.Close()
		}

		refused := err != nil && isConnectionRefused(err)

		logEntry := c.log.WithFields(map[string]interface{}{
			"backend": backend.URL().String(),
			"attempt": attempt,
		})
		if refused {
			logEntry.Warn("connection refused, probing backend before retry")
			probeFn(ctx, backend)
		} else {
			delay := c.delay(attempt + 1)
			logEntry.WithField("delay", delay.String()).Warn("retrying forward after delay")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		backend, err = selectFn(ctx)
		if err != nil {
			return nil, err
		}
		attempt++
	}
}

// isConnectionRefused reports whether err is ECONNREFUSED from a dial
// attempt, the one transport failure the forwarder treats as an immediate
// signal to probe rather than merely retry.
func isConnectionRefused(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	return errors.Is(opErr, syscall.ECONNREFUSED)
}
