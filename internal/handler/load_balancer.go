package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/arvikar/glb/internal/domain"
	lberrors "github.com/arvikar/glb/internal/errors"
	"github.com/arvikar/glb/internal/httpclient"
	"github.com/arvikar/glb/internal/middleware"
	"github.com/arvikar/glb/internal/service"
	"github.com/arvikar/glb/pkg/logger"
)

// hopByHopHeaders are stripped from both the outbound request and the
// returned response, per RFC 7230 §6.1 — they describe one hop of the
// connection, not the end-to-end message.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// ForwardHandler is the single ingress entry point: it picks a backend,
// forwards the request, and retries/reselects/probes according to the
// retrying client's policy, synthesizing a 500 only when no attempt ever
// reaches a backend successfully.
type ForwardHandler struct {
	lb     *service.LoadBalancer
	client *httpclient.Client
	log    *logger.Logger
}

// NewForwardHandler constructs the ingress forwarder.
func NewForwardHandler(lb *service.LoadBalancer, client *httpclient.Client, log *logger.Logger) *ForwardHandler {
	return &ForwardHandler{lb: lb, client: client, log: log}
}

// ServeHTTP implements http.Handler.
func (h *ForwardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.RequestLogger(middleware.RequestIDFromContext(r.Context()), r.Method, r.URL.Path, r.RemoteAddr)

	backend, err := h.lb.GetBackend(r.Context())
	if err != nil {
		log.WithError(err).Error("no healthy backend available at entry")
		http.Error(w, "Internal Server Error", statusForError(err))
		return
	}

	// Every backend carries the same shutdown context; cancelling it aborts
	// this forward, including any retry sleep.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopShutdownWatch := context.AfterFunc(backend.ShutdownCtx, cancel)
	defer stopShutdownWatch()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		err = lberrors.WrapError(err, lberrors.ErrCodeInternalError, "handler", "failed to read request body")
		log.WithError(err).Error("failed to read request body")
		http.Error(w, "Internal Server Error", statusForError(err))
		return
	}

	buildReq := func(b *domain.Backend) (*http.Request, error) {
		target := *b.URL()
		target.Path = r.URL.Path
		target.RawQuery = r.URL.RawQuery

		req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		copyHeaders(req.Header, r.Header)
		req.Header.Set("X-Forwarded-By", "glb")
		req.Header.Set("X-Forwarded-Host", r.Host)
		stripHopByHop(req.Header)
		return req, nil
	}

	selectFn := func(ctx context.Context) (*domain.Backend, error) {
		return h.lb.GetBackend(ctx)
	}
	probeFn := func(ctx context.Context, b *domain.Backend) {
		h.lb.HealthCheckerInstance().ProbeNow(ctx, b)
	}

	result, err := h.client.Forward(ctx, backend, buildReq, selectFn, probeFn)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.WithError(err).Debug("request cancelled before a backend responded")
			return
		}
		log.WithError(err).Error("forward failed after exhausting retries")
		http.Error(w, "Internal Server Error", statusForError(err))
		return
	}
	defer result.Response.Body.Close()
	result.Backend.IncrementServed()

	copyHeaders(w.Header(), result.Response.Header)
	stripHopByHop(w.Header())
	w.WriteHeader(result.Response.StatusCode)
	io.Copy(w, result.Response.Body)
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func stripHopByHop(h http.Header) {
	for _, k := range hopByHopHeaders {
		h.Del(k)
	}
}

// statusForError maps a failure to the status this handler synthesizes for
// it. Every LoadBalancerError code currently maps to 500 — no attempt ever
// reaches a backend successfully is the only failure this handler
// synthesizes a response for — but the mapping goes through
// HTTPStatusCode() rather than a literal so a future error code with a
// different status doesn't need a second place to change.
func statusForError(err error) int {
	var lbErr *lberrors.LoadBalancerError
	if errors.As(err, &lbErr) {
		return lbErr.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
