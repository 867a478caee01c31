package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arvikar/glb/internal/domain"
	"github.com/arvikar/glb/pkg/logger"
)

// HealthChecker probes every backend in a pool on a single periodic cadence
// and publishes the resulting healthy set atomically, so a reader never
// observes a partially updated pool: either the whole new snapshot is
// visible or the whole old one still is.
//
// It also exposes ProbeNow for the ingress forwarder to call when a forward
// attempt hits connection refusal — a probe that joins, rather than
// duplicates, any periodic probe already in flight for that backend.
type HealthChecker struct {
	config   domain.HealthCheckConfig
	backends []*domain.Backend
	client   *http.Client
	log      *logger.Logger

	group singleflight.Group

	healthy atomic.Pointer[[]*domain.Backend]

	onChange func()

	ticker   *time.Ticker
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewHealthChecker constructs a health checker for the given backends. The
// transport is tuned for a fleet of small, frequent probe requests: few
// idle connections per host, no compression negotiation overhead.
func NewHealthChecker(config domain.HealthCheckConfig, backends []*domain.Backend, log *logger.Logger) (*HealthChecker, error) {
	if len(backends) == 0 {
		return nil, errNoBackendsConfigured
	}

	hc := &HealthChecker{
		config:   config,
		backends: backends,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true,
				MaxIdleConnsPerHost: 2,
			},
		},
		log:  log.HealthCheckLogger(),
		done: make(chan struct{}),
	}
	empty := make([]*domain.Backend, 0)
	hc.healthy.Store(&empty)
	return hc, nil
}

// OnChange registers a callback invoked whenever a probe flips a backend's
// status, after the new healthy set has been published. Used to reset the
// weighted round-robin policy's accumulators on membership change.
func (hc *HealthChecker) OnChange(fn func()) {
	hc.onChange = fn
}

// Healthy returns the most recently published healthy set. Safe for
// concurrent use by any number of readers; never blocks on an in-flight
// probe.
func (hc *HealthChecker) Healthy() []*domain.Backend {
	return *hc.healthy.Load()
}

// Start returns immediately, kicking off an eager probe pass over the whole
// pool and the periodic probe loop both in the background. The ingress
// server is free to bind and accept connections the moment Start returns;
// forwards produce a synthesized 500 (no healthy backend yet) until the
// eager pass completes and publishes the first healthy set.
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.wg.Add(1)
	go func() {
		defer hc.wg.Done()
		hc.probeAll(ctx)
	}()

	hc.ticker = time.NewTicker(hc.config.Interval)
	hc.wg.Add(1)
	go hc.loop(ctx)
}

// Stop halts the periodic loop and waits for any in-flight probe to finish.
func (hc *HealthChecker) Stop() {
	hc.stopOnce.Do(func() {
		close(hc.done)
	})
	hc.wg.Wait()
}

func (hc *HealthChecker) loop(ctx context.Context) {
	defer hc.wg.Done()
	defer hc.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hc.done:
			return
		case <-hc.ticker.C:
			hc.probeAll(ctx)
		}
	}
}

// probeAll probes every backend concurrently and returns once all probes of
// this cycle complete. Each probe that flips a backend's status republishes
// the healthy set itself.
func (hc *HealthChecker) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, b := range hc.backends {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			hc.probe(ctx, b)
		}()
	}
	wg.Wait()
}

// ProbeNow issues an on-demand probe against one backend, triggered by the
// ingress forwarder observing connection refusal during a live request.
// Concurrent calls for the same backend, periodic or on-demand, are
// coalesced into a single outbound request via singleflight.
func (hc *HealthChecker) ProbeNow(ctx context.Context, b *domain.Backend) {
	hc.probe(ctx, b)
}

func (hc *HealthChecker) probe(ctx context.Context, b *domain.Backend) {
	_, _, _ = hc.group.Do(b.URL().String(), func() (interface{}, error) {
		hc.doProbe(ctx, b)
		return nil, nil
	})
}

func (hc *HealthChecker) doProbe(ctx context.Context, b *domain.Backend) {
	log := hc.log.BackendLogger(b.URL().String())

	checkCtx, cancel := context.WithTimeout(ctx, hc.config.Timeout)
	defer cancel()

	healthURL := b.URL().String() + hc.config.Path
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, healthURL, nil)
	if err != nil {
		log.WithError(err).Error("failed to build health check request")
		hc.markUnhealthy(b)
		return
	}
	req.Header.Set("User-Agent", "glb-healthchecker/1.0")

	resp, err := hc.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("health check request failed")
		hc.markUnhealthy(b)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		hc.markHealthy(b)
		return
	}

	log.WithField("status_code", resp.StatusCode).Debug("health check returned non-2xx")
	hc.markUnhealthy(b)
}

func (hc *HealthChecker) markHealthy(b *domain.Backend) {
	if b.SetStatus(domain.StatusHealthy) {
		hc.log.BackendLogger(b.URL().String()).Info("backend marked healthy")
		hc.republish()
	}
}

func (hc *HealthChecker) markUnhealthy(b *domain.Backend) {
	if b.SetStatus(domain.StatusUnhealthy) {
		hc.log.BackendLogger(b.URL().String()).Warn("backend marked unhealthy")
		hc.republish()
	}
}

// republish recomputes and atomically swaps in the healthy set. Called
// only after a confirmed status transition, so unchanged probes never
// trigger a pointer swap.
func (hc *HealthChecker) republish() {
	healthy := make([]*domain.Backend, 0, len(hc.backends))
	for _, b := range hc.backends {
		if b.Status() == domain.StatusHealthy {
			healthy = append(healthy, b)
		}
	}
	hc.healthy.Store(&healthy)

	if hc.onChange != nil {
		hc.onChange()
	}
}

var errNoBackendsConfigured = fmt.Errorf("service: health checker requires at least one backend")
