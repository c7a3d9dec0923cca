// Package health probes registered webhook endpoints so operators can spot
// subscriptions whose receivers have gone away. Deliveries themselves are
// fire-and-forget; the prober is the feedback loop.
package health

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/events"
)

// Config holds prober configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// SubscriptionLister returns the webhook subscriptions to probe.
// *events.Forwarder satisfies it.
type SubscriptionLister interface {
	List() []*events.Subscription
}

// DegradedFunc is an optional callback invoked when an endpoint crosses the
// failure threshold.
type DegradedFunc func(id uuid.UUID, url string, failCount int)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Checker runs periodic webhook endpoint probes.
type Checker struct {
	subs       SubscriptionLister
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger

	mu         sync.Mutex
	failCounts map[uuid.UUID]int

	onDegraded DegradedFunc
	onMetrics  MetricsRecordFunc
}

// New creates a Checker over the given subscription source.
func New(subs SubscriptionLister, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	return &Checker{
		subs:       subs,
		httpClient: &http.Client{Timeout: cfg.ProbeTimeout},
		failCounts: make(map[uuid.UUID]int),
		cfg:        cfg,
		logger:     logger,
	}
}

// SetDegraded configures the degraded-endpoint callback.
func (c *Checker) SetDegraded(fn DegradedFunc) {
	c.onDegraded = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until quit is signalled.
func (c *Checker) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval-time.Second)
			c.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll probes every registered webhook endpoint with bounded concurrency.
func (c *Checker) CheckAll(ctx context.Context) {
	subs := c.subs.List()

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	live := make(map[uuid.UUID]bool, len(subs))
	for _, s := range subs {
		live[s.ID] = true
	}

	for _, s := range subs {
		wg.Add(1)
		go func(sub *events.Subscription) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			success := c.probeEndpoint(ctx, sub.URL)

			if c.onMetrics != nil {
				c.onMetrics(success)
			}

			c.mu.Lock()
			prev := c.failCounts[sub.ID]
			if success {
				c.failCounts[sub.ID] = 0
			} else {
				c.failCounts[sub.ID]++
			}
			count := c.failCounts[sub.ID]
			c.mu.Unlock()

			switch {
			case success && prev >= c.cfg.FailThreshold:
				c.logger.Info("webhook endpoint recovered",
					zap.String("subscription", sub.ID.String()),
					zap.String("url", sub.URL),
				)
			case !success && count == c.cfg.FailThreshold:
				// Transition: reachable → degraded (exactly at threshold)
				c.logger.Warn("webhook endpoint degraded",
					zap.String("subscription", sub.ID.String()),
					zap.String("url", sub.URL),
					zap.Int("fail_count", count),
				)
				if c.onDegraded != nil {
					c.onDegraded(sub.ID, sub.URL, count)
				}
			}
		}(s)
	}

	wg.Wait()

	// Drop counters for unsubscribed endpoints.
	c.mu.Lock()
	for id := range c.failCounts {
		if !live[id] {
			delete(c.failCounts, id)
		}
	}
	c.mu.Unlock()
}

// probeEndpoint attempts HEAD then GET, returning true on any response below
// 500. Webhook receivers commonly reject non-signed requests with 4xx, which
// still proves the endpoint is alive.
func (c *Checker) probeEndpoint(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode < 500 {
			return true
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
