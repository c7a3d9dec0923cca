package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Subscription is a registered webhook endpoint. Secret is generated at
// subscription time and used to HMAC-sign every delivery.
type Subscription struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Types     []Type    `json:"types,omitempty"` // empty = all event types
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// wants reports whether the subscription matches the given event type.
func (s *Subscription) wants(t Type) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, want := range s.Types {
		if want == t {
			return true
		}
	}
	return false
}

// Forwarder pushes journal events to subscribed webhook URLs.
// Deliveries are fire-and-forget: one goroutine per delivery, failures
// logged and counted but never retried by the forwarder.
type Forwarder struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]*Subscription
	httpClient *http.Client
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

// NewForwarder creates a Forwarder with no subscriptions.
func NewForwarder(logger *zap.Logger) *Forwarder {
	return &Forwarder{
		subs:       make(map[uuid.UUID]*Subscription),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (f *Forwarder) SetMetricsRecorder(fn MetricsRecorder) {
	f.onMetrics = fn
}

// Subscribe registers a webhook URL with a generated HMAC secret.
// The secret is returned once, on the subscription itself.
func (f *Forwarder) Subscribe(url string, types []Type) (*Subscription, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	sub := &Subscription{
		ID:        uuid.New(),
		URL:       url,
		Types:     types,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	f.mu.Lock()
	f.subs[sub.ID] = sub
	f.mu.Unlock()
	return sub, nil
}

// Unsubscribe removes a subscription. Returns false if the id is unknown.
func (f *Forwarder) Unsubscribe(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return false
	}
	delete(f.subs, id)
	return true
}

// List returns all subscriptions with secrets redacted.
func (f *Forwarder) List() []*Subscription {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		redacted := *sub
		redacted.Secret = ""
		out = append(out, &redacted)
	}
	return out
}

// Emit implements Sink. It fans the event out to all matching subscriptions.
func (f *Forwarder) Emit(ev Event) {
	f.mu.RLock()
	var targets []*Subscription
	for _, sub := range f.subs {
		if sub.wants(ev.Type) {
			targets = append(targets, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range targets {
		go f.deliver(sub, ev)
	}
}

// deliver POSTs the event to a single subscription with an HMAC signature.
func (f *Forwarder) deliver(sub *Subscription, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("webhook: build request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gatemint-Delivery", uuid.New().String())
	req.Header.Set("X-Gatemint-Signature", Sign(sub.Secret, body))

	resp, err := f.httpClient.Do(req)
	success := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	if resp != nil {
		resp.Body.Close()
	}

	if f.onMetrics != nil {
		f.onMetrics(success)
	}
	if !success {
		f.logger.Warn("webhook delivery failed",
			zap.String("url", sub.URL),
			zap.String("subscription", sub.ID.String()),
			zap.Error(err),
		)
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret, prefixed with the
// scheme name so the algorithm can be rotated later.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// generateSecret returns a hex-encoded 32-byte random secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
