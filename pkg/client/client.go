package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned for 404 responses (unknown token, event, or
// webhook subscription).
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned for 403 responses: failed credential
// verification or missing ownership/approval rights.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned for 409 responses: admin already claimed, admin
// not yet claimed, or a transfer whose stated source does not match the
// token's owner.
var ErrConflict = errors.New("conflict")

// Token is the ledger view of a single token.
type Token struct {
	TokenID  uint64 `json:"token_id"`
	Owner    string `json:"owner"`
	Approved string `json:"approved"`
}

// RootStatus reports the published verifier root. Set is false until the
// admin publishes one.
type RootStatus struct {
	Root string `json:"root"`
	Set  bool   `json:"set"`
}

// Event mirrors the service's journal records. Fields not meaningful for
// an event type are left zero.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TokenID   uint64    `json:"token_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Approved  string    `json:"approved,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	Granted   bool      `json:"granted,omitempty"`
}

// WebhookSubscription describes a registered webhook. Secret is populated
// only in the SubscribeWebhook response; listings redact it.
type WebhookSubscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Types     []string  `json:"types,omitempty"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is the Gatemint SDK entry point. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithActorToken attaches a pre-obtained actor token to every
// authenticated request.
func WithActorToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the gate service at baseURL.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithActorToken(token),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Authenticate requests an actor token for the given 0x-prefixed address
// from the development token endpoint and stores it for subsequent calls.
// Production deployments disable that endpoint; use WithActorToken with a
// token minted out of band instead.
func (c *Client) Authenticate(ctx context.Context, address string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/token",
		map[string]string{"address": address}, &resp); err != nil {
		return err
	}
	c.mu.Lock()
	c.bearerToken = resp.Token
	c.mu.Unlock()
	return nil
}

// BearerToken returns the actor token currently attached to the client,
// or "" when unauthenticated.
func (c *Client) BearerToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bearerToken
}

// ClaimAdmin claims the admin slot for the authenticated actor. Returns
// ErrConflict if the slot is already taken.
func (c *Client) ClaimAdmin(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/admin/claim", nil, nil)
}

// SetRoot publishes a new verifier root as 0x-prefixed 64-digit hex.
// Admin only.
func (c *Client) SetRoot(ctx context.Context, root string) error {
	return c.doJSON(ctx, http.MethodPut, "/api/v1/admin/root",
		map[string]string{"root": root}, nil)
}

// Root returns the current verifier-root state.
func (c *Client) Root(ctx context.Context) (*RootStatus, error) {
	var out RootStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/root", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Admin returns the 0x-prefixed admin address, or the zero address if the
// slot has not been claimed.
func (c *Client) Admin(ctx context.Context) (string, error) {
	var resp struct {
		Admin string `json:"admin"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/admin", nil, &resp); err != nil {
		return "", err
	}
	return resp.Admin, nil
}

// Issue submits a credential for the authenticated actor. On successful
// verification it returns the newly minted token id; a rejected credential
// yields ErrForbidden.
func (c *Client) Issue(ctx context.Context, credential []byte) (uint64, error) {
	var resp struct {
		TokenID uint64 `json:"token_id"`
	}
	body := map[string]string{
		"credential": base64.StdEncoding.EncodeToString(credential),
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/tokens", body, &resp); err != nil {
		return 0, err
	}
	return resp.TokenID, nil
}

// GetToken returns the owner and approval state of a token.
func (c *Client) GetToken(ctx context.Context, tokenID uint64) (*Token, error) {
	var out Token
	path := fmt.Sprintf("/api/v1/tokens/%d", tokenID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance returns the number of tokens owned by the given address.
func (c *Client) Balance(ctx context.Context, address string) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/actors/"+address+"/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// TotalSupply returns the number of tokens currently in circulation.
func (c *Client) TotalSupply(ctx context.Context) (uint64, error) {
	var resp struct {
		TotalSupply uint64 `json:"total_supply"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/supply", nil, &resp); err != nil {
		return 0, err
	}
	return resp.TotalSupply, nil
}

// Approve sets the token's single approved actor. Pass the zero address to
// clear the approval.
func (c *Client) Approve(ctx context.Context, tokenID uint64, to string) error {
	path := fmt.Sprintf("/api/v1/tokens/%d/approve", tokenID)
	return c.doJSON(ctx, http.MethodPost, path, map[string]string{"to": to}, nil)
}

// Transfer moves a token from from to to on behalf of the authenticated
// actor, who must be the owner, the approved actor, or an operator.
func (c *Client) Transfer(ctx context.Context, tokenID uint64, from, to string) error {
	path := fmt.Sprintf("/api/v1/tokens/%d/transfer", tokenID)
	return c.doJSON(ctx, http.MethodPost, path,
		map[string]string{"from": from, "to": to}, nil)
}

// Burn permanently retires a token. The authenticated actor must be the
// owner or an operator; a single-token approval does not suffice.
func (c *Client) Burn(ctx context.Context, tokenID uint64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/tokens/%d", tokenID), nil, nil)
}

// SetOperator grants or revokes blanket operator rights over the
// authenticated actor's tokens.
func (c *Client) SetOperator(ctx context.Context, operator string, approved bool) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/operators",
		map[string]any{"operator": operator, "approved": approved}, nil)
}

// IsOperator reports whether operator holds blanket rights over owner's
// tokens.
func (c *Client) IsOperator(ctx context.Context, owner, operator string) (bool, error) {
	var resp struct {
		Approved bool `json:"approved"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/operators/"+owner+"/"+operator, nil, &resp); err != nil {
		return false, err
	}
	return resp.Approved, nil
}

// Events returns journal events with sequence numbers greater than since.
// Pass 0 for the full journal.
func (c *Client) Events(ctx context.Context, since uint64) ([]Event, error) {
	var resp struct {
		Events []Event `json:"events"`
	}
	path := fmt.Sprintf("/api/v1/events?since=%d", since)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// GetEvent fetches a single journal event by sequence number.
func (c *Client) GetEvent(ctx context.Context, seq uint64) (*Event, error) {
	var out Event
	path := fmt.Sprintf("/api/v1/events/%d", seq)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubscribeWebhook registers a webhook for the given event types (all
// types when types is empty). The returned subscription carries the
// HMAC signing secret exactly once; it is never returned again.
func (c *Client) SubscribeWebhook(ctx context.Context, url string, types []string) (*WebhookSubscription, error) {
	var resp WebhookSubscription
	body := map[string]any{"url": url}
	if len(types) > 0 {
		body["types"] = types
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/webhooks", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListWebhooks returns the registered webhook subscriptions with secrets
// redacted.
func (c *Client) ListWebhooks(ctx context.Context) ([]WebhookSubscription, error) {
	var resp struct {
		Subscriptions []WebhookSubscription `json:"subscriptions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/webhooks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Subscriptions, nil
}

// DeleteWebhook removes a webhook subscription by id.
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/webhooks/"+id, nil, nil)
}

// doJSON performs a JSON request against the gate service, attaching the
// bearer token when present, and decodes the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps an error response to a sentinel-wrapped error carrying
// the server's message.
func statusError(status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, ErrForbidden)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	default:
		return fmt.Errorf("server error %d: %s", status, msg)
	}
}
