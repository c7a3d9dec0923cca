package verifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
)

// verifyRequest is the wire payload sent to the external verifier.
type verifyRequest struct {
	Actor string `json:"actor"`
	Proof string `json:"proof"` // base64-encoded proof bytes
	Root  string `json:"root"`
}

// verifyResponse is the expected reply.
type verifyResponse struct {
	Valid bool `json:"valid"`
}

// RemoteVerifier delegates verification to an external succinct-proof
// verifier service. Any transport error, non-2xx status, or malformed
// response body is a rejection, never a surfaced failure: a credential the
// verifier cannot vouch for is not a member.
type RemoteVerifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRemoteVerifier creates a RemoteVerifier that POSTs to endpoint.
// timeout bounds each verification call; 0 means 5 seconds.
func NewRemoteVerifier(endpoint string, timeout time.Duration, logger *zap.Logger) *RemoteVerifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RemoteVerifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Verify implements Verifier.
func (v *RemoteVerifier) Verify(ctx context.Context, actor commitment.Address, credential []byte, root commitment.Root) bool {
	if len(credential) == 0 || root.IsZero() {
		return false
	}

	body, err := json.Marshal(verifyRequest{
		Actor: actor.String(),
		Proof: base64.StdEncoding.EncodeToString(credential),
		Root:  root.String(),
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Warn("remote verifier unreachable", zap.String("endpoint", v.endpoint), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		v.logger.Warn("remote verifier returned malformed body", zap.Error(err))
		return false
	}
	return out.Valid
}
