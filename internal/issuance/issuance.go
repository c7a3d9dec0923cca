// Package issuance orchestrates commitment-gated minting: it checks a
// submitted credential against the current verifier root and, on success,
// mints a token to the submitting actor.
//
// The service holds no state of its own. Credentials are ephemeral — checked
// once, never persisted, and never consumed by verification: resubmitting a
// credential that still matches the current root mints another token.
package issuance

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/verifier"
)

// ErrMissingCredential is returned when the submitted credential is empty.
var ErrMissingCredential = errors.New("credential payload is empty")

// ErrVerificationFailed is returned when the verifier rejects a well-formed
// credential. This is a legitimate negative result, not a structural error.
var ErrVerificationFailed = errors.New("credential does not verify against current root")

// ErrInvalidActor is returned when issuance is requested for the zero address.
var ErrInvalidActor = errors.New("cannot issue to the zero address")

// RootSource supplies the current verifier root. *registrar.MemoryRegistrar
// and *registrar.PostgresRegistrar both satisfy this interface.
type RootSource interface {
	Root(ctx context.Context) (commitment.Root, error)
}

// Minter is the slice of the ledger the issuance service needs.
type Minter interface {
	Mint(ctx context.Context, to commitment.Address) (uint64, error)
}

// MetricsRecorder is an optional callback recording verification outcomes.
type MetricsRecorder func(verified bool)

// Service gates minting behind credential verification.
type Service struct {
	roots     RootSource
	verify    verifier.Verifier
	minter    Minter
	onMetrics MetricsRecorder
	logger    *zap.Logger
}

// NewService creates an issuance Service.
func NewService(roots RootSource, v verifier.Verifier, minter Minter, logger *zap.Logger) *Service {
	return &Service{roots: roots, verify: v, minter: minter, logger: logger}
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// Issue checks the credential against the current root and mints a token to
// the actor on success, returning the new token id. A verification failure
// is terminal for this call; retrying is the caller's decision.
func (s *Service) Issue(ctx context.Context, actor commitment.Address, credential []byte) (uint64, error) {
	if actor.IsZero() {
		return 0, ErrInvalidActor
	}
	if len(credential) == 0 {
		return 0, ErrMissingCredential
	}

	root, err := s.roots.Root(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch current root: %w", err)
	}

	ok := s.verify.Verify(ctx, actor, credential, root)
	if s.onMetrics != nil {
		s.onMetrics(ok)
	}
	if !ok {
		s.logger.Info("issuance rejected",
			zap.String("actor", actor.String()),
			zap.String("root", root.String()),
		)
		return 0, ErrVerificationFailed
	}

	id, err := s.minter.Mint(ctx, actor)
	if err != nil {
		return 0, fmt.Errorf("mint token: %w", err)
	}

	s.logger.Info("token issued",
		zap.Uint64("token_id", id),
		zap.String("actor", actor.String()),
	)
	return id, nil
}
