// Package registrar manages the single admin identity and the current
// verifier-root commitment.
//
// The admin slot is claimed exactly once, by whichever caller gets there
// first; every later claim fails with ErrAlreadyInitialized. Only the admin
// may overwrite the root, and no history of previous roots is kept —
// rotating the root invalidates unused credentials bound to the old root
// without touching already-minted tokens.
//
// Two implementations of the Registrar interface are provided:
//   - MemoryRegistrar: in-process, for testing and single-node deployments.
//   - PostgresRegistrar: durable, for production use.
package registrar

import (
	"context"
	"errors"

	"github.com/gatemint/gatemint/internal/commitment"
)

// ErrAlreadyInitialized is returned when an admin claim arrives after the
// slot has been taken.
var ErrAlreadyInitialized = errors.New("admin already claimed")

// ErrNotInitialized is returned by root updates attempted before any admin exists.
var ErrNotInitialized = errors.New("admin not claimed yet")

// ErrUnauthorized is returned when a non-admin caller attempts a root update.
var ErrUnauthorized = errors.New("caller is not the admin")

// Registrar is the interface for admin and verifier-root state.
type Registrar interface {
	// ClaimAdmin fixes the admin identity to caller. Succeeds at most once
	// per ledger lifetime.
	ClaimAdmin(ctx context.Context, caller commitment.Address) error

	// SetRoot overwrites the verifier root. The caller must be the admin.
	// Subsequent verifications observe the new root immediately.
	SetRoot(ctx context.Context, caller commitment.Address, root commitment.Root) error

	// Root returns the last-set root, or commitment.ZeroRoot if never set.
	Root(ctx context.Context) (commitment.Root, error)

	// Admin returns the claimed admin, or commitment.ZeroAddress if unclaimed.
	Admin(ctx context.Context) (commitment.Address, error)
}
