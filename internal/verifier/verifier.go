// Package verifier defines the pluggable membership predicate that gates
// token issuance, and its two implementations.
//
// HashVerifier is the reference predicate: it recomputes the commitment
// digest and compares it to the published root. It is a shared-secret style
// check, not a zero-knowledge proof — anyone who learns a matching
// (actor, credential) pair can pass it. RemoteVerifier delegates to an
// external succinct-proof verifier over HTTP for production deployments.
//
// A Verifier must be pure with respect to ledger state: no side effects, no
// mutation, and a verification never consumes the credential it checks.
package verifier

import (
	"context"
	"crypto/subtle"

	"github.com/gatemint/gatemint/internal/commitment"
)

// Verifier decides whether a credential proves membership under a root.
//
// Implementations must treat empty credentials as rejected, must never
// return an error-like panic for malformed input (malformed means rejected),
// and must be deterministic for a given (actor, credential, root) triple.
type Verifier interface {
	Verify(ctx context.Context, actor commitment.Address, credential []byte, root commitment.Root) bool
}

// HashVerifier is the default hash-and-compare predicate.
type HashVerifier struct{}

// NewHashVerifier creates the reference hash-commitment verifier.
func NewHashVerifier() *HashVerifier {
	return &HashVerifier{}
}

// Verify implements Verifier. A zero root rejects everything: the admin has
// not published a commitment yet, so no credential can be a member.
func (v *HashVerifier) Verify(_ context.Context, actor commitment.Address, credential []byte, root commitment.Root) bool {
	if len(credential) == 0 || root.IsZero() {
		return false
	}
	digest := commitment.Digest(actor, credential)
	return subtle.ConstantTimeCompare(digest[:], root[:]) == 1
}
