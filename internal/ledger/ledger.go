// Package ledger implements the token ownership and approval state machine.
//
// Each token moves through NonExistent → Owned → Burned, with Burned
// terminal. Ids are allocated strictly increasing from 1 and never reused;
// burning retires an id permanently. An Owned token carries at most one
// approved actor, cleared on every ownership change, and any owner may grant
// blanket operator rights over their whole holding.
//
// The ledger enforces transfer and burn authorization itself but trusts its
// caller on mint — gating who may mint is the issuance service's job.
//
// Two implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and single-node deployments.
//   - PostgresLedger: durable, for production use.
package ledger

import (
	"context"
	"errors"

	"github.com/gatemint/gatemint/internal/commitment"
)

// ErrNotFound is returned when a token id refers to a non-existent or
// burned token.
var ErrNotFound = errors.New("token not found")

// ErrUnauthorized is returned when the caller lacks the required ownership,
// approval, or operator rights for the operation.
var ErrUnauthorized = errors.New("caller not authorized for token")

// ErrOwnerMismatch is returned by transfers whose declared source does not
// match the recorded owner.
var ErrOwnerMismatch = errors.New("from does not match token owner")

// ErrInvalidActor is returned when the zero address is supplied where a real
// actor is required.
var ErrInvalidActor = errors.New("zero address is not a valid actor")

// Ledger is the token ownership state machine. Every operation is atomic:
// it either applies fully or leaves all state unchanged.
type Ledger interface {
	// Mint allocates the next token id and assigns it to the given owner.
	// The ledger performs no authorization here; callers gate access.
	Mint(ctx context.Context, to commitment.Address) (uint64, error)

	// OwnerOf returns the current owner. Fails with ErrNotFound for ids
	// never minted or already burned.
	OwnerOf(ctx context.Context, tokenID uint64) (commitment.Address, error)

	// BalanceOf returns the number of tokens currently owned by owner.
	// Fails with ErrInvalidActor for the zero address.
	BalanceOf(ctx context.Context, owner commitment.Address) (uint64, error)

	// Approve sets the token's single approved actor, overwriting any
	// previous approval. The caller must be the owner or one of the
	// owner's operators.
	Approve(ctx context.Context, caller, to commitment.Address, tokenID uint64) error

	// GetApproved returns the token's approved actor, or the zero address
	// if none is set.
	GetApproved(ctx context.Context, tokenID uint64) (commitment.Address, error)

	// SetApprovalForAll grants or revokes operator rights over all of the
	// caller's tokens, present and future. Unconditional.
	SetApprovalForAll(ctx context.Context, caller, operator commitment.Address, approved bool) error

	// IsApprovedForAll reports whether operator holds blanket rights over
	// owner's tokens.
	IsApprovedForAll(ctx context.Context, owner, operator commitment.Address) (bool, error)

	// TransferFrom reassigns ownership from from to to. The caller must be
	// the owner, the token's approved actor, or an operator of the owner.
	// Any approval on the token is cleared.
	TransferFrom(ctx context.Context, caller, from, to commitment.Address, tokenID uint64) error

	// Burn retires the token permanently. Narrower authorization than
	// transfer: only the owner or an operator may burn — the single
	// approved actor may not.
	Burn(ctx context.Context, caller commitment.Address, tokenID uint64) error

	// TotalSupply returns the number of tokens currently in the Owned state.
	TotalSupply(ctx context.Context) (uint64, error)
}
