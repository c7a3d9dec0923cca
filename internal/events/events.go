// Package events defines the observable record stream of the token ledger:
// ownership changes, per-token approvals, and operator grants.
//
// Every successful ledger mutation produces exactly one record per implied
// change, appended to a Journal in mutation order. Off-band indexers consume
// the journal through polling (Since) or live subscriptions, and the
// Forwarder can push records to registered webhook endpoints.
package events

import (
	"time"

	"github.com/gatemint/gatemint/internal/commitment"
)

// Type discriminates the event payload.
type Type string

const (
	// TypeTransfer records an ownership change. Mint is a transfer from the
	// zero address; burn is a transfer to the zero address.
	TypeTransfer Type = "transfer"

	// TypeApproval records a change of a token's single approved actor.
	// A transfer or burn clears the approval, recorded as an approval of
	// the zero address.
	TypeApproval Type = "approval"

	// TypeApprovalForAll records an operator grant or revocation.
	TypeApprovalForAll Type = "approval_for_all"
)

// Event is a single record in the ledger's observable stream.
// Seq is assigned by the Journal on append, contiguous from 1.
type Event struct {
	Seq       uint64             `json:"seq"`
	Type      Type               `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	TokenID   uint64             `json:"token_id,omitempty"`
	From      commitment.Address `json:"from"`
	To        commitment.Address `json:"to"`
	Owner     commitment.Address `json:"owner"`
	Approved  commitment.Address `json:"approved"`
	Operator  commitment.Address `json:"operator"`
	Granted   bool               `json:"granted"`
}

// Sink receives events from the ledger. Implementations must not block;
// the ledger calls Emit synchronously after each successful mutation.
type Sink interface {
	Emit(ev Event)
}

// Fanout returns a Sink that forwards each event to every sink in order.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

type fanout []Sink

func (f fanout) Emit(ev Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}

// Transfer builds an ownership-change event.
func Transfer(from, to commitment.Address, tokenID uint64) Event {
	return Event{Type: TypeTransfer, From: from, To: to, TokenID: tokenID, Timestamp: time.Now().UTC()}
}

// Approval builds an approval-change event.
func Approval(owner, approved commitment.Address, tokenID uint64) Event {
	return Event{Type: TypeApproval, Owner: owner, Approved: approved, TokenID: tokenID, Timestamp: time.Now().UTC()}
}

// ApprovalForAll builds an operator-approval-change event.
func ApprovalForAll(owner, operator commitment.Address, granted bool) Event {
	return Event{Type: TypeApprovalForAll, Owner: owner, Operator: operator, Granted: granted, Timestamp: time.Now().UTC()}
}
