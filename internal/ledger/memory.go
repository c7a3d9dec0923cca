package ledger

import (
	"context"
	"sync"

	"github.com/gatemint/gatemint/internal/commitment"
	"github.com/gatemint/gatemint/internal/events"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// One lock spans each operation end to end, so no caller ever observes a
// half-applied mutation and a failed precondition leaves every map untouched.
type MemoryLedger struct {
	mu        sync.RWMutex
	nextID    uint64
	owners    map[uint64]commitment.Address
	approvals map[uint64]commitment.Address
	operators map[commitment.Address]map[commitment.Address]bool
	balances  map[commitment.Address]uint64
	sink      events.Sink // nil = no event emission
}

// New creates an empty MemoryLedger. The first minted token gets id 1.
// sink may be nil to disable event emission.
func New(sink events.Sink) *MemoryLedger {
	return &MemoryLedger{
		nextID:    1,
		owners:    make(map[uint64]commitment.Address),
		approvals: make(map[uint64]commitment.Address),
		operators: make(map[commitment.Address]map[commitment.Address]bool),
		balances:  make(map[commitment.Address]uint64),
		sink:      sink,
	}
}

// Mint implements Ledger.
func (l *MemoryLedger) Mint(_ context.Context, to commitment.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.owners[id] = to
	l.balances[to]++

	l.emit(events.Transfer(commitment.ZeroAddress, to, id))
	return id, nil
}

// OwnerOf implements Ledger.
func (l *MemoryLedger) OwnerOf(_ context.Context, tokenID uint64) (commitment.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return commitment.ZeroAddress, ErrNotFound
	}
	return owner, nil
}

// BalanceOf implements Ledger.
func (l *MemoryLedger) BalanceOf(_ context.Context, owner commitment.Address) (uint64, error) {
	if owner.IsZero() {
		return 0, ErrInvalidActor
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner], nil
}

// Approve implements Ledger.
func (l *MemoryLedger) Approve(_ context.Context, caller, to commitment.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return ErrNotFound
	}
	if caller != owner && !l.operators[owner][caller] {
		return ErrUnauthorized
	}

	l.approvals[tokenID] = to
	l.emit(events.Approval(owner, to, tokenID))
	return nil
}

// GetApproved implements Ledger.
func (l *MemoryLedger) GetApproved(_ context.Context, tokenID uint64) (commitment.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.owners[tokenID]; !ok {
		return commitment.ZeroAddress, ErrNotFound
	}
	return l.approvals[tokenID], nil
}

// SetApprovalForAll implements Ledger.
func (l *MemoryLedger) SetApprovalForAll(_ context.Context, caller, operator commitment.Address, approved bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if approved {
		if l.operators[caller] == nil {
			l.operators[caller] = make(map[commitment.Address]bool)
		}
		l.operators[caller][operator] = true
	} else {
		delete(l.operators[caller], operator)
	}

	l.emit(events.ApprovalForAll(caller, operator, approved))
	return nil
}

// IsApprovedForAll implements Ledger.
func (l *MemoryLedger) IsApprovedForAll(_ context.Context, owner, operator commitment.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[owner][operator], nil
}

// TransferFrom implements Ledger.
func (l *MemoryLedger) TransferFrom(_ context.Context, caller, from, to commitment.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return ErrNotFound
	}
	if owner != from {
		return ErrOwnerMismatch
	}
	if to.IsZero() {
		return ErrInvalidActor
	}
	if caller != owner && caller != l.approvals[tokenID] && !l.operators[owner][caller] {
		return ErrUnauthorized
	}

	delete(l.approvals, tokenID)
	l.owners[tokenID] = to
	l.balances[from]--
	l.balances[to]++

	l.emit(events.Approval(owner, commitment.ZeroAddress, tokenID))
	l.emit(events.Transfer(from, to, tokenID))
	return nil
}

// Burn implements Ledger. Note the narrower authorization than TransferFrom:
// the token's single approved actor may transfer it but may not burn it.
func (l *MemoryLedger) Burn(_ context.Context, caller commitment.Address, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.owners[tokenID]
	if !ok {
		return ErrNotFound
	}
	if caller != owner && !l.operators[owner][caller] {
		return ErrUnauthorized
	}

	delete(l.approvals, tokenID)
	delete(l.owners, tokenID)
	l.balances[owner]--

	l.emit(events.Approval(owner, commitment.ZeroAddress, tokenID))
	l.emit(events.Transfer(owner, commitment.ZeroAddress, tokenID))
	return nil
}

// TotalSupply implements Ledger.
func (l *MemoryLedger) TotalSupply(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.owners)), nil
}

// emit forwards an event to the sink if one is configured.
// Callers hold the write lock, so emission order is mutation order.
func (l *MemoryLedger) emit(ev events.Event) {
	if l.sink != nil {
		l.sink.Emit(ev)
	}
}
