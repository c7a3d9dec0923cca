package registrar

import (
	"context"
	"sync"

	"github.com/gatemint/gatemint/internal/commitment"
)

// MemoryRegistrar is an in-memory, thread-safe Registrar implementation.
// A single mutex spans each operation end to end, so a claim or root update
// is never partially visible.
type MemoryRegistrar struct {
	mu    sync.RWMutex
	admin commitment.Address
	root  commitment.Root
}

// New creates an empty MemoryRegistrar: no admin, zero root.
func New() *MemoryRegistrar {
	return &MemoryRegistrar{}
}

// ClaimAdmin implements Registrar.
func (r *MemoryRegistrar) ClaimAdmin(_ context.Context, caller commitment.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.admin.IsZero() {
		return ErrAlreadyInitialized
	}
	r.admin = caller
	return nil
}

// SetRoot implements Registrar.
func (r *MemoryRegistrar) SetRoot(_ context.Context, caller commitment.Address, root commitment.Root) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.admin.IsZero() {
		return ErrNotInitialized
	}
	if caller != r.admin {
		return ErrUnauthorized
	}
	r.root = root
	return nil
}

// Root implements Registrar.
func (r *MemoryRegistrar) Root(_ context.Context) (commitment.Root, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root, nil
}

// Admin implements Registrar.
func (r *MemoryRegistrar) Admin(_ context.Context) (commitment.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin, nil
}
