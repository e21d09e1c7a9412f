package account

import (
	"context"
	"sync"
	"time"

	"github.com/pdabank/pdabank/internal/identity"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[identity.Address]Record
}

// NewMemoryRepository constructs an in-memory repository for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[identity.Address]Record)}
}

func (r *memoryRepository) Get(_ context.Context, addr identity.Address) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.storage[addr]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepository) Create(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.storage[rec.Address]; exists && existing.Initialized() {
		return ErrAlreadyInitialized
	}
	r.storage[rec.Address] = rec
	return nil
}

func (r *memoryRepository) UpdateBalance(_ context.Context, addr identity.Address, prev, next uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.storage[addr]
	if !ok {
		return ErrRecordNotFound
	}
	if rec.Balance != prev {
		return ErrBalanceConflict
	}
	rec.Balance = next
	rec.UpdatedAt = at
	r.storage[addr] = rec
	return nil
}
