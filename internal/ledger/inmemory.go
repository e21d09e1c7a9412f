package ledger

import (
	"context"
	"sync"

	"github.com/pdabank/pdabank/internal/identity"
)

type inMemoryLedger struct {
	mu        sync.RWMutex
	schedule  Schedule
	balances  map[string]uint64
	allocated map[string]int
	minted    uint64
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and local development.
func NewInMemory(schedule Schedule) Ledger {
	if schedule == nil {
		schedule = DefaultRent()
	}
	return &inMemoryLedger{
		schedule:  schedule,
		balances:  make(map[string]uint64),
		allocated: make(map[string]int),
	}
}

func (l *inMemoryLedger) Allocate(_ context.Context, _ identity.Identity, addr identity.Address, space int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	code := recordCode(addr)
	if _, exists := l.allocated[code]; exists {
		return ErrAlreadyAllocated
	}
	l.allocated[code] = space
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, from identity.Identity, to identity.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	toCode := recordCode(to)
	if _, ok := l.allocated[toCode]; !ok {
		return ErrAccountNotFound
	}
	return l.move(identityCode(from), toCode, amount)
}

func (l *inMemoryLedger) WithdrawToIdentity(_ context.Context, from identity.Address, to identity.Identity, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fromCode := recordCode(from)
	if _, ok := l.allocated[fromCode]; !ok {
		return ErrAccountNotFound
	}
	return l.move(fromCode, identityCode(to), amount)
}

// move must be called with mu held.
func (l *inMemoryLedger) move(fromCode, toCode string, amount uint64) error {
	fromBalance := l.balances[fromCode]
	if fromBalance < amount {
		return ErrInsufficientFunds
	}
	if fromCode == toCode {
		return nil
	}
	toBalance := l.balances[toCode]
	if toBalance+amount < toBalance {
		return ErrOverflow
	}

	l.balances[fromCode] = fromBalance - amount
	l.balances[toCode] = toBalance + amount
	return nil
}

func (l *inMemoryLedger) RealValueHeld(_ context.Context, addr identity.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	code := recordCode(addr)
	if _, ok := l.allocated[code]; !ok {
		return 0, ErrAccountNotFound
	}
	return l.balances[code], nil
}

func (l *inMemoryLedger) IdentityValue(_ context.Context, id identity.Identity) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[identityCode(id)], nil
}

func (l *inMemoryLedger) Airdrop(_ context.Context, to identity.Identity, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	code := identityCode(to)
	balance := l.balances[code]
	if balance+amount < balance || l.minted+amount < l.minted {
		return ErrOverflow
	}
	l.balances[code] = balance + amount
	l.minted += amount
	return nil
}

func (l *inMemoryLedger) MinimumReserve(space int) uint64 {
	return l.schedule.MinimumReserve(space)
}
