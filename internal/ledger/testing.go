package ledger

import "github.com/pdabank/pdabank/internal/identity"

// SeedBalance is a test helper that sets the value held by an identity when
// using the in-memory ledger.
func SeedBalance(l Ledger, id identity.Identity, amount uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[identityCode(id)] = amount
	}
}

// SeedRecordValue is a test helper that overwrites the real value held by an
// allocated record, bypassing transfers. It lets tests simulate drift between
// a record and its mirrored balance.
func SeedRecordValue(l Ledger, addr identity.Address, amount uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[recordCode(addr)] = amount
	}
}
