package account

import (
	"time"

	"github.com/pdabank/pdabank/internal/identity"
)

const (
	discriminatorSize = 8
	stringPrefixSize  = 4
	balanceSize       = 8
)

// Record is the per-owner account entity. Balance mirrors the real value the
// ledger holds for Address.
type Record struct {
	Address     identity.Address
	DisplayName string
	Balance     uint64
	Owner       identity.Identity
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Initialized reports whether Create has completed for this record.
func (r Record) Initialized() bool {
	return r.DisplayName != ""
}

// EncodedSize is the number of bytes the record occupies in its slot.
func (r Record) EncodedSize() int {
	return encodedSize(len(r.DisplayName))
}

func encodedSize(nameLen int) int {
	return discriminatorSize + stringPrefixSize + nameLen + balanceSize + identity.Size
}

// MaxNameLength returns the longest display name that fits a slot of space bytes.
func MaxNameLength(space int) int {
	n := space - encodedSize(0)
	if n < 0 {
		return 0
	}
	return n
}

// Statement is a record together with the ledger's view of it.
type Statement struct {
	Record
	RealValue    uint64
	Reserve      uint64
	Withdrawable uint64
	AsOf         time.Time
}
