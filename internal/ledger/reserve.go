package ledger

import "math/bits"

const (
	// DefaultLamportsPerByteYear is the rent rate charged per stored byte.
	DefaultLamportsPerByteYear = 3480
	// DefaultExemptionYears is how many years of rent a record must hold to stay persisted.
	DefaultExemptionYears = 2
	// DefaultStorageOverhead is the per-record metadata cost added to its data size.
	DefaultStorageOverhead = 128
)

// Schedule computes the reserve floor for a record of a given size.
type Schedule interface {
	MinimumReserve(space int) uint64
}

// Rent charges a byte-proportional reserve.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
	StorageOverhead     uint64
}

// DefaultRent returns the standard rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionYears:      DefaultExemptionYears,
		StorageOverhead:     DefaultStorageOverhead,
	}
}

// MinimumReserve saturates at the maximum uint64 instead of wrapping.
func (r Rent) MinimumReserve(space int) uint64 {
	if space < 0 {
		space = 0
	}
	size, carry := bits.Add64(r.StorageOverhead, uint64(space), 0)
	if carry != 0 {
		return ^uint64(0)
	}
	hi, perYear := bits.Mul64(size, r.LamportsPerByteYear)
	if hi != 0 {
		return ^uint64(0)
	}
	hi, total := bits.Mul64(perYear, r.ExemptionYears)
	if hi != 0 {
		return ^uint64(0)
	}
	return total
}

// FixedReserve applies the same floor regardless of record size.
type FixedReserve uint64

// MinimumReserve returns the fixed floor.
func (f FixedReserve) MinimumReserve(int) uint64 {
	return uint64(f)
}
