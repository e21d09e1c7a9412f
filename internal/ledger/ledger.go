package ledger

import (
	"context"
	"errors"

	"github.com/pdabank/pdabank/internal/identity"
)

var (
	// ErrInsufficientFunds occurs when the debited holder lacks the value
	// required to cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the record slot was never allocated.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAlreadyAllocated indicates the record slot already exists.
	ErrAlreadyAllocated = errors.New("account already allocated")

	// ErrInvalidAmount rejects zero amounts and amounts the backend cannot represent.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOverflow indicates crediting a holder would exceed the representable range.
	ErrOverflow = errors.New("balance overflow")
)

const (
	// FaucetAccountCode is the system holder airdrops are minted from. It is
	// the only holder allowed to go negative.
	FaucetAccountCode = "system:faucet"

	kindDeposit  = "deposit"
	kindWithdraw = "withdraw"
	kindAirdrop  = "airdrop"
)

// Ledger holds the real transferable value for identities and record slots.
// Every transfer is atomic: either both sides move or neither does.
type Ledger interface {
	Allocate(ctx context.Context, payer identity.Identity, addr identity.Address, space int) error
	Transfer(ctx context.Context, from identity.Identity, to identity.Address, amount uint64) error
	WithdrawToIdentity(ctx context.Context, from identity.Address, to identity.Identity, amount uint64) error
	RealValueHeld(ctx context.Context, addr identity.Address) (uint64, error)
	IdentityValue(ctx context.Context, id identity.Identity) (uint64, error)
	Airdrop(ctx context.Context, to identity.Identity, amount uint64) error
	MinimumReserve(space int) uint64
}

func identityCode(id identity.Identity) string {
	return "identity:" + id.String()
}

func recordCode(addr identity.Address) string {
	return "record:" + addr.String()
}
