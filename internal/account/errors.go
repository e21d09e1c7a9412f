package account

import "errors"

var (
	// ErrAlreadyInitialized is returned by Create when the record already has a display name.
	ErrAlreadyInitialized = errors.New("account already initialized")
	// ErrUnauthorized is returned when a non-owner attempts a withdrawal.
	ErrUnauthorized = errors.New("caller is not the account owner")
	// ErrInsufficientFunds is returned when a withdrawal would breach the reserve floor.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTransferFailed wraps a failure of the ledger transfer step.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrOverflow is returned when a deposit would overflow the mirrored balance.
	ErrOverflow = errors.New("balance overflow")
	// ErrUnderflow is returned when a withdrawal exceeds the mirrored balance.
	ErrUnderflow = errors.New("balance underflow")

	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidName    = errors.New("invalid display name")
	ErrRecordNotFound = errors.New("account not found")
	// ErrBalanceConflict is returned when the stored balance changed between
	// read and write, meaning another writer got in.
	ErrBalanceConflict = errors.New("balance changed concurrently")
)
