package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"
	"unicode/utf8"

	"github.com/pdabank/pdabank/internal/identity"
	"github.com/pdabank/pdabank/internal/ledger"
	"github.com/pdabank/pdabank/internal/lock"
	"github.com/pdabank/pdabank/internal/logging"
)

const compensationTimeout = 5 * time.Second

// Options tunes record addressing and sizing.
type Options struct {
	DomainTag   string
	RecordSpace int
}

// Service owns the record lifecycle: create once, then deposit and withdraw
// while keeping Balance equal to the value the ledger holds for the record.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	locker lock.Locker
	opts   Options
	logger *slog.Logger
}

// NewService builds an account service instance.
func NewService(repo Repository, ledgerBackend ledger.Ledger, locker lock.Locker, opts Options, logger *slog.Logger) *Service {
	if opts.DomainTag == "" {
		opts.DomainTag = identity.DefaultDomainTag
	}
	if opts.RecordSpace <= 0 {
		opts.RecordSpace = 5000
	}
	if locker == nil {
		locker = lock.NewMemory()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, ledger: ledgerBackend, locker: locker, opts: opts, logger: logger}
}

// AddressOf returns the record address owned by the given identity.
func (s *Service) AddressOf(owner identity.Identity) identity.Address {
	return identity.DeriveAddress(owner, s.opts.DomainTag)
}

// Create initializes the caller's record with the given display name. It
// never overwrites an initialized record.
func (s *Service) Create(ctx context.Context, caller identity.Identity, name string) (Record, error) {
	if caller.IsZero() {
		return Record{}, ErrUnauthorized
	}
	if err := s.validateName(name); err != nil {
		return Record{}, err
	}

	addr := s.AddressOf(caller)
	unlock, err := s.locker.Lock(ctx, addr.String())
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	existing, err := s.repo.Get(ctx, addr)
	switch {
	case err == nil && existing.Initialized():
		return Record{}, ErrAlreadyInitialized
	case err != nil && !errors.Is(err, ErrRecordNotFound):
		return Record{}, err
	}

	// A slot left allocated by an interrupted create is reused.
	if err := s.ledger.Allocate(ctx, caller, addr, s.opts.RecordSpace); err != nil && !errors.Is(err, ledger.ErrAlreadyAllocated) {
		return Record{}, fmt.Errorf("allocate record: %w", err)
	}

	now := time.Now().UTC()
	rec := Record{
		Address:     addr,
		DisplayName: name,
		Balance:     0,
		Owner:       caller,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}

	s.logger.Info("account.create completed",
		slog.String("address", addr.String()),
		slog.String("owner", caller.String()),
	)
	return rec, nil
}

// Deposit moves amount from the caller into the record, then raises the
// mirrored balance. Any identity may deposit.
func (s *Service) Deposit(ctx context.Context, addr identity.Address, caller identity.Identity, amount uint64) (Record, error) {
	if amount == 0 {
		return Record{}, ErrInvalidAmount
	}

	unlock, err := s.locker.Lock(ctx, addr.String())
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	rec, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Record{}, err
	}

	next, carry := bits.Add64(rec.Balance, amount, 0)
	if carry != 0 {
		return Record{}, ErrOverflow
	}

	if err := s.ledger.Transfer(ctx, caller, addr, amount); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateBalance(ctx, addr, rec.Balance, next, now); err != nil {
		s.compensate(ctx, "deposit", addr, amount, err, func(ctx context.Context) error {
			return s.ledger.WithdrawToIdentity(ctx, addr, caller, amount)
		})
		return Record{}, fmt.Errorf("persist balance: %w", err)
	}
	rec.Balance = next
	rec.UpdatedAt = now

	s.logger.Info("account.deposit completed",
		slog.String("address", addr.String()),
		slog.String("caller", caller.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("balance", rec.Balance),
	)
	return rec, nil
}

// Withdraw moves amount from the record back to its owner. The real value left
// behind must still cover the reserve floor.
func (s *Service) Withdraw(ctx context.Context, addr identity.Address, caller identity.Identity, amount uint64) (Record, error) {
	if amount == 0 {
		return Record{}, ErrInvalidAmount
	}

	unlock, err := s.locker.Lock(ctx, addr.String())
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	rec, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Record{}, err
	}

	if caller.IsZero() || caller != rec.Owner {
		s.logger.Warn("account.withdraw rejected",
			slog.String("address", addr.String()),
			slog.String("caller", caller.String()),
			slog.String("reason", "not owner"),
		)
		return Record{}, ErrUnauthorized
	}

	held, err := s.ledger.RealValueHeld(ctx, addr)
	if err != nil {
		return Record{}, fmt.Errorf("read real value: %w", err)
	}
	reserve := s.ledger.MinimumReserve(s.opts.RecordSpace)
	if held < reserve || held-reserve < amount {
		return Record{}, ErrInsufficientFunds
	}
	if amount > rec.Balance {
		s.logger.Error("account balance drifted from ledger",
			slog.String("address", addr.String()),
			slog.Uint64("balance", rec.Balance),
			slog.Uint64("real_value", held),
		)
		return Record{}, ErrUnderflow
	}

	if err := s.ledger.WithdrawToIdentity(ctx, addr, caller, amount); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	next := rec.Balance - amount
	now := time.Now().UTC()
	if err := s.repo.UpdateBalance(ctx, addr, rec.Balance, next, now); err != nil {
		s.compensate(ctx, "withdraw", addr, amount, err, func(ctx context.Context) error {
			return s.ledger.Transfer(ctx, caller, addr, amount)
		})
		return Record{}, fmt.Errorf("persist balance: %w", err)
	}
	rec.Balance = next
	rec.UpdatedAt = now

	s.logger.Info("account.withdraw completed",
		slog.String("address", addr.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("balance", rec.Balance),
	)
	return rec, nil
}

// Get retrieves a record by address.
func (s *Service) Get(ctx context.Context, addr identity.Address) (Record, error) {
	return s.repo.Get(ctx, addr)
}

// Statement returns the record alongside the ledger's real value and reserve.
func (s *Service) Statement(ctx context.Context, addr identity.Address) (Statement, error) {
	rec, err := s.repo.Get(ctx, addr)
	if err != nil {
		return Statement{}, err
	}
	held, err := s.ledger.RealValueHeld(ctx, addr)
	if err != nil {
		return Statement{}, fmt.Errorf("read real value: %w", err)
	}
	reserve := s.ledger.MinimumReserve(s.opts.RecordSpace)

	var withdrawable uint64
	if held > reserve {
		withdrawable = min(held-reserve, rec.Balance)
	}
	return Statement{
		Record:       rec,
		RealValue:    held,
		Reserve:      reserve,
		Withdrawable: withdrawable,
		AsOf:         time.Now().UTC(),
	}, nil
}

func (s *Service) validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: name must be valid UTF-8", ErrInvalidName)
	}
	if (Record{DisplayName: name}).EncodedSize() > s.opts.RecordSpace {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, MaxNameLength(s.opts.RecordSpace))
	}
	return nil
}

// compensate reverses a committed ledger transfer after the record store
// rejected the matching balance update.
func (s *Service) compensate(ctx context.Context, op string, addr identity.Address, amount uint64, cause error, reverse func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	attrs := []any{
		slog.String("op", op),
		slog.String("address", addr.String()),
		slog.Uint64("amount", amount),
		slog.Any("cause", cause),
	}
	if err := reverse(ctx); err != nil {
		s.logger.Error("compensating transfer failed; ledger and record diverged", append(attrs, slog.Any("error", err))...)
		return
	}
	s.logger.Warn("compensating transfer applied", attrs...)
}
