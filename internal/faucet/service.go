package faucet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pdabank/pdabank/internal/identity"
	"github.com/pdabank/pdabank/internal/ledger"
	"github.com/pdabank/pdabank/internal/logging"
)

var (
	ErrFaucetDisabled = errors.New("faucet is disabled")
	ErrAmountTooLarge = errors.New("airdrop amount exceeds limit")
	ErrInvalidAmount  = errors.New("amount must be positive")
)

// Options controls whether and how much the faucet may mint.
type Options struct {
	Enabled   bool
	MaxAmount uint64
}

// Service funds identities out of the ledger's system faucet so they can
// pay for deposits in development and tests.
type Service struct {
	ledger ledger.Ledger
	opts   Options
	logger *slog.Logger
}

// NewService prepares a faucet service.
func NewService(ledgerBackend ledger.Ledger, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{ledger: ledgerBackend, opts: opts, logger: logger}
}

// Enabled reports whether airdrops are accepted.
func (s *Service) Enabled() bool {
	return s.opts.Enabled
}

// Airdrop credits amount to the identity and returns its new value.
func (s *Service) Airdrop(ctx context.Context, to identity.Identity, amount uint64) (uint64, error) {
	if !s.opts.Enabled {
		return 0, ErrFaucetDisabled
	}
	if to.IsZero() {
		return 0, identity.ErrInvalidIdentity
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if s.opts.MaxAmount > 0 && amount > s.opts.MaxAmount {
		return 0, fmt.Errorf("%w: max %d", ErrAmountTooLarge, s.opts.MaxAmount)
	}

	if err := s.ledger.Airdrop(ctx, to, amount); err != nil {
		return 0, fmt.Errorf("airdrop: %w", err)
	}
	value, err := s.ledger.IdentityValue(ctx, to)
	if err != nil {
		return 0, err
	}

	s.logger.Info("faucet.airdrop completed",
		slog.String("identity", to.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("balance", value),
	)
	return value, nil
}
