package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pdabank/pdabank/internal/identity"
)

// PostgresLedger persists value movements in PostgreSQL as balanced
// double-entry postings.
type PostgresLedger struct {
	db       *pgxpool.Pool
	schedule Schedule
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool, schedule Schedule) *PostgresLedger {
	if schedule == nil {
		schedule = DefaultRent()
	}
	return &PostgresLedger{db: db, schedule: schedule}
}

// Allocate registers the record slot and its size.
func (l *PostgresLedger) Allocate(ctx context.Context, _ identity.Identity, addr identity.Address, space int) error {
	cmd, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code, space) VALUES ($1, $2, $3)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), recordCode(addr), space)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyAllocated
	}
	return nil
}

// Transfer moves value from an identity into an allocated record.
func (l *PostgresLedger) Transfer(ctx context.Context, from identity.Identity, to identity.Address, amount uint64) error {
	return l.post(ctx, kindDeposit, identityCode(from), recordCode(to), amount)
}

// WithdrawToIdentity moves value out of an allocated record to an identity.
func (l *PostgresLedger) WithdrawToIdentity(ctx context.Context, from identity.Address, to identity.Identity, amount uint64) error {
	return l.post(ctx, kindWithdraw, recordCode(from), identityCode(to), amount)
}

// Airdrop mints value from the faucet system account.
func (l *PostgresLedger) Airdrop(ctx context.Context, to identity.Identity, amount uint64) error {
	return l.post(ctx, kindAirdrop, FaucetAccountCode, identityCode(to), amount)
}

// RealValueHeld returns the summed entries of an allocated record.
func (l *PostgresLedger) RealValueHeld(ctx context.Context, addr identity.Address) (uint64, error) {
	var accountID uuid.UUID
	err := l.db.QueryRow(ctx, `SELECT id FROM accounts WHERE code = $1`, recordCode(addr)).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	balance, err := balanceForAccount(ctx, l.db, accountID)
	if err != nil {
		return 0, err
	}
	return toUnsigned(balance)
}

// IdentityValue returns the value held by an identity; unknown identities hold nothing.
func (l *PostgresLedger) IdentityValue(ctx context.Context, id identity.Identity) (uint64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM entries e
        INNER JOIN accounts a ON a.id = e.account_id
        WHERE a.code = $1`
	var balance int64
	if err := l.db.QueryRow(ctx, query, identityCode(id)).Scan(&balance); err != nil {
		return 0, err
	}
	return toUnsigned(balance)
}

// MinimumReserve applies the configured schedule.
func (l *PostgresLedger) MinimumReserve(space int) uint64 {
	return l.schedule.MinimumReserve(space)
}

func (l *PostgresLedger) post(ctx context.Context, kind, fromCode, toCode string, amount uint64) error {
	if amount == 0 || amount > math.MaxInt64 {
		return ErrInvalidAmount
	}
	signed := int64(amount)

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Identities and the faucet come into existence on first use; records must be allocated.
	for _, code := range []string{fromCode, toCode} {
		if isRecordCode(code) {
			continue
		}
		if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
            ON CONFLICT (code) DO NOTHING`, uuid.New(), code); err != nil {
			return err
		}
	}

	// Lock in code order so concurrent opposite transfers cannot deadlock.
	codes := []string{fromCode, toCode}
	sort.Strings(codes)
	ids := make(map[string]uuid.UUID, 2)
	for _, code := range codes {
		id, err := accountIDForCode(ctx, tx, code)
		if err != nil {
			return err
		}
		ids[code] = id
	}

	fromBalance, err := balanceForAccount(ctx, tx, ids[fromCode])
	if err != nil {
		return err
	}
	if fromCode != FaucetAccountCode && fromBalance < signed {
		return ErrInsufficientFunds
	}
	toBalance, err := balanceForAccount(ctx, tx, ids[toCode])
	if err != nil {
		return err
	}
	if toBalance > math.MaxInt64-signed {
		return ErrOverflow
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, kind) VALUES ($1, $2)`, txID, kind); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, ids[fromCode], -signed); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, ids[toCode], signed); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func isRecordCode(code string) bool {
	return strings.HasPrefix(code, "record:")
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, q querier, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := q.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func toUnsigned(balance int64) (uint64, error) {
	if balance < 0 {
		return 0, fmt.Errorf("ledger corrupted: negative balance %d", balance)
	}
	return uint64(balance), nil
}
