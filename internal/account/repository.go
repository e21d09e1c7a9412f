package account

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pdabank/pdabank/internal/identity"
)

// Repository persists account records keyed by address.
type Repository interface {
	Get(ctx context.Context, addr identity.Address) (Record, error)
	// Create stores a new record, or fills a slot that exists but was never
	// initialized. It fails with ErrAlreadyInitialized otherwise.
	Create(ctx context.Context, rec Record) error
	// UpdateBalance replaces the balance only if it still equals prev, and
	// fails with ErrBalanceConflict otherwise.
	UpdateBalance(ctx context.Context, addr identity.Address, prev, next uint64, at time.Time) error
}

// PostgresRepository stores records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a record by address.
func (r *PostgresRepository) Get(ctx context.Context, addr identity.Address) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT display_name, balance, owner, created_at, updated_at
        FROM records WHERE address = $1`, addr.String())
	var (
		rec     Record
		balance int64
		owner   string
	)
	if err := row.Scan(&rec.DisplayName, &balance, &owner, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	if balance < 0 {
		return Record{}, fmt.Errorf("record %s has negative balance %d", addr, balance)
	}
	rec.Address = addr
	rec.Balance = uint64(balance)
	if owner != "" {
		id, err := identity.ParseIdentity(owner)
		if err != nil {
			return Record{}, err
		}
		rec.Owner = id
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// Create inserts the record unless an initialized one already occupies the address.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) error {
	if rec.Balance > math.MaxInt64 {
		return ErrOverflow
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO records (address, display_name, balance, owner, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (address) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            balance = EXCLUDED.balance,
            owner = EXCLUDED.owner,
            created_at = EXCLUDED.created_at,
            updated_at = EXCLUDED.updated_at
        WHERE records.display_name = ''`,
		rec.Address.String(), rec.DisplayName, int64(rec.Balance), rec.Owner.String(), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

// UpdateBalance swaps the mirrored balance from prev to next.
func (r *PostgresRepository) UpdateBalance(ctx context.Context, addr identity.Address, prev, next uint64, at time.Time) error {
	if prev > math.MaxInt64 || next > math.MaxInt64 {
		return ErrOverflow
	}
	cmd, err := r.db.Exec(ctx, `UPDATE records SET balance = $1, updated_at = $2
        WHERE address = $3 AND balance = $4`,
		int64(next), at.UTC(), addr.String(), int64(prev))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM records WHERE address = $1)`, addr.String()).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrRecordNotFound
	}
	return ErrBalanceConflict
}
