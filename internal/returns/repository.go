package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/platform/db"
	"github.com/sweetline/sweetline/internal/shared"
)

// TxRepository exposes the transactional operations used by Service.
type TxRepository interface {
	inventory.TxStore
	InsertReturn(ctx context.Context, r Return) (Return, error)
}

// Repository persists returns in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	inventory.TxStore
	tx pgx.Tx
}

// WithTx runs fn inside a read committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

func (t *txRepo) InsertReturn(ctx context.Context, ret Return) (Return, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO returns (branch_id, sweet_id, quantity, reason, return_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		ret.BranchID, ret.SweetID, ret.Quantity, ret.Reason, ret.ReturnDate, ret.CreatedBy).
		Scan(&ret.ID, &ret.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Return{}, fmt.Errorf("%w: unknown branch or sweet", shared.ErrValidation)
		}
		return Return{}, fmt.Errorf("returns: insert: %w", err)
	}
	return ret, nil
}

// List returns returns newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.branch_id, b.name, r.sweet_id, fg.name, r.quantity, r.reason,
		       r.return_date, r.created_by, r.created_at
		FROM returns r
		JOIN branches b ON b.id = r.branch_id
		JOIN finished_goods fg ON fg.id = r.sweet_id
		WHERE ($1::bigint = 0 OR r.branch_id = $1)
		  AND ($2::date IS NULL OR r.return_date >= $2)
		  AND ($3::date IS NULL OR r.return_date <= $3)
		ORDER BY r.return_date DESC, r.id DESC
		LIMIT $4 OFFSET $5`,
		filter.BranchID, shared.NullTime(filter.From), shared.NullTime(filter.To), filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Return
	for rows.Next() {
		var ret Return
		if err := rows.Scan(&ret.ID, &ret.BranchID, &ret.BranchName, &ret.SweetID, &ret.SweetName, &ret.Quantity,
			&ret.Reason, &ret.ReturnDate, &ret.CreatedBy, &ret.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ret)
	}
	return out, rows.Err()
}
