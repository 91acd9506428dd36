package distribution

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

// TxRepository exposes transactional operations used by Service.
type TxRepository interface {
	inventory.TxStore
	InsertDistribution(ctx context.Context, d Distribution) (Distribution, error)
	GetForUpdate(ctx context.Context, id int64) (Distribution, error)
	UpdateStatus(ctx context.Context, d Distribution) error
	DeleteDistribution(ctx context.Context, id int64) error
}

// Repository persists distributions in PostgreSQL.
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

const selectDistribution = `
	SELECT d.id, d.to_branch_id, b.name, d.sweet_id, fg.name, d.quantity, fg.unit_price,
	       d.dispatch_date, d.status, d.notes, d.reason, d.created_by, d.approved_by,
	       d.approved_at, d.created_at
	FROM distributions d
	JOIN branches b ON b.id = d.to_branch_id
	JOIN finished_goods fg ON fg.id = d.sweet_id`

func scanDistribution(row pgx.Row) (Distribution, error) {
	var d Distribution
	var status string
	err := row.Scan(&d.ID, &d.ToBranchID, &d.BranchName, &d.SweetID, &d.SweetName, &d.Quantity, &d.UnitPrice,
		&d.DispatchDate, &status, &d.Notes, &d.Reason, &d.CreatedBy, &d.ApprovedBy,
		&d.ApprovedAt, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Distribution{}, shared.ErrNotFound
		}
		return Distribution{}, err
	}
	d.Status = Status(status)
	return d, nil
}

func (t *txRepo) InsertDistribution(ctx context.Context, d Distribution) (Distribution, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO distributions (to_branch_id, sweet_id, quantity, dispatch_date, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		d.ToBranchID, d.SweetID, d.Quantity, d.DispatchDate, string(d.Status), d.Notes, d.CreatedBy).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Distribution{}, fmt.Errorf("%w: unknown branch or sweet", shared.ErrValidation)
		}
		return Distribution{}, fmt.Errorf("distribution: insert: %w", err)
	}
	return d, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Distribution, error) {
	return scanDistribution(t.tx.QueryRow(ctx, selectDistribution+` WHERE d.id = $1 FOR UPDATE OF d`, id))
}

func (t *txRepo) UpdateStatus(ctx context.Context, d Distribution) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE distributions
		SET status = $2, reason = $3, approved_by = $4, approved_at = $5
		WHERE id = $1 AND status = 'pending'`,
		d.ID, string(d.Status), d.Reason, d.ApprovedBy, d.ApprovedAt)
	if err != nil {
		return fmt.Errorf("distribution: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStateTransition
	}
	return nil
}

func (t *txRepo) DeleteDistribution(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM distributions WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("distribution: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStateTransition
	}
	return nil
}

// Get loads a distribution by id.
func (r *Repository) Get(ctx context.Context, id int64) (Distribution, error) {
	return scanDistribution(r.pool.QueryRow(ctx, selectDistribution+` WHERE d.id = $1`, id))
}

// List returns distributions newest first. A zero page limit lists everything.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Distribution, error) {
	var limit *int
	if filter.Page.Limit > 0 {
		limit = &filter.Page.Limit
	}
	rows, err := r.pool.Query(ctx, selectDistribution+`
		WHERE ($1::text = '' OR d.status = $1)
		  AND ($2::bigint = 0 OR d.to_branch_id = $2)
		  AND ($3::date IS NULL OR d.dispatch_date >= $3)
		  AND ($4::date IS NULL OR d.dispatch_date <= $4)
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $5 OFFSET $6`,
		string(filter.Status), filter.BranchID, shared.NullTime(filter.From), shared.NullTime(filter.To),
		limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Distribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
