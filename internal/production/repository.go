package production

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/platform/db"
	"github.com/sweetline/sweetline/internal/shared"
)

// TxRepository exposes the transactional operations used by Service.
type TxRepository interface {
	inventory.TxStore
	InsertProduction(ctx context.Context, p Production) (int64, error)
}

// Repository persists productions in PostgreSQL.
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

func (t *txRepo) InsertProduction(ctx context.Context, p Production) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO productions (sweet_id, quantity_produced, wastage, production_date, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.SweetID, p.QuantityProduced, p.Wastage, p.ProductionDate, p.Notes, p.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("production: insert: %w", err)
	}
	return id, nil
}

// List returns productions newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Production, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.sweet_id, fg.name, p.quantity_produced, p.wastage, p.production_date,
		       p.notes, p.created_by, p.created_at
		FROM productions p
		JOIN finished_goods fg ON fg.id = p.sweet_id
		WHERE ($1::bigint = 0 OR p.sweet_id = $1)
		  AND ($2::date IS NULL OR p.production_date >= $2)
		  AND ($3::date IS NULL OR p.production_date <= $3)
		ORDER BY p.production_date DESC, p.id DESC
		LIMIT $4 OFFSET $5`,
		filter.SweetID, shared.NullTime(filter.From), shared.NullTime(filter.To), filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Production
	for rows.Next() {
		var p Production
		if err := rows.Scan(&p.ID, &p.SweetID, &p.SweetName, &p.QuantityProduced, &p.Wastage, &p.ProductionDate,
			&p.Notes, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
