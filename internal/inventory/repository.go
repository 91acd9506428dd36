package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sweetline/sweetline/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRawMaterials returns every raw material ordered by name.
func (r *Repository) ListRawMaterials(ctx context.Context) ([]RawMaterial, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, unit, current_stock, reorder_level, price_per_unit, updated_at
		FROM raw_materials
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawMaterial
	for rows.Next() {
		var m RawMaterial
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.CurrentStock, &m.ReorderLevel, &m.PricePerUnit, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListFinishedGoods returns every central finished good ordered by name.
func (r *Repository) ListFinishedGoods(ctx context.Context) ([]FinishedGood, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, unit, unit_price, current_stock, reorder_level, updated_at
		FROM finished_goods
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FinishedGood
	for rows.Next() {
		var g FinishedGood
		if err := rows.Scan(&g.ID, &g.Name, &g.Unit, &g.UnitPrice, &g.CurrentStock, &g.ReorderLevel, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListBranchStock returns branch rows joined with sweet details. A zero
// branchID lists every branch.
func (r *Repository) ListBranchStock(ctx context.Context, branchID int64) ([]BranchStock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT bs.id, bs.branch_id, b.name, bs.sweet_id, fg.name, fg.unit_price,
		       bs.current_stock, fg.reorder_level, bs.updated_at
		FROM branch_stock bs
		JOIN branches b ON b.id = bs.branch_id
		JOIN finished_goods fg ON fg.id = bs.sweet_id
		WHERE ($1::bigint = 0 OR bs.branch_id = $1)
		ORDER BY b.name, fg.name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BranchStock
	for rows.Next() {
		var s BranchStock
		if err := rows.Scan(&s.ID, &s.BranchID, &s.BranchName, &s.SweetID, &s.SweetName, &s.UnitPrice,
			&s.CurrentStock, &s.ReorderLevel, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.IsLowStock = s.CurrentStock <= s.ReorderLevel
		out = append(out, s)
	}
	return out, rows.Err()
}

// LowStock lists raw materials and finished goods at or below reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]LowStockAlert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT 'raw_material', id, name, unit, current_stock, reorder_level
		FROM raw_materials WHERE current_stock <= reorder_level
		UNION ALL
		SELECT 'finished_good', id, name, unit, current_stock, reorder_level
		FROM finished_goods WHERE current_stock <= reorder_level
		ORDER BY 1, 3`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockAlert
	for rows.Next() {
		var a LowStockAlert
		var pool string
		if err := rows.Scan(&pool, &a.ID, &a.Name, &a.Unit, &a.CurrentStock, &a.ReorderLevel); err != nil {
			return nil, err
		}
		a.Pool = Pool(pool)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListMovements returns journal entries newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pool, item_id, COALESCE(branch_id, 0), qty_in, qty_out, balance_after,
		       ref_module, COALESCE(ref_id, 0), actor_id, created_at
		FROM stock_movements
		WHERE ($1::text = '' OR pool = $1)
		  AND ($2::bigint = 0 OR item_id = $2)
		  AND ($3::bigint = 0 OR branch_id = $3)
		ORDER BY id DESC
		LIMIT $4 OFFSET $5`,
		string(filter.Pool), filter.ItemID, filter.BranchID, filter.Page.Limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var pool string
		if err := rows.Scan(&m.ID, &pool, &m.ItemID, &m.BranchID, &m.QtyIn, &m.QtyOut, &m.BalanceAfter,
			&m.RefModule, &m.RefID, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Pool = Pool(pool)
		out = append(out, m)
	}
	return out, rows.Err()
}

type txStore struct {
	tx pgx.Tx
}

// NewTxStore adapts a pgx transaction to the ledger's TxStore.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

func (s *txStore) LockBalance(ctx context.Context, key Key) (Balance, error) {
	bal := Balance{Key: key}
	var row pgx.Row
	switch key.Pool {
	case PoolRawMaterial:
		row = s.tx.QueryRow(ctx, `
			SELECT name, current_stock, reorder_level, price_per_unit
			FROM raw_materials WHERE id = $1 FOR UPDATE`, key.ItemID)
	case PoolFinishedGood:
		row = s.tx.QueryRow(ctx, `
			SELECT name, current_stock, reorder_level, unit_price
			FROM finished_goods WHERE id = $1 FOR UPDATE`, key.ItemID)
	case PoolBranchStock:
		row = s.tx.QueryRow(ctx, `
			SELECT fg.name, bs.current_stock, fg.reorder_level, fg.unit_price
			FROM branch_stock bs
			JOIN finished_goods fg ON fg.id = bs.sweet_id
			WHERE bs.branch_id = $1 AND bs.sweet_id = $2
			FOR UPDATE OF bs`, key.BranchID, key.ItemID)
	default:
		return Balance{}, fmt.Errorf("inventory: unknown pool %q", key.Pool)
	}
	if err := row.Scan(&bal.Name, &bal.Quantity, &bal.ReorderLevel, &bal.UnitPrice); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func (s *txStore) InsertBranchStock(ctx context.Context, branchID, sweetID int64) (Balance, error) {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO branch_stock (branch_id, sweet_id, current_stock)
		VALUES ($1, $2, 0)
		ON CONFLICT (branch_id, sweet_id) DO NOTHING`, branchID, sweetID)
	if err != nil {
		return Balance{}, err
	}
	return s.LockBalance(ctx, BranchStockKey(branchID, sweetID))
}

func (s *txStore) ApplyDelta(ctx context.Context, key Key, delta float64) (float64, bool, error) {
	var row pgx.Row
	switch key.Pool {
	case PoolRawMaterial:
		row = s.tx.QueryRow(ctx, `
			UPDATE raw_materials SET current_stock = current_stock + $2::numeric, updated_at = NOW()
			WHERE id = $1 AND current_stock + $2::numeric >= 0
			RETURNING current_stock`, key.ItemID, delta)
	case PoolFinishedGood:
		row = s.tx.QueryRow(ctx, `
			UPDATE finished_goods SET current_stock = current_stock + $2::numeric, updated_at = NOW()
			WHERE id = $1 AND current_stock + $2::numeric >= 0
			RETURNING current_stock`, key.ItemID, delta)
	case PoolBranchStock:
		row = s.tx.QueryRow(ctx, `
			UPDATE branch_stock SET current_stock = current_stock + $3::numeric, updated_at = NOW()
			WHERE branch_id = $1 AND sweet_id = $2 AND current_stock + $3::numeric >= 0
			RETURNING current_stock`, key.BranchID, key.ItemID, delta)
	default:
		return 0, false, fmt.Errorf("inventory: unknown pool %q", key.Pool)
	}
	var balance float64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) error {
	var branchID, refID *int64
	if m.BranchID != 0 {
		branchID = &m.BranchID
	}
	if m.RefID != 0 {
		refID = &m.RefID
	}
	_, err := s.tx.Exec(ctx, `
		INSERT INTO stock_movements (pool, item_id, branch_id, qty_in, qty_out, balance_after, ref_module, ref_id, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(m.Pool), m.ItemID, branchID, m.QtyIn, m.QtyOut, m.BalanceAfter, m.RefModule, refID, m.ActorID, m.CreatedAt)
	return err
}

func (s *txStore) FinishedGood(ctx context.Context, sweetID int64) (FinishedGood, error) {
	var g FinishedGood
	err := s.tx.QueryRow(ctx, `
		SELECT id, name, unit, unit_price, current_stock, reorder_level, updated_at
		FROM finished_goods WHERE id = $1`, sweetID).
		Scan(&g.ID, &g.Name, &g.Unit, &g.UnitPrice, &g.CurrentStock, &g.ReorderLevel, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinishedGood{}, shared.ErrNotFound
		}
		return FinishedGood{}, err
	}
	return g, nil
}
