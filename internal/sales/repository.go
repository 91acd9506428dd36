package sales

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

// TxRepository exposes transactional operations.
type TxRepository interface {
	inventory.TxStore

	InsertOrder(ctx context.Context, order Order) (Order, error)
	InsertOrderItems(ctx context.Context, orderID int64, items []OrderItem) ([]OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	UpdateOrder(ctx context.Context, order Order) error
	UpdateOrderItems(ctx context.Context, items []OrderItem) error
}

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	inventory.TxStore
	tx pgx.Tx
}

// WithTx wraps callback in a read committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

const selectOrder = `
	SELECT o.id, o.branch_id, b.name, o.customer_name, o.customer_phone, o.customer_location,
	       o.delivery_date, o.packing_charges, o.advance_paid, o.total_amount, o.status,
	       o.is_quick_bill, o.created_by, o.created_at, o.updated_at
	FROM orders o
	JOIN branches b ON b.id = o.branch_id`

const selectItems = `
	SELECT oi.id, oi.order_id, oi.line_no, oi.sweet_id, fg.name, oi.requested_quantity,
	       oi.quantity, oi.unit_price, oi.total, oi.partial_fulfillment
	FROM order_items oi
	JOIN finished_goods fg ON fg.id = oi.sweet_id`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.BranchID, &o.BranchName, &o.CustomerName, &o.CustomerPhone, &o.CustomerLocation,
		&o.DeliveryDate, &o.PackingCharges, &o.AdvancePaid, &o.TotalAmount, &status,
		&o.IsQuickBill, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, err
	}
	o.Status = OrderStatus(status)
	return o, nil
}

func scanItems(rows pgx.Rows) ([]OrderItem, error) {
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.LineNo, &it.SweetID, &it.SweetName, &it.RequestedQuantity,
			&it.Quantity, &it.UnitPrice, &it.Total, &it.PartialFulfillment); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (branch_id, customer_name, customer_phone, customer_location, delivery_date,
		                    packing_charges, advance_paid, total_amount, status, is_quick_bill, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		o.BranchID, o.CustomerName, o.CustomerPhone, o.CustomerLocation, o.DeliveryDate,
		o.PackingCharges, o.AdvancePaid, o.TotalAmount, string(o.Status), o.IsQuickBill, o.CreatedBy).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Order{}, fmt.Errorf("%w: unknown branch", shared.ErrValidation)
		}
		return Order{}, fmt.Errorf("sales: insert order: %w", err)
	}
	return o, nil
}

func (t *txRepo) InsertOrderItems(ctx context.Context, orderID int64, items []OrderItem) ([]OrderItem, error) {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO order_items (order_id, line_no, sweet_id, requested_quantity, quantity,
			                         unit_price, total, partial_fulfillment)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			orderID, it.LineNo, it.SweetID, it.RequestedQuantity, it.Quantity,
			it.UnitPrice, it.Total, it.PartialFulfillment)
	}
	br := t.tx.SendBatch(ctx, batch)
	out := make([]OrderItem, len(items))
	for i, it := range items {
		it.OrderID = orderID
		if err := br.QueryRow().Scan(&it.ID); err != nil {
			_ = br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return nil, fmt.Errorf("%w: unknown sweet %d", shared.ErrValidation, it.SweetID)
			}
			return nil, fmt.Errorf("sales: insert order item: %w", err)
		}
		out[i] = it
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("sales: insert order items: %w", err)
	}
	return out, nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, selectOrder+` WHERE o.id = $1 FOR UPDATE OF o`, id))
	if err != nil {
		return Order{}, err
	}
	rows, err := t.tx.Query(ctx, selectItems+` WHERE oi.order_id = $1 ORDER BY oi.line_no`, id)
	if err != nil {
		return Order{}, fmt.Errorf("sales: load items: %w", err)
	}
	if o.Items, err = scanItems(rows); err != nil {
		return Order{}, fmt.Errorf("sales: load items: %w", err)
	}
	return o, nil
}

func (t *txRepo) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, total_amount = $3, updated_at = NOW()
		WHERE id = $1`, o.ID, string(o.Status), o.TotalAmount)
	if err != nil {
		return fmt.Errorf("sales: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateOrderItems(ctx context.Context, items []OrderItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			UPDATE order_items
			SET quantity = $2, unit_price = $3, total = $4, partial_fulfillment = $5
			WHERE id = $1`,
			it.ID, it.Quantity, it.UnitPrice, it.Total, it.PartialFulfillment)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("sales: update order items: %w", err)
	}
	return nil
}

// ============================================================================
// READS
// ============================================================================

// GetOrder loads an order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE o.id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	rows, err := r.pool.Query(ctx, selectItems+` WHERE oi.order_id = $1 ORDER BY oi.line_no`, id)
	if err != nil {
		return Order{}, err
	}
	if o.Items, err = scanItems(rows); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListOrders returns orders newest first with their items.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	var limit *int
	if filter.Page.Limit > 0 {
		limit = &filter.Page.Limit
	}
	rows, err := r.pool.Query(ctx, selectOrder+`
		WHERE ($1::bigint = 0 OR o.branch_id = $1)
		  AND ($2::text = '' OR o.status = $2)
		  AND ($3::boolean IS NULL OR o.is_quick_bill = $3)
		  AND ($4::date IS NULL OR o.created_at >= $4)
		  AND ($5::date IS NULL OR o.created_at < $5::date + 1)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $6 OFFSET $7`,
		filter.BranchID, string(filter.Status), filter.QuickBill,
		shared.NullTime(filter.From), shared.NullTime(filter.To), limit, filter.Page.Offset)
	if err != nil {
		return nil, err
	}
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	itemRows, err := r.pool.Query(ctx, selectItems+` WHERE oi.order_id = ANY($1) ORDER BY oi.order_id, oi.line_no`, ids)
	if err != nil {
		return nil, err
	}
	items, err := scanItems(itemRows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return orders, nil
}
