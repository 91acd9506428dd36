package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads report data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProductionByDay groups the productions of day by sweet.
func (r *Repository) ProductionByDay(ctx context.Context, day time.Time) ([]ProductionLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.sweet_id, fg.name, SUM(p.quantity_produced), SUM(p.wastage), COUNT(*)
		FROM productions p
		JOIN finished_goods fg ON fg.id = p.sweet_id
		WHERE p.production_date = $1
		GROUP BY p.sweet_id, fg.name
		ORDER BY fg.name`, day)
	if err != nil {
		return nil, fmt.Errorf("reports: production by day: %w", err)
	}
	defer rows.Close()
	var out []ProductionLine
	for rows.Next() {
		var l ProductionLine
		if err := rows.Scan(&l.SweetID, &l.SweetName, &l.QuantityProduced, &l.Wastage, &l.Count); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CompletedSalesLines returns the served lines of completed orders created in
// the filter's date range.
func (r *Repository) CompletedSalesLines(ctx context.Context, filter SalesFilter) ([]SalesLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.branch_id, b.name, oi.sweet_id, fg.name, oi.quantity, oi.total
		FROM orders o
		JOIN branches b ON b.id = o.branch_id
		JOIN order_items oi ON oi.order_id = o.id
		JOIN finished_goods fg ON fg.id = oi.sweet_id
		WHERE o.status = 'completed'
		  AND ($1::bigint = 0 OR o.branch_id = $1)
		  AND o.created_at::date BETWEEN $2 AND $3
		ORDER BY b.name, o.id, oi.line_no`,
		filter.BranchID, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("reports: sales lines: %w", err)
	}
	defer rows.Close()
	var out []SalesLine
	for rows.Next() {
		var l SalesLine
		if err := rows.Scan(&l.OrderID, &l.BranchID, &l.BranchName, &l.SweetID, &l.SweetName, &l.Quantity, &l.Total); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MaterialUsage sums raw material debits journaled by production in period.
func (r *Repository) MaterialUsage(ctx context.Context, period Period) ([]MaterialUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rm.id, rm.name, rm.unit, SUM(sm.qty_out - sm.qty_in), COUNT(DISTINCT sm.ref_id)
		FROM stock_movements sm
		JOIN raw_materials rm ON rm.id = sm.item_id
		WHERE sm.pool = 'raw_material'
		  AND sm.ref_module = 'production'
		  AND sm.created_at::date BETWEEN $1 AND $2
		GROUP BY rm.id, rm.name, rm.unit
		ORDER BY rm.name`, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("reports: material usage: %w", err)
	}
	defer rows.Close()
	var out []MaterialUsage
	for rows.Next() {
		var u MaterialUsage
		if err := rows.Scan(&u.MaterialID, &u.MaterialName, &u.Unit, &u.TotalUsed, &u.ProductionCount); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
