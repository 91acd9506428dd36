package recipes

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads recipes from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListBySweet returns the recipe rows of sweetID.
func (r *Repository) ListBySweet(ctx context.Context, sweetID int64) ([]Recipe, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rc.id, rc.sweet_id, rc.material_id, rm.name, rc.quantity_required
		FROM recipes rc
		JOIN raw_materials rm ON rm.id = rc.material_id
		WHERE rc.sweet_id = $1
		ORDER BY rc.material_id, rc.id`, sweetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Recipe
	for rows.Next() {
		var rc Recipe
		if err := rows.Scan(&rc.ID, &rc.SweetID, &rc.MaterialID, &rc.MaterialName, &rc.QuantityRequired); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
