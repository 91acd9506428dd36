package inventory

import (
	"context"
	"fmt"
	"log/slog"
)

// RepositoryPort abstracts the read side used by Service.
type RepositoryPort interface {
	ListRawMaterials(ctx context.Context) ([]RawMaterial, error)
	ListFinishedGoods(ctx context.Context) ([]FinishedGood, error)
	ListBranchStock(ctx context.Context, branchID int64) ([]BranchStock, error)
	LowStock(ctx context.Context) ([]LowStockAlert, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// Service exposes stock levels and the movement journal.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// RawMaterials lists raw materials.
func (s *Service) RawMaterials(ctx context.Context) ([]RawMaterial, error) {
	items, err := s.repo.ListRawMaterials(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: list raw materials: %w", err)
	}
	return items, nil
}

// FinishedGoods lists central finished goods.
func (s *Service) FinishedGoods(ctx context.Context) ([]FinishedGood, error) {
	items, err := s.repo.ListFinishedGoods(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: list finished goods: %w", err)
	}
	return items, nil
}

// BranchStock lists stock held at branchID, or at every branch when zero.
func (s *Service) BranchStock(ctx context.Context, branchID int64) ([]BranchStock, error) {
	items, err := s.repo.ListBranchStock(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list branch stock: %w", err)
	}
	return items, nil
}

// LowStockAlerts lists raw materials and finished goods at or below their
// reorder level.
func (s *Service) LowStockAlerts(ctx context.Context) ([]LowStockAlert, error) {
	alerts, err := s.repo.LowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("inventory: low stock: %w", err)
	}
	return alerts, nil
}

// ScanLowStock logs every low stock item and returns the count per pool.
func (s *Service) ScanLowStock(ctx context.Context) (map[Pool]int, error) {
	alerts, err := s.LowStockAlerts(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[Pool]int{PoolRawMaterial: 0, PoolFinishedGood: 0}
	for _, a := range alerts {
		counts[a.Pool]++
		s.logger.Warn("low stock",
			slog.String("pool", string(a.Pool)),
			slog.Int64("id", a.ID),
			slog.String("name", a.Name),
			slog.Float64("current_stock", a.CurrentStock),
			slog.Float64("reorder_level", a.ReorderLevel))
	}
	return counts, nil
}

// Movements lists journal entries.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	items, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	return items, nil
}
