package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/platform/db"
	"github.com/sweetline/sweetline/internal/recipes"
	"github.com/sweetline/sweetline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Production, error)
}

// RequirementResolver resolves recipe requirements for a batch.
type RequirementResolver interface {
	RequirementsFor(ctx context.Context, sweetID int64, quantity float64) ([]recipes.Requirement, error)
}

// Config groups service settings.
type Config struct {
	TxTimeout time.Duration
}

// Service converts raw materials into finished goods.
type Service struct {
	repo     RepositoryPort
	resolver RequirementResolver
	audit    shared.AuditRecorder
	observer shared.StockObserver
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, resolver RequirementResolver, audit shared.AuditRecorder, observer shared.StockObserver, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = shared.NopStockObserver{}
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		audit:    audit,
		observer: observer,
		logger:   logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Produce records a batch: every required material is debited, the finished
// good is credited with the produced quantity and the record is stored, all in
// one transaction. Wastage is informational and never charged. When any
// material is short nothing changes and a *ShortageError lists every shortfall.
func (s *Service) Produce(ctx context.Context, input ProduceInput) (Production, error) {
	p, err := s.produce(ctx, input)
	s.observer.ObserveStockOperation("production.produce", shared.OutcomeOf(err))
	return p, err
}

func (s *Service) produce(ctx context.Context, input ProduceInput) (Production, error) {
	if input.SweetID == 0 {
		return Production{}, fmt.Errorf("%w: sweet_id is required", shared.ErrValidation)
	}
	if !shared.ValidQuantity(input.QuantityProduced) {
		return Production{}, shared.ErrInvalidQuantity
	}
	if input.Wastage < 0 || !shared.FitsQuantityScale(input.Wastage) {
		return Production{}, fmt.Errorf("%w: wastage must be a non-negative quantity with at most %d decimal places",
			shared.ErrValidation, shared.QuantityScale)
	}
	if input.ProductionDate.IsZero() {
		input.ProductionDate = s.now().Truncate(24 * time.Hour)
	}

	txCtx, cancel := db.Detach(ctx, s.cfg.TxTimeout)
	defer cancel()

	reqs, err := s.resolver.RequirementsFor(txCtx, input.SweetID, input.QuantityProduced)
	if err != nil {
		return Production{}, fmt.Errorf("production: resolve recipe: %w", err)
	}

	record := Production{
		SweetID:          input.SweetID,
		QuantityProduced: input.QuantityProduced,
		Wastage:          input.Wastage,
		ProductionDate:   input.ProductionDate,
		Notes:            input.Notes,
		CreatedBy:        input.CreatedBy,
	}

	err = s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		ledger := inventory.NewLedger(tx, inventory.MovementRef{Module: "production", ActorID: input.CreatedBy})
		keys := make([]inventory.Key, 0, len(reqs)+1)
		for _, req := range reqs {
			keys = append(keys, inventory.RawMaterialKey(req.MaterialID))
		}
		keys = append(keys, inventory.FinishedGoodKey(input.SweetID))
		if err := ledger.Lock(ctx, keys...); err != nil {
			return err
		}

		var shortages []shared.InsufficientStockError
		for _, req := range reqs {
			available, err := ledger.Available(ctx, inventory.RawMaterialKey(req.MaterialID))
			if err != nil {
				return err
			}
			if available+1e-9 < req.Quantity {
				shortages = append(shortages, shared.InsufficientStockError{
					Kind:      shared.StockKindRawMaterial,
					ID:        req.MaterialID,
					Requested: req.Quantity,
					Available: available,
				})
			}
		}
		if len(shortages) > 0 {
			return &ShortageError{SweetID: input.SweetID, Items: shortages}
		}

		id, err := tx.InsertProduction(ctx, record)
		if err != nil {
			return err
		}
		record.ID = id
		ledger.SetRefID(id)

		for _, req := range reqs {
			if _, err := ledger.Debit(ctx, inventory.RawMaterialKey(req.MaterialID), req.Quantity); err != nil {
				return err
			}
		}
		if _, err := ledger.Credit(ctx, inventory.FinishedGoodKey(input.SweetID), input.QuantityProduced); err != nil {
			return err
		}
		fg, err := ledger.Balance(ctx, inventory.FinishedGoodKey(input.SweetID))
		if err != nil {
			return err
		}
		record.SweetName = fg.Name
		return nil
	})
	if err != nil {
		var shortage *ShortageError
		if errors.As(err, &shortage) {
			s.logger.Info("production rejected",
				slog.Int64("sweet_id", input.SweetID),
				slog.Float64("quantity", input.QuantityProduced),
				slog.Int("short_materials", len(shortage.Items)))
			return Production{}, err
		}
		return Production{}, fmt.Errorf("production: produce: %w", err)
	}
	record.CreatedAt = s.now()

	s.logger.Info("production recorded",
		slog.Int64("production_id", record.ID),
		slog.Int64("sweet_id", record.SweetID),
		slog.Float64("quantity", record.QuantityProduced),
		slog.Float64("wastage", record.Wastage),
		slog.Int("materials", len(reqs)))
	s.recordAudit(txCtx, record, reqs)
	return record, nil
}

func (s *Service) recordAudit(ctx context.Context, p Production, reqs []recipes.Requirement) {
	if s.audit == nil {
		return
	}
	consumed := make(map[string]float64, len(reqs))
	for _, req := range reqs {
		consumed[fmt.Sprintf("%d", req.MaterialID)] = req.Quantity
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  p.CreatedBy,
		Action:   "production:produce",
		Entity:   "production",
		EntityID: shared.EntityID(p.ID),
		Meta: map[string]any{
			"sweet_id":          p.SweetID,
			"quantity_produced": p.QuantityProduced,
			"wastage":           p.Wastage,
			"consumed":          consumed,
		},
	})
	if err != nil {
		s.logger.Warn("production audit failed", slog.Int64("production_id", p.ID), slog.Any("error", err))
	}
}

// List returns recorded productions.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Production, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("production: list: %w", err)
	}
	return items, nil
}
