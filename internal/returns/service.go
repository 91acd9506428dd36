package returns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/platform/db"
	"github.com/sweetline/sweetline/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Return, error)
}

// Config groups service settings.
type Config struct {
	TxTimeout time.Duration
}

// Deps bundles optional collaborators of Service.
type Deps struct {
	Audit    shared.AuditRecorder
	Notifier inventory.ChangeNotifier
	Observer shared.StockObserver
	Logger   *slog.Logger
}

// Service puts returned goods back into branch stock.
type Service struct {
	repo     RepositoryPort
	audit    shared.AuditRecorder
	notifier inventory.ChangeNotifier
	observer shared.StockObserver
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps Deps, cfg Config) *Service {
	s := &Service{
		repo:     repo,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		observer: deps.Observer,
		logger:   deps.Logger,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observer == nil {
		s.observer = shared.NopStockObserver{}
	}
	return s
}

// CreateReturn credits branch stock with the returned quantity and stores the
// return, atomically. The branch row is created when the branch never held
// the sweet.
func (s *Service) CreateReturn(ctx context.Context, input CreateInput) (Return, error) {
	r, err := s.createReturn(ctx, input)
	s.observer.ObserveStockOperation("returns.create", shared.OutcomeOf(err))
	return r, err
}

func (s *Service) createReturn(ctx context.Context, input CreateInput) (Return, error) {
	if input.BranchID == 0 || input.SweetID == 0 {
		return Return{}, fmt.Errorf("%w: branch and sweet are required", shared.ErrValidation)
	}
	if !shared.ValidQuantity(input.Quantity) {
		return Return{}, shared.ErrInvalidQuantity
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Return{}, shared.ErrMissingReason
	}
	if input.ReturnDate.IsZero() {
		input.ReturnDate = s.now().Truncate(24 * time.Hour)
	}

	txCtx, cancel := db.Detach(ctx, s.cfg.TxTimeout)
	defer cancel()

	record := Return{
		BranchID:   input.BranchID,
		SweetID:    input.SweetID,
		Quantity:   input.Quantity,
		Reason:     reason,
		ReturnDate: input.ReturnDate,
		CreatedBy:  input.CreatedBy,
	}
	var balance float64
	err := s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		ledger := inventory.NewLedger(tx, inventory.MovementRef{Module: "returns", ActorID: input.CreatedBy})
		bal, err := ledger.GetOrCreate(ctx, input.BranchID, input.SweetID)
		if err != nil {
			return err
		}
		record.SweetName = bal.Name
		created, err := tx.InsertReturn(ctx, record)
		if err != nil {
			return err
		}
		record = created
		ledger.SetRefID(created.ID)
		balance, err = ledger.Credit(ctx, inventory.BranchStockKey(input.BranchID, input.SweetID), input.Quantity)
		return err
	})
	if err != nil {
		return Return{}, fmt.Errorf("returns: create: %w", err)
	}

	if s.notifier != nil {
		s.notifier.BranchStockChanged(txCtx, record.BranchID)
	}
	s.logger.Info("return recorded",
		slog.Int64("return_id", record.ID),
		slog.Int64("branch_id", record.BranchID),
		slog.Int64("sweet_id", record.SweetID),
		slog.Float64("quantity", record.Quantity),
		slog.Float64("balance", balance))
	s.recordAudit(txCtx, record)
	return record, nil
}

// List returns returns matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Return, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("returns: list: %w", err)
	}
	return items, nil
}

func (s *Service) recordAudit(ctx context.Context, r Return) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  r.CreatedBy,
		Action:   "returns:create",
		Entity:   "return",
		EntityID: shared.EntityID(r.ID),
		Meta: map[string]any{
			"branch_id": r.BranchID,
			"sweet_id":  r.SweetID,
			"quantity":  r.Quantity,
			"reason":    r.Reason,
		},
	})
	if err != nil {
		s.logger.Warn("return audit failed", slog.Int64("return_id", r.ID), slog.Any("error", err))
	}
}
