package distribution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/platform/db"
	"github.com/sweetline/sweetline/internal/shared"
)

const approvalModule = "distribution"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Distribution, error)
	List(ctx context.Context, filter ListFilter) ([]Distribution, error)
}

// Config groups service settings.
type Config struct {
	TxTimeout time.Duration
}

// Service drives the pending → approved/rejected lifecycle.
type Service struct {
	repo      RepositoryPort
	approvals shared.ApprovalStore
	audit     shared.AuditRecorder
	notifier  inventory.ChangeNotifier
	observer  shared.StockObserver
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// Deps bundles optional collaborators of Service.
type Deps struct {
	Approvals shared.ApprovalStore
	Audit     shared.AuditRecorder
	Notifier  inventory.ChangeNotifier
	Observer  shared.StockObserver
	Logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, deps Deps, cfg Config) *Service {
	s := &Service{
		repo:      repo,
		approvals: deps.Approvals,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
		observer:  deps.Observer,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observer == nil {
		s.observer = shared.NopStockObserver{}
	}
	return s
}

// Create stores a pending request. Stock is neither checked nor reserved.
func (s *Service) Create(ctx context.Context, input CreateInput) (Distribution, error) {
	if input.ToBranchID == 0 || input.SweetID == 0 {
		return Distribution{}, fmt.Errorf("%w: branch and sweet are required", shared.ErrValidation)
	}
	if !shared.ValidQuantity(input.Quantity) {
		return Distribution{}, shared.ErrInvalidQuantity
	}
	if input.DispatchDate.IsZero() {
		input.DispatchDate = s.now().Truncate(24 * time.Hour)
	}
	d := Distribution{
		ToBranchID:   input.ToBranchID,
		SweetID:      input.SweetID,
		Quantity:     input.Quantity,
		DispatchDate: input.DispatchDate,
		Status:       StatusPending,
		Notes:        strings.TrimSpace(input.Notes),
		CreatedBy:    input.CreatedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertDistribution(ctx, d)
		if err != nil {
			return err
		}
		d = created
		return nil
	})
	if err != nil {
		return Distribution{}, fmt.Errorf("distribution: create: %w", err)
	}
	s.logger.Info("distribution created",
		slog.Int64("distribution_id", d.ID),
		slog.Int64("branch_id", d.ToBranchID),
		slog.Int64("sweet_id", d.SweetID),
		slog.Float64("quantity", d.Quantity))
	s.recordApproval(ctx, d.ID, input.CreatedBy, shared.ApprovalSubmit, d.Notes)
	s.recordAudit(ctx, input.CreatedBy, "distribution:create", d)
	return d, nil
}

// Approve moves the requested quantity from the central store to the branch
// and marks the request approved, atomically. Insufficient central stock
// leaves the request pending.
func (s *Service) Approve(ctx context.Context, id, approvedBy int64) (Distribution, error) {
	d, err := s.approve(ctx, id, approvedBy)
	s.observer.ObserveStockOperation("distribution.approve", shared.OutcomeOf(err))
	return d, err
}

func (s *Service) approve(ctx context.Context, id, approvedBy int64) (Distribution, error) {
	txCtx, cancel := db.Detach(ctx, s.cfg.TxTimeout)
	defer cancel()

	var d Distribution
	err := s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanApprove() {
			return fmt.Errorf("%w: distribution %d is %s", shared.ErrInvalidStateTransition, id, d.Status)
		}
		ledger := inventory.NewLedger(tx, inventory.MovementRef{Module: approvalModule, RefID: id, ActorID: approvedBy})
		if _, err := ledger.Debit(ctx, inventory.FinishedGoodKey(d.SweetID), d.Quantity); err != nil {
			return err
		}
		if _, err := ledger.Credit(ctx, inventory.BranchStockKey(d.ToBranchID, d.SweetID), d.Quantity); err != nil {
			return err
		}
		at := s.now()
		d.Status = StatusApproved
		d.ApprovedBy = &approvedBy
		d.ApprovedAt = &at
		return tx.UpdateStatus(ctx, d)
	})
	if err != nil {
		return Distribution{}, fmt.Errorf("distribution: approve %d: %w", id, err)
	}
	if s.notifier != nil {
		s.notifier.BranchStockChanged(txCtx, d.ToBranchID)
	}
	s.logger.Info("distribution approved",
		slog.Int64("distribution_id", d.ID),
		slog.Int64("branch_id", d.ToBranchID),
		slog.Int64("sweet_id", d.SweetID),
		slog.Float64("quantity", d.Quantity),
		slog.Int64("approved_by", approvedBy))
	s.recordApproval(txCtx, d.ID, approvedBy, shared.ApprovalApprove, "")
	s.recordAudit(txCtx, approvedBy, "distribution:approve", d)
	return d, nil
}

// Reject closes a pending request with a mandatory reason. Stock is untouched.
func (s *Service) Reject(ctx context.Context, id int64, reason string, rejectedBy int64) (Distribution, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		s.observer.ObserveStockOperation("distribution.reject", shared.OutcomeRejected)
		return Distribution{}, shared.ErrMissingReason
	}
	var d Distribution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanReject() {
			return fmt.Errorf("%w: distribution %d is %s", shared.ErrInvalidStateTransition, id, d.Status)
		}
		at := s.now()
		d.Status = StatusRejected
		d.Reason = &reason
		d.ApprovedBy = &rejectedBy
		d.ApprovedAt = &at
		return tx.UpdateStatus(ctx, d)
	})
	s.observer.ObserveStockOperation("distribution.reject", shared.OutcomeOf(err))
	if err != nil {
		return Distribution{}, fmt.Errorf("distribution: reject %d: %w", id, err)
	}
	s.logger.Info("distribution rejected",
		slog.Int64("distribution_id", d.ID),
		slog.Int64("rejected_by", rejectedBy),
		slog.String("reason", reason))
	s.recordApproval(ctx, d.ID, rejectedBy, shared.ApprovalReject, reason)
	s.recordAudit(ctx, rejectedBy, "distribution:reject", d)
	return d, nil
}

// Delete removes a pending request.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var d Distribution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		d, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanDelete() {
			return fmt.Errorf("%w: distribution %d is %s", shared.ErrInvalidStateTransition, id, d.Status)
		}
		return tx.DeleteDistribution(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("distribution: delete %d: %w", id, err)
	}
	s.logger.Info("distribution deleted", slog.Int64("distribution_id", id), slog.Int64("actor_id", actorID))
	s.recordAudit(ctx, actorID, "distribution:delete", d)
	return nil
}

// Get loads a distribution.
func (s *Service) Get(ctx context.Context, id int64) (Distribution, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Distribution{}, fmt.Errorf("distribution: get %d: %w", id, err)
	}
	return d, nil
}

// Approvals returns the submit/approve/reject trail of a distribution, oldest
// first.
func (s *Service) Approvals(ctx context.Context, id int64) ([]shared.ApprovalLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return []shared.ApprovalLog{}, nil
	}
	logs, err := s.approvals.List(ctx, approvalModule, id)
	if err != nil {
		return nil, fmt.Errorf("distribution: approvals %d: %w", id, err)
	}
	if logs == nil {
		logs = []shared.ApprovalLog{}
	}
	return logs, nil
}

// List returns distributions matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Distribution, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("distribution: list: %w", err)
	}
	return items, nil
}

// History aggregates every distribution matching filter, ignoring paging.
func (s *Service) History(ctx context.Context, filter ListFilter) (History, error) {
	filter.Page = shared.Page{}
	items, err := s.List(ctx, filter)
	if err != nil {
		return History{}, err
	}
	return Summarize(items), nil
}

// Summarize builds the history view of items. Groups are ordered by name.
func Summarize(items []Distribution) History {
	h := History{Items: items, ByBranch: []GroupTotal{}, ByProduct: []GroupTotal{}}
	if h.Items == nil {
		h.Items = []Distribution{}
	}
	h.Summary.TotalValue = decimal.Zero
	branches := map[int64]*GroupTotal{}
	products := map[int64]*GroupTotal{}
	for _, d := range items {
		value := d.Value()
		h.Summary.TotalDistributions++
		h.Summary.TotalQuantity += d.Quantity
		h.Summary.TotalValue = h.Summary.TotalValue.Add(value)
		switch d.Status {
		case StatusPending:
			h.Summary.Pending++
		case StatusApproved:
			h.Summary.Approved++
		case StatusRejected:
			h.Summary.Rejected++
		}
		addTo(branches, d.ToBranchID, d.BranchName, d.Quantity, value)
		addTo(products, d.SweetID, d.SweetName, d.Quantity, value)
	}
	h.ByBranch = sortedGroups(branches)
	h.ByProduct = sortedGroups(products)
	return h
}

func addTo(groups map[int64]*GroupTotal, id int64, name string, qty float64, value decimal.Decimal) {
	g, ok := groups[id]
	if !ok {
		g = &GroupTotal{ID: id, Name: name, TotalValue: decimal.Zero}
		groups[id] = g
	}
	g.TotalDistributions++
	g.TotalQuantity += qty
	g.TotalValue = g.TotalValue.Add(value)
}

func sortedGroups(groups map[int64]*GroupTotal) []GroupTotal {
	out := make([]GroupTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Service) recordApproval(ctx context.Context, id, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   id,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
	if err != nil {
		s.logger.Warn("distribution approval log failed", slog.Int64("distribution_id", id), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, d Distribution) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "distribution",
		EntityID: shared.EntityID(d.ID),
		Meta: map[string]any{
			"to_branch_id": d.ToBranchID,
			"sweet_id":     d.SweetID,
			"quantity":     d.Quantity,
			"status":       string(d.Status),
		},
	})
	if err != nil {
		s.logger.Warn("distribution audit failed", slog.Int64("distribution_id", d.ID), slog.Any("error", err))
	}
}
