package sales

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

const (
	moduleQuickBill = "quick_bill"
	moduleOrder     = "order"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
}

// Config groups service settings.
type Config struct {
	TxTimeout time.Duration
}

// Deps bundles optional collaborators of Service.
type Deps struct {
	Idempotency shared.IdempotencyGuard
	Audit       shared.AuditRecorder
	Notifier    inventory.ChangeNotifier
	Observer    shared.StockObserver
	Logger      *slog.Logger
}

// Service sells branch stock through quick bills and standard orders.
type Service struct {
	repo        RepositoryPort
	idempotency shared.IdempotencyGuard
	audit       shared.AuditRecorder
	notifier    inventory.ChangeNotifier
	observer    shared.StockObserver
	logger      *slog.Logger
	cfg         Config
}

// NewService constructs a sales service.
func NewService(repo RepositoryPort, deps Deps, cfg Config) *Service {
	s := &Service{
		repo:        repo,
		idempotency: deps.Idempotency,
		audit:       deps.Audit,
		notifier:    deps.Notifier,
		observer:    deps.Observer,
		logger:      deps.Logger,
		cfg:         cfg,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observer == nil {
		s.observer = shared.NopStockObserver{}
	}
	return s
}

// ============================================================================
// QUICK BILL
// ============================================================================

// CreateQuickBill sells items from the branch's stock at once. Each line is
// served up to the stock on hand; shortfalls come back as warnings and never
// fail the bill. The bill is stored completed.
func (s *Service) CreateQuickBill(ctx context.Context, input QuickBillInput) (Result, error) {
	res, err := s.createQuickBill(ctx, input)
	s.observer.ObserveStockOperation("sales.quick_bill", outcomeOf(res, err))
	return res, err
}

func (s *Service) createQuickBill(ctx context.Context, input QuickBillInput) (Result, error) {
	if input.BranchID == 0 {
		return Result{}, fmt.Errorf("%w: branch_id is required", shared.ErrValidation)
	}
	if err := validateLines(input.Items); err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		name = DefaultCustomerName
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, moduleQuickBill); err != nil {
			return Result{}, fmt.Errorf("sales: quick bill: %w", err)
		}
	}

	txCtx, cancel := db.Detach(ctx, s.cfg.TxTimeout)
	defer cancel()

	order := Order{
		BranchID:     input.BranchID,
		CustomerName: name,
		Status:       OrderStatusCompleted,
		IsQuickBill:  true,
		CreatedBy:    input.CreatedBy,
	}
	var (
		shortages []StockWarning
		branches  []int64
	)
	err := s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, shortages, branches, err = s.insertAllocated(ctx, tx, moduleQuickBill, order, newItems(input.Items))
		return err
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(txCtx, input.IdempotencyKey, moduleQuickBill); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
			}
		}
		return Result{}, fmt.Errorf("sales: quick bill: %w", err)
	}

	s.notify(txCtx, branches)
	s.logger.Info("quick bill created",
		slog.Int64("order_id", order.ID),
		slog.Int64("branch_id", order.BranchID),
		slog.Int("lines", len(order.Items)),
		slog.Int("short_lines", len(shortages)),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)))
	s.recordAudit(txCtx, input.CreatedBy, "quick_bill:create", order, shortages)
	return newResult(order, shortages), nil
}

// ============================================================================
// ORDERS
// ============================================================================

// CreateOrder stores a standard order. Prices are snapshotted from the
// central catalogue. An order created directly as completed allocates branch
// stock the same way a quick bill does; any other status leaves stock alone.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Result, error) {
	res, err := s.createOrder(ctx, input)
	if input.Status == OrderStatusCompleted {
		s.observer.ObserveStockOperation("sales.order_complete", outcomeOf(res, err))
	}
	return res, err
}

func (s *Service) createOrder(ctx context.Context, input OrderInput) (Result, error) {
	if input.BranchID == 0 {
		return Result{}, fmt.Errorf("%w: branch_id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return Result{}, fmt.Errorf("%w: customer_name is required", shared.ErrValidation)
	}
	if input.Status == "" {
		input.Status = OrderStatusPending
	}
	if !input.Status.IsValid() || input.Status == OrderStatusCancelled {
		return Result{}, fmt.Errorf("%w: cannot create an order as %q", shared.ErrValidation, input.Status)
	}
	if input.PackingCharges.IsNegative() || input.AdvancePaid.IsNegative() {
		return Result{}, fmt.Errorf("%w: charges must not be negative", shared.ErrValidation)
	}
	if err := validateLines(input.Items); err != nil {
		return Result{}, err
	}

	txCtx, cancel := db.Detach(ctx, s.cfg.TxTimeout)
	defer cancel()

	order := Order{
		BranchID:         input.BranchID,
		CustomerName:     strings.TrimSpace(input.CustomerName),
		CustomerPhone:    strings.TrimSpace(input.CustomerPhone),
		CustomerLocation: strings.TrimSpace(input.CustomerLocation),
		DeliveryDate:     shared.NullTime(input.DeliveryDate),
		PackingCharges:   input.PackingCharges,
		AdvancePaid:      input.AdvancePaid,
		Status:           input.Status,
		CreatedBy:        input.CreatedBy,
	}
	items := newItems(input.Items)
	var (
		shortages []StockWarning
		branches  []int64
	)
	err := s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if order.Status == OrderStatusCompleted {
			order, shortages, branches, err = s.insertAllocated(ctx, tx, moduleOrder, order, items)
			return err
		}
		for i := range items {
			g, err := tx.FinishedGood(ctx, items[i].SweetID)
			if err != nil {
				return fmt.Errorf("sweet %d: %w", items[i].SweetID, err)
			}
			items[i].SweetName = g.Name
			items[i].UnitPrice = g.UnitPrice
			items[i].Quantity = items[i].RequestedQuantity
			items[i].Total = LineTotal(g.UnitPrice, items[i].RequestedQuantity)
		}
		order.TotalAmount = OrderTotal(items)
		created, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		created.Items, err = tx.InsertOrderItems(ctx, created.ID, items)
		order = created
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("sales: create order: %w", err)
	}

	s.notify(txCtx, branches)
	s.logger.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("branch_id", order.BranchID),
		slog.String("status", string(order.Status)),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)))
	s.recordAudit(txCtx, input.CreatedBy, "order:create", order, shortages)
	if order.Status != OrderStatusCompleted {
		return Result{Order: order}, nil
	}
	return newResult(order, shortages), nil
}

// UpdateOrderStatus moves an order along pending → processing → completed,
// or to cancelled from pending or processing. Completed and cancelled are
// final. Entering completed allocates branch stock and rewrites the lines
// with what was actually served.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus, actorID int64) (Result, error) {
	res, err := s.updateOrderStatus(ctx, id, status, actorID)
	if status == OrderStatusCompleted {
		s.observer.ObserveStockOperation("sales.order_complete", outcomeOf(res, err))
	}
	return res, err
}

func (s *Service) updateOrderStatus(ctx context.Context, id int64, status OrderStatus, actorID int64) (Result, error) {
	if !status.IsValid() {
		return Result{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}

	txCtx, cancel := db.Detach(ctx, s.cfg.TxTimeout)
	defer cancel()

	var (
		order     Order
		shortages []StockWarning
		branches  []int64
	)
	err := s.repo.WithTx(txCtx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: order %d is %s", shared.ErrInvalidStateTransition, id, order.Status)
		}
		if status == OrderStatusCompleted {
			ledger := inventory.NewLedger(tx, inventory.MovementRef{Module: moduleOrder, RefID: id, ActorID: actorID})
			if shortages, err = allocate(ctx, ledger, order.BranchID, order.Items); err != nil {
				return err
			}
			if err := tx.UpdateOrderItems(ctx, order.Items); err != nil {
				return err
			}
			order.TotalAmount = OrderTotal(order.Items)
			branches = ledger.Branches()
		}
		order.Status = status
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return Result{}, fmt.Errorf("sales: update order %d: %w", id, err)
	}

	s.notify(txCtx, branches)
	s.logger.Info("order status updated",
		slog.Int64("order_id", id),
		slog.String("status", string(status)),
		slog.Int64("actor_id", actorID))
	s.recordAudit(txCtx, actorID, "order:"+string(status), order, shortages)
	if status != OrderStatusCompleted {
		return Result{Order: order}, nil
	}
	return newResult(order, shortages), nil
}

// GetOrder loads an order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("sales: get order %d: %w", id, err)
	}
	return o, nil
}

// ListOrders returns orders matching filter, newest first.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	items, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sales: list orders: %w", err)
	}
	return items, nil
}

// QuickBillHistory lists quick bills matching filter.
func (s *Service) QuickBillHistory(ctx context.Context, filter ListFilter) ([]Order, error) {
	quick := true
	filter.QuickBill = &quick
	return s.ListOrders(ctx, filter)
}

// insertAllocated stores a completed order and serves its lines from branch
// stock inside tx. The header goes first so movements carry the order id.
func (s *Service) insertAllocated(ctx context.Context, tx TxRepository, module string, order Order, items []OrderItem) (Order, []StockWarning, []int64, error) {
	created, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return Order{}, nil, nil, err
	}
	ledger := inventory.NewLedger(tx, inventory.MovementRef{Module: module, ActorID: order.CreatedBy})
	ledger.SetRefID(created.ID)
	shortages, err := allocate(ctx, ledger, created.BranchID, items)
	if err != nil {
		return Order{}, nil, nil, err
	}
	if created.Items, err = tx.InsertOrderItems(ctx, created.ID, items); err != nil {
		return Order{}, nil, nil, err
	}
	created.TotalAmount = OrderTotal(created.Items)
	if err := tx.UpdateOrder(ctx, created); err != nil {
		return Order{}, nil, nil, err
	}
	return created, shortages, ledger.Branches(), nil
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one item is required", shared.ErrValidation)
	}
	for i, l := range lines {
		if l.SweetID == 0 {
			return fmt.Errorf("%w: item %d: sweet_id is required", shared.ErrValidation, i+1)
		}
		if !shared.ValidQuantity(l.Quantity) {
			return fmt.Errorf("item %d: %w", i+1, shared.ErrInvalidQuantity)
		}
	}
	return nil
}

func outcomeOf(res Result, err error) string {
	if err == nil && res.Outcome == OutcomeFulfilledWithWarnings {
		return shared.OutcomeWarning
	}
	return shared.OutcomeOf(err)
}

func (s *Service) notify(ctx context.Context, branches []int64) {
	if s.notifier != nil && len(branches) > 0 {
		s.notifier.BranchStockChanged(ctx, branches...)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, o Order, shortages []StockWarning) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"branch_id":     o.BranchID,
		"status":        string(o.Status),
		"is_quick_bill": o.IsQuickBill,
		"total_amount":  o.TotalAmount.StringFixed(2),
		"lines":         len(o.Items),
	}
	if len(shortages) > 0 {
		meta["short_lines"] = len(shortages)
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: shared.EntityID(o.ID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("order audit failed", slog.Int64("order_id", o.ID), slog.Any("error", err))
	}
}
