package sales

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/inventory/inventorytest"
	"github.com/sweetline/sweetline/internal/shared"
)

type memoryRepo struct {
	store  *inventorytest.Store
	mu     sync.Mutex
	orders map[int64]Order
	nextID int64
}

type memoryTx struct {
	*inventorytest.Tx
	repo    *memoryRepo
	pending map[int64]Order
}

func newMemoryRepo(store *inventorytest.Store) *memoryRepo {
	return &memoryRepo{store: store, orders: make(map[int64]Order)}
}

func (r *memoryRepo) id() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(func(tx *inventorytest.Tx) error {
		mtx := &memoryTx{Tx: tx, repo: r, pending: make(map[int64]Order)}
		tx.OnCommit(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for id, o := range mtx.pending {
				r.orders[id] = o
			}
		})
		return fn(ctx, mtx)
	})
}

func copyOrder(o Order) Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

func (r *memoryRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r *memoryRepo) ListOrders(_ context.Context, filter ListFilter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if filter.BranchID != 0 && o.BranchID != filter.BranchID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.QuickBill != nil && o.IsQuickBill != *filter.QuickBill {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (tx *memoryTx) InsertOrder(_ context.Context, o Order) (Order, error) {
	o.ID = tx.repo.id()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	tx.pending[o.ID] = copyOrder(o)
	return o, nil
}

func (tx *memoryTx) InsertOrderItems(_ context.Context, orderID int64, items []OrderItem) ([]OrderItem, error) {
	out := make([]OrderItem, len(items))
	for i, it := range items {
		it.ID = tx.repo.id()
		it.OrderID = orderID
		out[i] = it
	}
	o := tx.pending[orderID]
	o.Items = append([]OrderItem(nil), out...)
	tx.pending[orderID] = o
	return out, nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	tx.LockRecord("orders", id)
	if o, ok := tx.pending[id]; ok {
		return copyOrder(o), nil
	}
	return tx.repo.GetOrder(ctx, id)
}

func (tx *memoryTx) current(id int64) (Order, error) {
	if o, ok := tx.pending[id]; ok {
		return o, nil
	}
	return tx.repo.GetOrder(context.Background(), id)
}

func (tx *memoryTx) UpdateOrder(_ context.Context, o Order) error {
	cur, err := tx.current(o.ID)
	if err != nil {
		return err
	}
	cur.Status = o.Status
	cur.TotalAmount = o.TotalAmount
	cur.UpdatedAt = time.Now()
	tx.pending[o.ID] = cur
	return nil
}

func (tx *memoryTx) UpdateOrderItems(_ context.Context, items []OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	cur, err := tx.current(items[0].OrderID)
	if err != nil {
		return err
	}
	byID := make(map[int64]OrderItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	updated := make([]OrderItem, len(cur.Items))
	for i, it := range cur.Items {
		if next, ok := byID[it.ID]; ok {
			it = next
		}
		updated[i] = it
	}
	cur.Items = updated
	tx.pending[cur.ID] = cur
	return nil
}

type fakeGuard struct {
	mu      sync.Mutex
	keys    map[string]bool
	deleted []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{keys: make(map[string]bool)}
}

func (g *fakeGuard) CheckAndInsert(_ context.Context, key, module string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := module + "/" + key
	if g.keys[k] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[k] = true
	return nil
}

func (g *fakeGuard) Delete(_ context.Context, key, module string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, module+"/"+key)
	g.deleted = append(g.deleted, key)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	branches []int64
}

func (n *recordingNotifier) BranchStockChanged(_ context.Context, ids ...int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.branches = append(n.branches, ids...)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *countingObserver) ObserveStockOperation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[op+":"+outcome]++
}

const (
	branch  = int64(1)
	laddu   = int64(5)
	jalebi  = int64(6)
	cashier = int64(30)
)

type fixture struct {
	svc      *Service
	store    *inventorytest.Store
	repo     *memoryRepo
	guard    *fakeGuard
	notifier *recordingNotifier
	observer *countingObserver
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := inventorytest.NewStore()
	store.AddFinishedGood(inventory.FinishedGood{ID: laddu, Name: "Motichoor Laddu", UnitPrice: decimal.NewFromInt(250), CurrentStock: 100})
	store.AddFinishedGood(inventory.FinishedGood{ID: jalebi, Name: "Jalebi", UnitPrice: decimal.RequireFromString("180.50"), CurrentStock: 100})
	repo := newMemoryRepo(store)
	f := fixture{
		store:    store,
		repo:     repo,
		guard:    newFakeGuard(),
		notifier: &recordingNotifier{},
		observer: &countingObserver{},
	}
	f.svc = NewService(repo, Deps{
		Idempotency: f.guard,
		Notifier:    f.notifier,
		Observer:    f.observer,
	}, Config{TxTimeout: time.Second})
	return f
}

func (f fixture) branchStock(sweetID int64) float64 {
	q, _ := f.store.Quantity(inventory.BranchStockKey(branch, sweetID))
	return q
}

func TestQuickBillPartialFulfilment(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 3)

	res, err := f.svc.CreateQuickBill(context.Background(), QuickBillInput{
		BranchID:  branch,
		Items:     []LineInput{{SweetID: laddu, Quantity: 10}},
		CreatedBy: cashier,
	})
	require.NoError(t, err)

	require.Equal(t, OutcomeFulfilledWithWarnings, res.Outcome)
	require.NotNil(t, res.Warnings)
	require.Len(t, res.Warnings.InsufficientStock, 1)
	w := res.Warnings.InsufficientStock[0]
	assert.Equal(t, laddu, w.SweetID)
	assert.Equal(t, "Motichoor Laddu", w.SweetName)
	assert.Equal(t, float64(10), w.RequestedQuantity)
	assert.Equal(t, float64(3), w.AvailableStock)
	assert.Equal(t, float64(7), w.Shortfall)

	order := res.Order
	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, float64(3), item.Quantity)
	assert.Equal(t, float64(10), item.RequestedQuantity)
	assert.True(t, item.PartialFulfillment)
	assert.True(t, item.Total.Equal(decimal.NewFromInt(750)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(750)))
	assert.Equal(t, OrderStatusCompleted, order.Status)
	assert.True(t, order.IsQuickBill)
	assert.Equal(t, DefaultCustomerName, order.CustomerName)

	assert.Zero(t, f.branchStock(laddu))
	assert.Equal(t, []int64{branch}, f.notifier.branches)
	assert.Equal(t, 1, f.observer.outcomes["sales.quick_bill:"+shared.OutcomeWarning])

	stored, err := f.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(decimal.NewFromInt(750)))
	assert.Len(t, stored.Items, 1)
}

func TestQuickBillFullyFulfilled(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 10)
	f.store.SetBranchStock(branch, jalebi, 4)

	res, err := f.svc.CreateQuickBill(context.Background(), QuickBillInput{
		BranchID:     branch,
		CustomerName: "  Priya ",
		Items:        []LineInput{{SweetID: jalebi, Quantity: 2}, {SweetID: laddu, Quantity: 1.5}},
		CreatedBy:    cashier,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFulfilled, res.Outcome)
	require.Nil(t, res.Warnings)
	assert.Equal(t, "Priya", res.Order.CustomerName)

	require.Len(t, res.Order.Items, 2)
	assert.Equal(t, 1, res.Order.Items[0].LineNo)
	assert.Equal(t, jalebi, res.Order.Items[0].SweetID)
	assert.True(t, res.Order.Items[0].Total.Equal(decimal.NewFromInt(361)))
	assert.True(t, res.Order.Items[1].Total.Equal(decimal.NewFromInt(375)))
	assert.True(t, res.Order.TotalAmount.Equal(decimal.NewFromInt(736)))

	assert.Equal(t, float64(2), f.branchStock(jalebi))
	assert.Equal(t, 8.5, f.branchStock(laddu))
}

func TestQuickBillKeepsUnservedLineAtZero(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 5)

	res, err := f.svc.CreateQuickBill(context.Background(), QuickBillInput{
		BranchID:  branch,
		Items:     []LineInput{{SweetID: laddu, Quantity: 2}, {SweetID: jalebi, Quantity: 3}},
		CreatedBy: cashier,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFulfilledWithWarnings, res.Outcome)

	unserved := res.Order.Items[1]
	assert.Zero(t, unserved.Quantity)
	assert.True(t, unserved.PartialFulfillment)
	assert.True(t, unserved.Total.IsZero())
	assert.True(t, unserved.UnitPrice.Equal(decimal.RequireFromString("180.50")))
	assert.Equal(t, float64(3), res.Warnings.InsufficientStock[0].Shortfall)
	assert.Zero(t, res.Warnings.InsufficientStock[0].AvailableStock)

	_, exists := f.store.Quantity(inventory.BranchStockKey(branch, jalebi))
	assert.False(t, exists, "selling must not create branch rows")
	assert.Equal(t, float64(3), f.branchStock(laddu))
}

func TestQuickBillRepeatedSweetDrawsDownInOrder(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 5)

	res, err := f.svc.CreateQuickBill(context.Background(), QuickBillInput{
		BranchID:  branch,
		Items:     []LineInput{{SweetID: laddu, Quantity: 4}, {SweetID: laddu, Quantity: 4}},
		CreatedBy: cashier,
	})
	require.NoError(t, err)
	assert.Equal(t, float64(4), res.Order.Items[0].Quantity)
	assert.False(t, res.Order.Items[0].PartialFulfillment)
	assert.Equal(t, float64(1), res.Order.Items[1].Quantity)
	assert.Equal(t, float64(1), res.Warnings.InsufficientStock[0].AvailableStock)
	assert.Zero(t, f.branchStock(laddu))
}

func TestConcurrentQuickBillsNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 20)
	f.store.SetBranchStock(branch, jalebi, 20)

	const bills = 12
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		served float64
	)
	for i := 0; i < bills; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items := []LineInput{{SweetID: laddu, Quantity: 3}, {SweetID: jalebi, Quantity: 2}}
			if i%2 == 0 {
				items[0], items[1] = items[1], items[0]
			}
			res, err := f.svc.CreateQuickBill(context.Background(), QuickBillInput{BranchID: branch, Items: items, CreatedBy: cashier})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, it := range res.Order.Items {
				if it.SweetID == laddu {
					served += it.Quantity
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, float64(20), served)
	assert.Zero(t, f.branchStock(laddu))
	assert.Zero(t, f.branchStock(jalebi))
}

func TestQuickBillIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 10)
	input := QuickBillInput{
		BranchID:       branch,
		Items:          []LineInput{{SweetID: laddu, Quantity: 2}},
		CreatedBy:      cashier,
		IdempotencyKey: "5b0f8a8e-4a55-4d5f-9a0b-0b1f4f1c2d3e",
	}

	_, err := f.svc.CreateQuickBill(context.Background(), input)
	require.NoError(t, err)
	_, err = f.svc.CreateQuickBill(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Equal(t, float64(8), f.branchStock(laddu))
}

func TestQuickBillFailureReleasesKeyAndRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 10)
	boom := errors.New("disk full")
	f.store.FailApplies(inventory.PoolBranchStock, boom)

	input := QuickBillInput{
		BranchID:       branch,
		Items:          []LineInput{{SweetID: laddu, Quantity: 2}},
		CreatedBy:      cashier,
		IdempotencyKey: "0d8f7f8c-2a4d-4d7b-8a9e-6f0a1b2c3d4e",
	}
	_, err := f.svc.CreateQuickBill(context.Background(), input)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{input.IdempotencyKey}, f.guard.deleted)
	assert.Equal(t, float64(10), f.branchStock(laddu))
	assert.Empty(t, f.notifier.branches)

	orders, err := f.svc.ListOrders(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 1, f.observer.outcomes["sales.quick_bill:"+shared.OutcomeError])
}

func TestQuickBillUnknownSweetFailsWholeBill(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 10)

	_, err := f.svc.CreateQuickBill(context.Background(), QuickBillInput{
		BranchID:  branch,
		Items:     []LineInput{{SweetID: laddu, Quantity: 2}, {SweetID: 999, Quantity: 1}},
		CreatedBy: cashier,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, float64(10), f.branchStock(laddu))
}

func TestQuickBillValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateQuickBill(ctx, QuickBillInput{Items: []LineInput{{SweetID: laddu, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.CreateQuickBill(ctx, QuickBillInput{BranchID: branch})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.CreateQuickBill(ctx, QuickBillInput{BranchID: branch, Items: []LineInput{{SweetID: laddu, Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.CreateQuickBill(ctx, QuickBillInput{BranchID: branch, Items: []LineInput{{SweetID: laddu, Quantity: -2}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.CreateQuickBill(ctx, QuickBillInput{BranchID: branch, Items: []LineInput{{SweetID: laddu, Quantity: 0.0006}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.CreateOrder(ctx, OrderInput{BranchID: branch, CustomerName: "x", Items: []LineInput{{SweetID: laddu, Quantity: 1.0004}}})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
}

func TestOrderLifecycleAllocatesOnCompletion(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 4)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, OrderInput{
		BranchID:       branch,
		CustomerName:   "Ravi Caterers",
		CustomerPhone:  "9840012345",
		DeliveryDate:   time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		PackingCharges: decimal.NewFromInt(40),
		Items:          []LineInput{{SweetID: laddu, Quantity: 6}},
		CreatedBy:      cashier,
	})
	require.NoError(t, err)
	order := res.Order
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Empty(t, res.Outcome)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, float64(4), f.branchStock(laddu), "pending orders do not touch stock")

	res, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderStatusProcessing, cashier)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, res.Order.Status)
	assert.Equal(t, float64(4), f.branchStock(laddu))

	res, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderStatusCompleted, cashier)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFulfilledWithWarnings, res.Outcome)
	assert.Equal(t, float64(4), res.Order.Items[0].Quantity)
	assert.True(t, res.Order.TotalAmount.Equal(decimal.NewFromInt(1000)))
	assert.Zero(t, f.branchStock(laddu))
	assert.Equal(t, []int64{branch}, f.notifier.branches)

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, stored.Status)
	assert.Equal(t, float64(4), stored.Items[0].Quantity)
	assert.True(t, stored.Items[0].PartialFulfillment)

	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderStatusCancelled, cashier)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	_, err = f.svc.UpdateOrderStatus(ctx, order.ID, OrderStatusCompleted, cashier)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	assert.Zero(t, f.branchStock(laddu))
}

func TestOrderCompletionKeepsCreationPrice(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 10)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, OrderInput{
		BranchID:     branch,
		CustomerName: "Ravi Caterers",
		AdvancePaid:  decimal.NewFromInt(200),
		Items:        []LineInput{{SweetID: laddu, Quantity: 2}},
		CreatedBy:    cashier,
	})
	require.NoError(t, err)
	require.True(t, res.Order.TotalAmount.Equal(decimal.NewFromInt(500)))

	f.store.AddFinishedGood(inventory.FinishedGood{ID: laddu, Name: "Motichoor Laddu", UnitPrice: decimal.NewFromInt(300), CurrentStock: 100})

	res, err = f.svc.UpdateOrderStatus(ctx, res.Order.ID, OrderStatusCompleted, cashier)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFulfilled, res.Outcome)
	assert.True(t, res.Order.Items[0].UnitPrice.Equal(decimal.NewFromInt(250)))
	assert.True(t, res.Order.Items[0].Total.Equal(decimal.NewFromInt(500)))
	assert.True(t, res.Order.TotalAmount.Equal(decimal.NewFromInt(500)))

	stored, err := f.svc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, float64(8), f.branchStock(laddu))
}

func TestOrderCreatedCompletedAllocates(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, jalebi, 10)

	res, err := f.svc.CreateOrder(context.Background(), OrderInput{
		BranchID:     branch,
		CustomerName: "Counter",
		Status:       OrderStatusCompleted,
		Items:        []LineInput{{SweetID: jalebi, Quantity: 2}},
		CreatedBy:    cashier,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFulfilled, res.Outcome)
	assert.False(t, res.Order.IsQuickBill)
	assert.Equal(t, float64(8), f.branchStock(jalebi))

	history, err := f.svc.QuickBillHistory(context.Background(), ListFilter{BranchID: branch})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestOrderCancelLeavesStock(t *testing.T) {
	f := newFixture(t)
	f.store.SetBranchStock(branch, laddu, 4)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, OrderInput{
		BranchID:     branch,
		CustomerName: "Meena",
		Items:        []LineInput{{SweetID: laddu, Quantity: 2}},
	})
	require.NoError(t, err)
	res, err = f.svc.UpdateOrderStatus(ctx, res.Order.ID, OrderStatusCancelled, cashier)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, res.Order.Status)
	assert.Equal(t, float64(4), f.branchStock(laddu))

	_, err = f.svc.UpdateOrderStatus(ctx, res.Order.ID, OrderStatusProcessing, cashier)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []LineInput{{SweetID: laddu, Quantity: 1}}

	_, err := f.svc.CreateOrder(ctx, OrderInput{BranchID: branch, Items: items})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.CreateOrder(ctx, OrderInput{BranchID: branch, CustomerName: "x", Status: OrderStatusCancelled, Items: items})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.CreateOrder(ctx, OrderInput{BranchID: branch, CustomerName: "x", AdvancePaid: decimal.NewFromInt(-1), Items: items})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.CreateOrder(ctx, OrderInput{BranchID: branch, CustomerName: "x", Items: []LineInput{{SweetID: 999, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.UpdateOrderStatus(ctx, 1, OrderStatus("shipped"), cashier)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.UpdateOrderStatus(ctx, 12345, OrderStatusProcessing, cashier)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatus("shipped"), false},
		{OrderStatus("shipped"), OrderStatusCompleted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
