package distribution

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/inventory/inventorytest"
	"github.com/sweetline/sweetline/internal/shared"
)

type memoryRepo struct {
	store  *inventorytest.Store
	mu     sync.Mutex
	rows   map[int64]Distribution
	nextID int64
}

type memoryTx struct {
	*inventorytest.Tx
	repo *memoryRepo
}

func newMemoryRepo(store *inventorytest.Store) *memoryRepo {
	return &memoryRepo{store: store, rows: make(map[int64]Distribution)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(func(tx *inventorytest.Tx) error {
		return fn(ctx, &memoryTx{Tx: tx, repo: r})
	})
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Distribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return Distribution{}, shared.ErrNotFound
	}
	return d, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Distribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Distribution
	for _, d := range r.rows {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.BranchID != 0 && d.ToBranchID != filter.BranchID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (tx *memoryTx) InsertDistribution(ctx context.Context, d Distribution) (Distribution, error) {
	tx.repo.mu.Lock()
	tx.repo.nextID++
	d.ID = tx.repo.nextID
	tx.repo.mu.Unlock()
	d.CreatedAt = time.Now()
	if g, err := tx.FinishedGood(ctx, d.SweetID); err == nil {
		d.SweetName, d.UnitPrice = g.Name, g.UnitPrice
	}
	tx.OnCommit(func() {
		tx.repo.mu.Lock()
		defer tx.repo.mu.Unlock()
		tx.repo.rows[d.ID] = d
	})
	return d, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Distribution, error) {
	tx.LockRecord("distributions", id)
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) UpdateStatus(_ context.Context, d Distribution) error {
	tx.OnCommit(func() {
		tx.repo.mu.Lock()
		defer tx.repo.mu.Unlock()
		tx.repo.rows[d.ID] = d
	})
	return nil
}

func (tx *memoryTx) DeleteDistribution(_ context.Context, id int64) error {
	tx.OnCommit(func() {
		tx.repo.mu.Lock()
		defer tx.repo.mu.Unlock()
		delete(tx.repo.rows, id)
	})
	return nil
}

type recordingApprovals struct {
	mu   sync.Mutex
	logs []shared.ApprovalLog
}

func (a *recordingApprovals) Record(_ context.Context, log shared.ApprovalLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingApprovals) List(_ context.Context, module string, ref int64) ([]shared.ApprovalLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []shared.ApprovalLog
	for _, l := range a.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
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

const (
	branch = int64(1)
	sweet  = int64(5)
	admin  = int64(40)
	driver = int64(41)
)

type fixture struct {
	svc       *Service
	store     *inventorytest.Store
	repo      *memoryRepo
	approvals *recordingApprovals
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, central float64) fixture {
	t.Helper()
	store := inventorytest.NewStore()
	store.AddFinishedGood(inventory.FinishedGood{ID: sweet, Name: "Rasgulla", UnitPrice: decimal.NewFromInt(250), CurrentStock: central})
	repo := newMemoryRepo(store)
	approvals := &recordingApprovals{}
	notifier := &recordingNotifier{}
	svc := NewService(repo, Deps{Approvals: approvals, Notifier: notifier}, Config{TxTimeout: time.Second})
	return fixture{svc: svc, store: store, repo: repo, approvals: approvals, notifier: notifier}
}

func (f fixture) central() float64 {
	q, _ := f.store.Quantity(inventory.FinishedGoodKey(sweet))
	return q
}

func (f fixture) branchStock() float64 {
	q, _ := f.store.Quantity(inventory.BranchStockKey(branch, sweet))
	return q
}

func TestApproveMovesStockToBranch(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 30, CreatedBy: admin})
	require.NoError(t, err)
	require.Equal(t, StatusPending, d.Status)
	require.Equal(t, float64(100), f.central())
	_, exists := f.store.Quantity(inventory.BranchStockKey(branch, sweet))
	require.False(t, exists)

	approved, err := f.svc.Approve(ctx, d.ID, driver)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, driver, *approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	require.Equal(t, float64(70), f.central())
	require.Equal(t, float64(30), f.branchStock())
	require.Equal(t, []int64{branch}, f.notifier.branches)

	stored, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, stored.Status)

	require.Len(t, f.approvals.logs, 2)
	require.Equal(t, shared.ApprovalSubmit, f.approvals.logs[0].Action)
	require.Equal(t, shared.ApprovalApprove, f.approvals.logs[1].Action)
	require.Equal(t, d.ID, f.approvals.logs[1].RefID)
}

func TestApproveWithInsufficientCentralStockStaysPending(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 30, CreatedBy: admin})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, d.ID, driver)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	stored, _ := f.svc.Get(ctx, d.ID)
	require.Equal(t, StatusPending, stored.Status)
	require.Nil(t, stored.ApprovedBy)
	require.Equal(t, float64(20), f.central())
	require.Zero(t, f.branchStock())
	require.Empty(t, f.notifier.branches)
}

func TestFirstApprovalWinsWithoutReservation(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 40, CreatedBy: admin})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, CreateInput{ToBranchID: 2, SweetID: sweet, Quantity: 40, CreatedBy: admin})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, second.ID, driver)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, first.ID, driver)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, float64(10), f.central())
}

func TestTerminalStatesRejectFurtherTransitions(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 30, CreatedBy: admin})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, d.ID, driver)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, d.ID, driver)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	_, err = f.svc.Reject(ctx, d.ID, "late", driver)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	require.ErrorIs(t, f.svc.Delete(ctx, d.ID, admin), shared.ErrInvalidStateTransition)

	require.Equal(t, float64(70), f.central())
	require.Equal(t, float64(30), f.branchStock())

	r, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 5, CreatedBy: admin})
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, r.ID, "branch closed", driver)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, r.ID, driver)
	require.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	require.Equal(t, float64(70), f.central())
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 30, CreatedBy: admin})
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, d.ID, "   ", driver)
	require.ErrorIs(t, err, shared.ErrMissingReason)
	stored, _ := f.svc.Get(ctx, d.ID)
	require.Equal(t, StatusPending, stored.Status)

	rejected, err := f.svc.Reject(ctx, d.ID, " damaged in transit ", driver)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "damaged in transit", *rejected.Reason)
	require.Equal(t, float64(100), f.central())
	require.Equal(t, shared.ApprovalReject, f.approvals.logs[len(f.approvals.logs)-1].Action)
}

func TestApprovalTrailListsDecisions(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 10, Notes: "festival", CreatedBy: admin})
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, CreateInput{ToBranchID: 2, SweetID: sweet, Quantity: 5, CreatedBy: admin})
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, d.ID, "wrong branch", driver)
	require.NoError(t, err)

	trail, err := f.svc.Approvals(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, shared.ApprovalSubmit, trail[0].Action)
	require.Equal(t, admin, trail[0].ActorID)
	require.Equal(t, shared.ApprovalReject, trail[1].Action)
	require.Equal(t, "wrong branch", trail[1].Note)

	trail, err = f.svc.Approvals(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)

	_, err = f.svc.Approvals(ctx, 9999)
	require.ErrorIs(t, err, shared.ErrNotFound)

	bare := NewService(f.repo, Deps{}, Config{TxTimeout: time.Second})
	trail, err = bare.Approvals(ctx, d.ID)
	require.NoError(t, err)
	require.Empty(t, trail)
}

func TestStatusGuards(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusRejected} {
		require.True(t, s.IsTerminal())
		require.False(t, s.CanApprove())
		require.False(t, s.CanReject())
		require.False(t, s.CanDelete())
	}
	require.False(t, StatusPending.IsTerminal())
	require.True(t, StatusPending.CanApprove())
	require.True(t, StatusPending.CanReject())
	require.True(t, StatusPending.CanDelete())
	require.False(t, Status("shipped").CanApprove())
}

func TestDeletePendingOnly(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 30, CreatedBy: admin})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, d.ID, admin))

	_, err = f.svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, d.ID, admin), shared.ErrNotFound)
	require.Equal(t, float64(100), f.central())
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 0.0004})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.Create(ctx, CreateInput{ToBranchID: branch, SweetID: sweet, Quantity: 2.0006})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = f.svc.Create(ctx, CreateInput{SweetID: sweet, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.List(ctx, ListFilter{Status: "shipped"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentApprovalsConserveStock(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 8; i++ {
		d, err := f.svc.Create(ctx, CreateInput{ToBranchID: int64(i%3 + 1), SweetID: sweet, Quantity: 20, CreatedBy: admin})
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = f.svc.Approve(ctx, id, driver)
		}(id)
	}
	wg.Wait()

	approved, err := f.svc.List(ctx, ListFilter{Status: StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 5)

	var atBranches float64
	for b := int64(1); b <= 3; b++ {
		q, _ := f.store.Quantity(inventory.BranchStockKey(b, sweet))
		atBranches += q
	}
	require.Zero(t, f.central())
	require.Equal(t, float64(100), atBranches)
}

func TestSummarizeGroupsByBranchAndProduct(t *testing.T) {
	price := decimal.NewFromInt(200)
	h := Summarize([]Distribution{
		{ID: 1, ToBranchID: 1, BranchName: "Anna Nagar", SweetID: 5, SweetName: "Rasgulla", Quantity: 10, UnitPrice: price, Status: StatusApproved},
		{ID: 2, ToBranchID: 2, BranchName: "Adyar", SweetID: 5, SweetName: "Rasgulla", Quantity: 5, UnitPrice: price, Status: StatusPending},
		{ID: 3, ToBranchID: 1, BranchName: "Anna Nagar", SweetID: 6, SweetName: "Jalebi", Quantity: 2.5, UnitPrice: decimal.NewFromInt(100), Status: StatusRejected},
	})

	require.Equal(t, 3, h.Summary.TotalDistributions)
	require.Equal(t, 1, h.Summary.Approved)
	require.Equal(t, 1, h.Summary.Pending)
	require.Equal(t, 1, h.Summary.Rejected)
	require.Equal(t, 17.5, h.Summary.TotalQuantity)
	require.True(t, h.Summary.TotalValue.Equal(decimal.NewFromInt(3250)))

	require.Len(t, h.ByBranch, 2)
	require.Equal(t, "Adyar", h.ByBranch[0].Name)
	require.Equal(t, "Anna Nagar", h.ByBranch[1].Name)
	require.Equal(t, 2, h.ByBranch[1].TotalDistributions)
	require.True(t, h.ByBranch[1].TotalValue.Equal(decimal.NewFromInt(2250)))

	require.Len(t, h.ByProduct, 2)
	require.Equal(t, "Jalebi", h.ByProduct[0].Name)
	require.Equal(t, 15.0, h.ByProduct[1].TotalQuantity)
}

func TestSummarizeEmpty(t *testing.T) {
	h := Summarize(nil)
	require.NotNil(t, h.Items)
	require.Empty(t, h.ByBranch)
	require.True(t, h.Summary.TotalValue.IsZero())
}
