package production

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/inventory/inventorytest"
	"github.com/sweetline/sweetline/internal/recipes"
	"github.com/sweetline/sweetline/internal/shared"
)

type memoryRepo struct {
	store       *inventorytest.Store
	mu          sync.Mutex
	productions []Production
	nextID      int64
}

type memoryTx struct {
	*inventorytest.Tx
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.WithTx(func(tx *inventorytest.Tx) error {
		return fn(ctx, &memoryTx{Tx: tx, repo: r})
	})
}

func (r *memoryRepo) List(context.Context, ListFilter) ([]Production, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Production(nil), r.productions...), nil
}

func (tx *memoryTx) InsertProduction(_ context.Context, p Production) (int64, error) {
	tx.repo.mu.Lock()
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.mu.Unlock()
	tx.OnCommit(func() {
		tx.repo.mu.Lock()
		defer tx.repo.mu.Unlock()
		tx.repo.productions = append(tx.repo.productions, p)
	})
	return p.ID, nil
}

type recipeBook map[int64][]recipes.Recipe

func (b recipeBook) ListBySweet(_ context.Context, sweetID int64) ([]recipes.Recipe, error) {
	return b[sweetID], nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingObserver map[string]int

func (c countingObserver) ObserveStockOperation(op, outcome string) { c[op+":"+outcome]++ }

const (
	sugar = int64(1)
	ghee  = int64(2)
	flour = int64(3)

	ladoo = int64(10)
	barfi = int64(11)
	plain = int64(12)
)

func newTestService(t *testing.T) (*Service, *inventorytest.Store, *memoryRepo, *recordingAudit, countingObserver) {
	t.Helper()
	store := inventorytest.NewStore()
	store.AddRawMaterial(inventory.RawMaterial{ID: sugar, Name: "Sugar", Unit: "kg", CurrentStock: 10})
	store.AddRawMaterial(inventory.RawMaterial{ID: ghee, Name: "Ghee", Unit: "kg", CurrentStock: 2})
	store.AddRawMaterial(inventory.RawMaterial{ID: flour, Name: "Besan", Unit: "kg", CurrentStock: 1})
	store.AddFinishedGood(inventory.FinishedGood{ID: ladoo, Name: "Besan Ladoo", UnitPrice: decimal.NewFromInt(400)})
	store.AddFinishedGood(inventory.FinishedGood{ID: barfi, Name: "Milk Barfi", UnitPrice: decimal.NewFromInt(500)})
	store.AddFinishedGood(inventory.FinishedGood{ID: plain, Name: "Plain Peda", UnitPrice: decimal.NewFromInt(300), CurrentStock: 1})

	book := recipeBook{
		ladoo: {
			{SweetID: ladoo, MaterialID: sugar, QuantityRequired: 0.4},
			{SweetID: ladoo, MaterialID: ghee, QuantityRequired: 0.2},
		},
		barfi: {
			{SweetID: barfi, MaterialID: sugar, QuantityRequired: 0.5},
			{SweetID: barfi, MaterialID: ghee, QuantityRequired: 0.5},
			{SweetID: barfi, MaterialID: flour, QuantityRequired: 0.5},
		},
	}
	repo := &memoryRepo{store: store}
	audit := &recordingAudit{}
	observer := countingObserver{}
	svc := NewService(repo, recipes.NewResolver(book), audit, observer, nil, Config{TxTimeout: time.Second})
	return svc, store, repo, audit, observer
}

func qty(t *testing.T, store *inventorytest.Store, key inventory.Key) float64 {
	t.Helper()
	q, _ := store.Quantity(key)
	return q
}

func TestProduceConsumesMaterialsAndCreditsFinishedGood(t *testing.T) {
	svc, store, repo, audit, observer := newTestService(t)

	rec, err := svc.Produce(context.Background(), ProduceInput{SweetID: ladoo, QuantityProduced: 10, Wastage: 1.5, CreatedBy: 4})
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	require.Equal(t, "Besan Ladoo", rec.SweetName)
	require.False(t, rec.ProductionDate.IsZero())

	require.InDelta(t, 6.0, qty(t, store, inventory.RawMaterialKey(sugar)), 1e-9)
	require.InDelta(t, 0.0, qty(t, store, inventory.RawMaterialKey(ghee)), 1e-9)
	require.Equal(t, float64(10), qty(t, store, inventory.FinishedGoodKey(ladoo)))

	list, _ := repo.List(context.Background(), ListFilter{})
	require.Len(t, list, 1)
	require.Equal(t, 1.5, list[0].Wastage)

	moves := store.Movements()
	require.Len(t, moves, 3)
	for _, m := range moves {
		require.Equal(t, "production", m.RefModule)
		require.Equal(t, rec.ID, m.RefID)
	}
	require.Len(t, audit.logs, 1)
	require.Equal(t, 1, observer["production.produce:ok"])
}

func TestProduceShortageListsEveryMaterialAndChangesNothing(t *testing.T) {
	svc, store, repo, audit, observer := newTestService(t)

	_, err := svc.Produce(context.Background(), ProduceInput{SweetID: barfi, QuantityProduced: 6, CreatedBy: 4})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var shortage *ShortageError
	require.True(t, errors.As(err, &shortage))
	require.Len(t, shortage.Items, 2)
	require.Equal(t, ghee, shortage.Items[0].ID)
	require.InDelta(t, 1.0, shortage.Items[0].Shortfall(), 1e-9)
	require.Equal(t, flour, shortage.Items[1].ID)
	require.InDelta(t, 2.0, shortage.Items[1].Shortfall(), 1e-9)
	require.Len(t, shared.InsufficientStockDetails(err), 2)

	require.Equal(t, float64(10), qty(t, store, inventory.RawMaterialKey(sugar)))
	require.Equal(t, float64(2), qty(t, store, inventory.RawMaterialKey(ghee)))
	require.Zero(t, qty(t, store, inventory.FinishedGoodKey(barfi)))
	list, _ := repo.List(context.Background(), ListFilter{})
	require.Empty(t, list)
	require.Empty(t, store.Movements())
	require.Empty(t, audit.logs)
	require.Equal(t, 1, observer["production.produce:insufficient"])
}

func TestProduceWithoutRecipeAlwaysSucceeds(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	_, err := svc.Produce(context.Background(), ProduceInput{SweetID: plain, QuantityProduced: 4, CreatedBy: 4})
	require.NoError(t, err)
	require.Equal(t, float64(5), qty(t, store, inventory.FinishedGoodKey(plain)))
}

func TestProduceUnknownSweet(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	_, err := svc.Produce(context.Background(), ProduceInput{SweetID: 404, QuantityProduced: 1, CreatedBy: 4})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProduceRollsBackOnStorageFailure(t *testing.T) {
	svc, store, repo, _, observer := newTestService(t)
	store.FailApplies(inventory.PoolFinishedGood, errors.New("disk full"))

	_, err := svc.Produce(context.Background(), ProduceInput{SweetID: ladoo, QuantityProduced: 1, CreatedBy: 4})
	require.Error(t, err)
	require.Equal(t, float64(10), qty(t, store, inventory.RawMaterialKey(sugar)))
	require.Equal(t, float64(2), qty(t, store, inventory.RawMaterialKey(ghee)))
	list, _ := repo.List(context.Background(), ListFilter{})
	require.Empty(t, list)
	require.Equal(t, 1, observer["production.produce:error"])
}

func TestProduceValidatesInput(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Produce(ctx, ProduceInput{SweetID: ladoo, QuantityProduced: 0})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = svc.Produce(ctx, ProduceInput{SweetID: ladoo, QuantityProduced: 0.0004})
	require.ErrorIs(t, err, shared.ErrInvalidQuantity)
	_, err = svc.Produce(ctx, ProduceInput{SweetID: ladoo, QuantityProduced: 1, Wastage: -1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Produce(ctx, ProduceInput{SweetID: ladoo, QuantityProduced: 1, Wastage: 0.0005})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Produce(ctx, ProduceInput{QuantityProduced: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProduceSurvivesCallerCancellation(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Produce(ctx, ProduceInput{SweetID: plain, QuantityProduced: 1, CreatedBy: 4})
	require.NoError(t, err)
	require.Equal(t, float64(2), qty(t, store, inventory.FinishedGoodKey(plain)))
}
