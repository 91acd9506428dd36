package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sweetline/sweetline/internal/shared"
)

// TxStore is the row-level storage the ledger drives inside one transaction.
type TxStore interface {
	// LockBalance reads the row with SELECT ... FOR UPDATE. A missing row
	// yields ErrBalanceNotFound.
	LockBalance(ctx context.Context, key Key) (Balance, error)
	// InsertBranchStock creates a zero branch row when absent and returns it locked.
	InsertBranchStock(ctx context.Context, branchID, sweetID int64) (Balance, error)
	// ApplyDelta adds delta to the row unless the result would be negative;
	// applied is false when the guard rejected the update.
	ApplyDelta(ctx context.Context, key Key, delta float64) (balance float64, applied bool, err error)
	InsertMovement(ctx context.Context, m Movement) error
	FinishedGood(ctx context.Context, sweetID int64) (FinishedGood, error)
}

var errLockOrder = errors.New("inventory: lock order violation")

// Ledger applies debits and credits on top of a TxStore. A Ledger lives for
// exactly one transaction and remembers which rows it holds.
type Ledger struct {
	store    TxStore
	ref      MovementRef
	locked   map[Key]Balance
	highest  *Key
	branches map[int64]struct{}
	now      func() time.Time
}

// NewLedger binds a ledger to the transaction behind store.
func NewLedger(store TxStore, ref MovementRef) *Ledger {
	return &Ledger{
		store:    store,
		ref:      ref,
		locked:   make(map[Key]Balance),
		branches: make(map[int64]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetRefID sets the business record id stamped on subsequent movements.
func (l *Ledger) SetRefID(id int64) {
	l.ref.RefID = id
}

// Lock acquires row locks for keys in global order. Keys already held are
// skipped. Locking a key that sorts before one already held is rejected, which
// keeps every transaction on the same acquisition order.
func (l *Ledger) Lock(ctx context.Context, keys ...Key) error {
	pending := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := l.locked[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		pending = append(pending, k)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Less(pending[j]) })
	for _, k := range pending {
		if err := l.lockOne(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) lockOne(ctx context.Context, k Key) error {
	if l.highest != nil && k.Less(*l.highest) {
		return fmt.Errorf("%w: %s/%d/%d after %s/%d/%d", errLockOrder,
			k.Pool, k.BranchID, k.ItemID, l.highest.Pool, l.highest.BranchID, l.highest.ItemID)
	}
	bal, err := l.store.LockBalance(ctx, k)
	switch {
	case err == nil:
		bal.Exists = true
	case errors.Is(err, ErrBalanceNotFound) && k.Pool == PoolBranchStock:
		fg, fgErr := l.store.FinishedGood(ctx, k.ItemID)
		if fgErr != nil {
			return fmt.Errorf("inventory: sweet %d: %w", k.ItemID, fgErr)
		}
		bal = Balance{Key: k, Name: fg.Name, UnitPrice: fg.UnitPrice, ReorderLevel: fg.ReorderLevel}
	case errors.Is(err, ErrBalanceNotFound):
		return fmt.Errorf("inventory: %s %d: %w", k.Pool, k.ItemID, shared.ErrNotFound)
	default:
		return fmt.Errorf("inventory: lock %s %d: %w", k.Pool, k.ItemID, err)
	}
	bal.Key = k
	l.locked[k] = bal
	kk := k
	l.highest = &kk
	return nil
}

// Balance returns the locked row, locking it first when needed. Absent
// branch rows come back with Exists=false and zero quantity.
func (l *Ledger) Balance(ctx context.Context, key Key) (Balance, error) {
	if bal, ok := l.locked[key]; ok {
		return bal, nil
	}
	if err := l.lockOne(ctx, key); err != nil {
		return Balance{}, err
	}
	return l.locked[key], nil
}

// Available returns the quantity currently held on key.
func (l *Ledger) Available(ctx context.Context, key Key) (float64, error) {
	bal, err := l.Balance(ctx, key)
	if err != nil {
		return 0, err
	}
	return bal.Quantity, nil
}

// Debit removes qty from key and returns the new balance. It never takes a
// row below zero.
func (l *Ledger) Debit(ctx context.Context, key Key, qty float64) (float64, error) {
	if qty <= qtyEpsilon {
		return 0, shared.ErrInvalidQuantity
	}
	bal, err := l.Balance(ctx, key)
	if err != nil {
		return 0, err
	}
	if !bal.Exists || bal.Quantity+qtyEpsilon < qty {
		return 0, insufficient(key, qty, bal.Quantity)
	}
	next, applied, err := l.store.ApplyDelta(ctx, key, -qty)
	if err != nil {
		return 0, fmt.Errorf("inventory: debit %s %d: %w", key.Pool, key.ItemID, err)
	}
	if !applied {
		return 0, insufficient(key, qty, bal.Quantity)
	}
	if err := l.record(ctx, key, 0, qty, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Credit adds qty to key and returns the new balance. Branch rows are
// created through GetOrCreate.
func (l *Ledger) Credit(ctx context.Context, key Key, qty float64) (float64, error) {
	if qty <= qtyEpsilon {
		return 0, shared.ErrInvalidQuantity
	}
	var (
		bal Balance
		err error
	)
	if key.Pool == PoolBranchStock {
		bal, err = l.GetOrCreate(ctx, key.BranchID, key.ItemID)
	} else {
		bal, err = l.Balance(ctx, key)
	}
	if err != nil {
		return 0, err
	}
	next, applied, err := l.store.ApplyDelta(ctx, bal.Key, qty)
	if err != nil {
		return 0, fmt.Errorf("inventory: credit %s %d: %w", key.Pool, key.ItemID, err)
	}
	if !applied {
		return 0, fmt.Errorf("inventory: credit %s %d: %w", key.Pool, key.ItemID, ErrBalanceNotFound)
	}
	if err := l.record(ctx, key, qty, 0, next); err != nil {
		return 0, err
	}
	return next, nil
}

// GetOrCreate returns the branch row for (branchID, sweetID), inserting a
// zero row when none exists. It is the only place branch rows are created.
func (l *Ledger) GetOrCreate(ctx context.Context, branchID, sweetID int64) (Balance, error) {
	key := BranchStockKey(branchID, sweetID)
	bal, err := l.Balance(ctx, key)
	if err != nil {
		return Balance{}, err
	}
	if bal.Exists {
		return bal, nil
	}
	created, err := l.store.InsertBranchStock(ctx, branchID, sweetID)
	if err != nil {
		return Balance{}, fmt.Errorf("inventory: create branch stock %d/%d: %w", branchID, sweetID, err)
	}
	created.Key = key
	created.Exists = true
	l.locked[key] = created
	return created, nil
}

// Branches lists the branches whose stock changed in this transaction.
func (l *Ledger) Branches() []int64 {
	out := make([]int64, 0, len(l.branches))
	for id := range l.branches {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l *Ledger) record(ctx context.Context, key Key, in, out, balance float64) error {
	bal := l.locked[key]
	bal.Quantity = balance
	l.locked[key] = bal
	if key.Pool == PoolBranchStock {
		l.branches[key.BranchID] = struct{}{}
	}
	err := l.store.InsertMovement(ctx, Movement{
		Pool:         key.Pool,
		ItemID:       key.ItemID,
		BranchID:     key.BranchID,
		QtyIn:        in,
		QtyOut:       out,
		BalanceAfter: balance,
		RefModule:    l.ref.Module,
		RefID:        l.ref.RefID,
		ActorID:      l.ref.ActorID,
		CreatedAt:    l.now(),
	})
	if err != nil {
		return fmt.Errorf("inventory: record movement: %w", err)
	}
	return nil
}

func insufficient(key Key, requested, available float64) error {
	return &shared.InsufficientStockError{
		Kind:      key.Pool,
		ID:        key.ItemID,
		BranchID:  key.BranchID,
		Requested: requested,
		Available: available,
	}
}
