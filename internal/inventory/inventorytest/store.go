// Package inventorytest provides an in-memory ledger store with real row
// locking and rollback, for tests of packages built on inventory.Ledger.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/shared"
)

type branchKey struct {
	branchID int64
	sweetID  int64
}

// Store holds committed ledger state.
type Store struct {
	mu        sync.Mutex
	raw       map[int64]inventory.RawMaterial
	finished  map[int64]inventory.FinishedGood
	branch    map[branchKey]inventory.BranchStock
	movements []inventory.Movement
	rowLocks  map[string]*sync.Mutex
	failures  map[inventory.Pool]error
	nextID    int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		raw:      make(map[int64]inventory.RawMaterial),
		finished: make(map[int64]inventory.FinishedGood),
		branch:   make(map[branchKey]inventory.BranchStock),
		rowLocks: make(map[string]*sync.Mutex),
		failures: make(map[inventory.Pool]error),
	}
}

// AddRawMaterial seeds a raw material row.
func (s *Store) AddRawMaterial(m inventory.RawMaterial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[m.ID] = m
}

// AddFinishedGood seeds a central finished good row.
func (s *Store) AddFinishedGood(g inventory.FinishedGood) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished[g.ID] = g
}

// SetBranchStock seeds a branch row.
func (s *Store) SetBranchStock(branchID, sweetID int64, qty float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := branchKey{branchID, sweetID}
	row, ok := s.branch[k]
	if !ok {
		s.nextID++
		row = inventory.BranchStock{ID: s.nextID, BranchID: branchID, SweetID: sweetID}
	}
	row.CurrentStock = qty
	s.branch[k] = row
}

// FailApplies makes every ApplyDelta on pool return err until cleared with nil.
func (s *Store) FailApplies(pool inventory.Pool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, pool)
		return
	}
	s.failures[pool] = err
}

// Quantity returns the committed quantity of key and whether the row exists.
func (s *Store) Quantity(key inventory.Key) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quantityLocked(key)
}

func (s *Store) quantityLocked(key inventory.Key) (float64, bool) {
	switch key.Pool {
	case inventory.PoolRawMaterial:
		m, ok := s.raw[key.ItemID]
		return m.CurrentStock, ok
	case inventory.PoolFinishedGood:
		g, ok := s.finished[key.ItemID]
		return g.CurrentStock, ok
	case inventory.PoolBranchStock:
		b, ok := s.branch[branchKey{key.BranchID, key.ItemID}]
		return b.CurrentStock, ok
	}
	return 0, false
}

// Movements returns the committed journal.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Movement, len(s.movements))
	copy(out, s.movements)
	return out
}

// RawMaterials returns committed raw materials ordered by id.
func (s *Store) RawMaterials() []inventory.RawMaterial {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.RawMaterial, 0, len(s.raw))
	for _, m := range s.raw {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FinishedGoods returns committed finished goods ordered by id.
func (s *Store) FinishedGoods() []inventory.FinishedGood {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.FinishedGood, 0, len(s.finished))
	for _, g := range s.finished {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BranchStock returns committed rows of branchID ordered by sweet, with sweet
// details filled in.
func (s *Store) BranchStock(branchID int64) []inventory.BranchStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.BranchStock
	for k, row := range s.branch {
		if k.branchID != branchID {
			continue
		}
		if g, ok := s.finished[k.sweetID]; ok {
			row.SweetName = g.Name
			row.UnitPrice = g.UnitPrice
			row.ReorderLevel = g.ReorderLevel
			row.IsLowStock = row.CurrentStock <= g.ReorderLevel
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SweetID < out[j].SweetID })
	return out
}

func (s *Store) rowLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowLocks[name]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[name] = m
	}
	return m
}

// Begin opens a transaction.
func (s *Store) Begin() *Tx {
	return &Tx{
		store:  s,
		held:   make(map[string]*sync.Mutex),
		writes: make(map[inventory.Key]float64),
	}
}

// WithTx runs fn in a transaction, committing on success and rolling back on error.
func (s *Store) WithTx(fn func(tx *Tx) error) error {
	tx := s.Begin()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

// Tx buffers writes until Commit and holds row locks until it ends.
type Tx struct {
	store     *Store
	held      map[string]*sync.Mutex
	order     []string
	writes    map[inventory.Key]float64
	movements []inventory.Movement
	onCommit  []func()
	done      bool
}

var _ inventory.TxStore = (*Tx)(nil)

// LockRecord takes a row lock on an arbitrary record, e.g. a distribution.
func (tx *Tx) LockRecord(table string, id int64) {
	tx.lock(fmt.Sprintf("%s/%d", table, id))
}

func (tx *Tx) lock(name string) {
	if _, ok := tx.held[name]; ok {
		return
	}
	m := tx.store.rowLock(name)
	m.Lock()
	tx.held[name] = m
	tx.order = append(tx.order, name)
}

func keyName(k inventory.Key) string {
	return fmt.Sprintf("%s/%d/%d", k.Pool, k.BranchID, k.ItemID)
}

// OnCommit queues fn to run after the ledger writes are applied and before
// row locks are released.
func (tx *Tx) OnCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

func (tx *Tx) current(key inventory.Key) (float64, bool) {
	if q, ok := tx.writes[key]; ok {
		return q, true
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	return tx.store.quantityLocked(key)
}

// LockBalance implements inventory.TxStore.
func (tx *Tx) LockBalance(_ context.Context, key inventory.Key) (inventory.Balance, error) {
	tx.lock(keyName(key))
	qty, ok := tx.current(key)
	if !ok {
		return inventory.Balance{}, inventory.ErrBalanceNotFound
	}
	bal := inventory.Balance{Key: key, Quantity: qty}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key.Pool {
	case inventory.PoolRawMaterial:
		m := s.raw[key.ItemID]
		bal.Name, bal.ReorderLevel, bal.UnitPrice = m.Name, m.ReorderLevel, m.PricePerUnit
	default:
		g := s.finished[key.ItemID]
		bal.Name, bal.ReorderLevel, bal.UnitPrice = g.Name, g.ReorderLevel, g.UnitPrice
	}
	return bal, nil
}

// InsertBranchStock implements inventory.TxStore.
func (tx *Tx) InsertBranchStock(ctx context.Context, branchID, sweetID int64) (inventory.Balance, error) {
	key := inventory.BranchStockKey(branchID, sweetID)
	tx.lock(keyName(key))
	if _, ok := tx.current(key); !ok {
		tx.writes[key] = 0
	}
	return tx.LockBalance(ctx, key)
}

// ApplyDelta implements inventory.TxStore.
func (tx *Tx) ApplyDelta(_ context.Context, key inventory.Key, delta float64) (float64, bool, error) {
	tx.store.mu.Lock()
	failure := tx.store.failures[key.Pool]
	tx.store.mu.Unlock()
	if failure != nil {
		return 0, false, failure
	}
	tx.lock(keyName(key))
	qty, ok := tx.current(key)
	if !ok {
		return 0, false, nil
	}
	next := qty + delta
	if next < -1e-9 {
		return qty, false, nil
	}
	tx.writes[key] = next
	return next, true, nil
}

// InsertMovement implements inventory.TxStore.
func (tx *Tx) InsertMovement(_ context.Context, m inventory.Movement) error {
	tx.movements = append(tx.movements, m)
	return nil
}

// FinishedGood implements inventory.TxStore.
func (tx *Tx) FinishedGood(_ context.Context, sweetID int64) (inventory.FinishedGood, error) {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.finished[sweetID]
	if !ok {
		return inventory.FinishedGood{}, shared.ErrNotFound
	}
	return g, nil
}

// Commit publishes buffered writes and releases locks.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	s := tx.store
	s.mu.Lock()
	now := time.Now().UTC()
	for key, qty := range tx.writes {
		switch key.Pool {
		case inventory.PoolRawMaterial:
			m := s.raw[key.ItemID]
			m.CurrentStock, m.UpdatedAt = qty, now
			s.raw[key.ItemID] = m
		case inventory.PoolFinishedGood:
			g := s.finished[key.ItemID]
			g.CurrentStock, g.UpdatedAt = qty, now
			s.finished[key.ItemID] = g
		case inventory.PoolBranchStock:
			bk := branchKey{key.BranchID, key.ItemID}
			row, ok := s.branch[bk]
			if !ok {
				s.nextID++
				row = inventory.BranchStock{ID: s.nextID, BranchID: key.BranchID, SweetID: key.ItemID}
			}
			row.CurrentStock, row.UpdatedAt = qty, now
			s.branch[bk] = row
		}
	}
	for _, m := range tx.movements {
		s.nextID++
		m.ID = s.nextID
		s.movements = append(s.movements, m)
	}
	s.mu.Unlock()
	for _, fn := range tx.onCommit {
		fn()
	}
	tx.release()
}

// Rollback discards buffered writes and releases locks.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.release()
}

func (tx *Tx) release() {
	tx.done = true
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]].Unlock()
	}
	tx.held = nil
	tx.order = nil
}
