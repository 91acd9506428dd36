package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/shared"
)

// Pool identifies one of the three stock pools held by the ledger.
type Pool = shared.StockKind

const (
	// PoolRawMaterial holds kitchen raw materials.
	PoolRawMaterial = shared.StockKindRawMaterial
	// PoolFinishedGood holds central finished goods.
	PoolFinishedGood = shared.StockKindFinishedGood
	// PoolBranchStock holds finished goods located at a branch.
	PoolBranchStock = shared.StockKindBranchStock
)

func poolRank(p Pool) int {
	switch p {
	case PoolRawMaterial:
		return 0
	case PoolFinishedGood:
		return 1
	case PoolBranchStock:
		return 2
	default:
		return 3
	}
}

// Key addresses a single ledger row. ItemID is the material id for raw
// materials and the sweet id otherwise; BranchID is only set for branch stock.
type Key struct {
	Pool     Pool
	ItemID   int64
	BranchID int64
}

// RawMaterialKey returns the key of a raw material row.
func RawMaterialKey(materialID int64) Key {
	return Key{Pool: PoolRawMaterial, ItemID: materialID}
}

// FinishedGoodKey returns the key of a central finished good row.
func FinishedGoodKey(sweetID int64) Key {
	return Key{Pool: PoolFinishedGood, ItemID: sweetID}
}

// BranchStockKey returns the key of a branch stock row.
func BranchStockKey(branchID, sweetID int64) Key {
	return Key{Pool: PoolBranchStock, ItemID: sweetID, BranchID: branchID}
}

// Less orders keys by pool (raw materials, finished goods, branch stock),
// then branch, then item. Every multi-row lock follows this order.
func (k Key) Less(other Key) bool {
	if ra, rb := poolRank(k.Pool), poolRank(other.Pool); ra != rb {
		return ra < rb
	}
	if k.BranchID != other.BranchID {
		return k.BranchID < other.BranchID
	}
	return k.ItemID < other.ItemID
}

// Balance is a locked ledger row as seen inside a transaction.
type Balance struct {
	Key          Key
	Name         string
	Quantity     float64
	ReorderLevel float64
	UnitPrice    decimal.Decimal
	// Exists is false for a branch/sweet pair that has no row yet.
	Exists bool
}

// RawMaterial is a kitchen input tracked in the central store.
type RawMaterial struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock float64         `json:"current_stock"`
	ReorderLevel float64         `json:"reorder_level"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FinishedGood is a sweet held in the central warehouse.
type FinishedGood struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CurrentStock float64         `json:"current_stock"`
	ReorderLevel float64         `json:"reorder_level"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BranchStock is the quantity of a sweet held at a branch.
type BranchStock struct {
	ID           int64           `json:"id"`
	BranchID     int64           `json:"branch_id"`
	BranchName   string          `json:"branch_name,omitempty"`
	SweetID      int64           `json:"sweet_id"`
	SweetName    string          `json:"sweet_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CurrentStock float64         `json:"current_stock"`
	ReorderLevel float64         `json:"reorder_level"`
	IsLowStock   bool            `json:"is_low_stock"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MovementRef ties a ledger mutation to the business record that caused it.
type MovementRef struct {
	Module  string
	RefID   int64
	ActorID int64
}

// Movement is an append-only journal entry written for every debit and credit.
type Movement struct {
	ID           int64     `json:"id"`
	Pool         Pool      `json:"pool"`
	ItemID       int64     `json:"item_id"`
	BranchID     int64     `json:"branch_id,omitempty"`
	QtyIn        float64   `json:"qty_in"`
	QtyOut       float64   `json:"qty_out"`
	BalanceAfter float64   `json:"balance_after"`
	RefModule    string    `json:"ref_module"`
	RefID        int64     `json:"ref_id"`
	ActorID      int64     `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	Pool     Pool
	ItemID   int64
	BranchID int64
	Page     shared.Page
}

// LowStockAlert reports an item at or below its reorder level.
type LowStockAlert struct {
	Pool         Pool    `json:"pool"`
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	CurrentStock float64 `json:"current_stock"`
	ReorderLevel float64 `json:"reorder_level"`
}

// ErrBalanceNotFound indicates a missing ledger row.
var ErrBalanceNotFound = errors.New("inventory balance not found")

// qtyEpsilon absorbs float noise from NUMERIC(14,3) round trips.
const qtyEpsilon = 1e-9

// ChangeNotifier is told which branches had committed stock changes.
type ChangeNotifier interface {
	BranchStockChanged(ctx context.Context, branchIDs ...int64)
}
