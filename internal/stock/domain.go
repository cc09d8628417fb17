package stock

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement (purchase receipt, restock, manual entry).
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement (sale, transfer debit).
	MovementOut MovementType = "OUT"
	// MovementTransfer marks warehouse transfer legs.
	MovementTransfer MovementType = "TRANSFER"
	// MovementAdjust indicates administrative corrections.
	MovementAdjust MovementType = "ADJUST"
)

// Movement is an append-only record of one ledger mutation.
type Movement struct {
	ID          int64        `json:"id"`
	Type        MovementType `json:"type"`
	ProductID   int64        `json:"product_id"`
	WarehouseID int64        `json:"warehouse_id,omitempty"`
	QtyChange   int64        `json:"qty_change"`
	BalanceQty  int64        `json:"balance_qty"`
	RefModule   string       `json:"ref_module,omitempty"`
	RefID       string       `json:"ref_id,omitempty"`
	Note        string       `json:"note,omitempty"`
	ActorID     int64        `json:"actor_id,omitempty"`
	PostedAt    time.Time    `json:"posted_at"`
}

// ReduceInput describes an outbound quantity request.
type ReduceInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int64
	RefModule   string
	RefID       string
	Note        string
	ActorID     int64
}

// AddEntry describes an inbound quantity request. When BatchNumber is set and
// does not match an existing batch of the same product code, a new batch row
// is forked instead of merging into the reference row.
type AddEntry struct {
	ProductID    int64
	WarehouseID  int64
	Quantity     int64
	BuyingPrice  float64
	SellingPrice float64
	BatchNumber  *string
	ExpiryDate   *time.Time
	RefModule    string
	RefID        string
	Note         string
	ActorID      int64
}

// TransferInput moves quantity between two batch rows of a product,
// immediately and in one transaction.
type TransferInput struct {
	FromProductID int64
	ToProductID   int64
	Quantity      int64
	Note          string
	ActorID       int64
}

// AdjustInput overwrites a product's quantity after an inventory count.
type AdjustInput struct {
	ProductID   int64
	NewQuantity int64
	Reason      string
	ActorID     int64
}

// WarehouseMovement describes a level-only debit or credit used by the
// two-phase transfer coordinator. It does not touch the product total: an
// in-flight quantity still exists, it just has no warehouse.
type WarehouseMovement struct {
	WarehouseID int64
	ProductID   int64
	Quantity    int64
	RefModule   string
	RefID       string
	Note        string
	ActorID     int64
}

// ErrInsufficientStock is returned when a debit exceeds the available quantity.
var ErrInsufficientStock = errors.New("stock: insufficient quantity")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")
