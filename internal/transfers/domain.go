package transfers

import (
	"errors"
	"time"
)

// ErrInvalidTransferState rejects completing a transfer that is not pending,
// including a second completion of the same transfer.
var ErrInvalidTransferState = errors.New("transfer is not pending")

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusCompleted TransferStatus = "completed"
)

// Transfer moves quantity between warehouses in two phases. The source is
// debited at initiation and the destination credited at completion; between
// the two the quantity is in flight and belongs to neither warehouse.
type Transfer struct {
	ID              int64          `json:"id" db:"id"`
	Number          string         `json:"number" db:"number"`
	FromWarehouseID int64          `json:"from_warehouse_id" db:"from_warehouse_id"`
	ToWarehouseID   int64          `json:"to_warehouse_id" db:"to_warehouse_id"`
	ProductID       int64          `json:"product_id" db:"product_id"`
	Quantity        int64          `json:"quantity" db:"quantity"`
	Status          TransferStatus `json:"status" db:"status"`
	Note            *string        `json:"note,omitempty" db:"note"`
	CreatedBy       int64          `json:"created_by" db:"created_by"`
	CompletedBy     *int64         `json:"completed_by,omitempty" db:"completed_by"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// InitiateInput describes a transfer to start.
type InitiateInput struct {
	FromWarehouseID int64
	ToWarehouseID   int64
	ProductID       int64
	Quantity        int64
	Note            *string
}
