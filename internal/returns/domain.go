package returns

import (
	"errors"
	"time"
)

// ErrReturnQuantityExceeded rejects a return line asking for more than the
// sale has left returnable (sold minus already returned).
var ErrReturnQuantityExceeded = errors.New("return quantity exceeds remaining returnable quantity")

type ReturnStatus string

const (
	ReturnStatusPending   ReturnStatus = "pending"
	ReturnStatusReceived  ReturnStatus = "received"
	ReturnStatusCompleted ReturnStatus = "completed"
)

// restocks reports whether goods in this status are physically back and may
// re-enter inventory.
func (s ReturnStatus) restocks() bool {
	return s == ReturnStatusReceived || s == ReturnStatusCompleted
}

// Return reverses part of a prior sale. It commits with all its lines or not
// at all.
type Return struct {
	ID        int64        `json:"id" db:"id"`
	Number    string       `json:"number" db:"number"`
	SaleID    int64        `json:"sale_id" db:"sale_id"`
	Status    ReturnStatus `json:"status" db:"status"`
	Restock   bool         `json:"restock" db:"restock"`
	Reason    *string      `json:"reason,omitempty" db:"reason"`
	CreatedBy int64        `json:"created_by" db:"created_by"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	Lines     []ReturnLine `json:"lines,omitempty" db:"-"`
}

type ReturnLine struct {
	ID        int64   `json:"id" db:"id"`
	ReturnID  int64   `json:"return_id" db:"return_id"`
	ProductID int64   `json:"product_id" db:"product_id"`
	Quantity  int64   `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unit_price" db:"unit_price"`
}

type ReturnLineInput struct {
	ProductID int64
	Quantity  int64
}

// ProcessReturnInput describes a return to apply against a sale.
type ProcessReturnInput struct {
	SaleID  int64
	Status  ReturnStatus
	Restock bool
	Reason  *string
	Lines   []ReturnLineInput
}
