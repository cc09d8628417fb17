package purchasing

import (
	"time"
)

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft    PurchaseOrderStatus = "draft"
	PurchaseOrderStatusReceived PurchaseOrderStatus = "received"
)

// PurchaseOrder records goods ordered from a supplier. Receiving is the point
// at which the ordered quantities enter inventory; a received order cannot be
// received again.
type PurchaseOrder struct {
	ID           int64               `json:"id" db:"id"`
	Number       string              `json:"number" db:"number"`
	SupplierName string              `json:"supplier_name" db:"supplier_name"`
	Status       PurchaseOrderStatus `json:"status" db:"status"`
	TotalAmount  float64             `json:"total_amount" db:"total_amount"`
	Note         *string             `json:"note,omitempty" db:"note"`
	WarehouseID  *int64              `json:"warehouse_id,omitempty" db:"warehouse_id"`
	CreatedBy    int64               `json:"created_by" db:"created_by"`
	ReceivedBy   *int64              `json:"received_by,omitempty" db:"received_by"`
	ReceivedAt   *time.Time          `json:"received_at,omitempty" db:"received_at"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
	Lines        []PurchaseOrderLine `json:"lines,omitempty" db:"-"`
}

type PurchaseOrderLine struct {
	ID           int64      `json:"id" db:"id"`
	OrderID      int64      `json:"order_id" db:"order_id"`
	ProductID    int64      `json:"product_id" db:"product_id"`
	Quantity     int64      `json:"quantity" db:"quantity"`
	UnitCost     float64    `json:"unit_cost" db:"unit_cost"`
	SellingPrice *float64   `json:"selling_price,omitempty" db:"selling_price"`
	BatchNumber  *string    `json:"batch_number,omitempty" db:"batch_number"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
}

type OrderLineInput struct {
	ProductID    int64
	Quantity     int64
	UnitCost     float64
	SellingPrice *float64
	BatchNumber  *string
	ExpiryDate   *time.Time
}

// CreateOrderInput describes a draft purchase order.
type CreateOrderInput struct {
	SupplierName string
	WarehouseID  *int64
	Note         *string
	Lines        []OrderLineInput
}
