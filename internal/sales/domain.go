package sales

import (
	"errors"
	"time"
)

var (
	// ErrPaymentExceedsDue rejects a payment larger than the outstanding due.
	ErrPaymentExceedsDue = errors.New("payment exceeds due amount")
)

type SaleStatus string

const (
	SaleStatusDraft    SaleStatus = "draft"
	SaleStatusApproved SaleStatus = "approved"
)

// Sale is a point-of-sale invoice. Once approved it is immutable except for
// paid/due adjustments via payments; corrections go through returns.
type Sale struct {
	ID             int64      `json:"id" db:"id"`
	Number         string     `json:"number" db:"number"`
	CustomerID     *int64     `json:"customer_id,omitempty" db:"customer_id"`
	WarehouseID    *int64     `json:"warehouse_id,omitempty" db:"warehouse_id"`
	Status         SaleStatus `json:"status" db:"status"`
	TotalAmount    float64    `json:"total_amount" db:"total_amount"`
	Discount       float64    `json:"discount" db:"discount"`
	PaidAmount     float64    `json:"paid_amount" db:"paid_amount"`
	DueAmount      float64    `json:"due_amount" db:"due_amount"`
	CashAmount     float64    `json:"cash_amount" db:"cash_amount"`
	TransferAmount float64    `json:"transfer_amount" db:"transfer_amount"`
	CreditAmount   float64    `json:"credit_amount" db:"credit_amount"`
	Note           *string    `json:"note,omitempty" db:"note"`
	CreatedBy      int64      `json:"created_by" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	Lines          []SaleLine `json:"lines,omitempty" db:"-"`
}

// SaleLine carries the quantity and unit price frozen at sale time. The price
// is never recomputed from the current product price.
type SaleLine struct {
	ID        int64   `json:"id" db:"id"`
	SaleID    int64   `json:"sale_id" db:"sale_id"`
	ProductID int64   `json:"product_id" db:"product_id"`
	Quantity  int64   `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unit_price" db:"unit_price"`
	LineTotal float64 `json:"line_total" db:"line_total"`
}

// SaleLineInput is one requested line. A nil UnitPrice means "use the
// product's current selling price", frozen onto the line at creation.
type SaleLineInput struct {
	ProductID int64
	Quantity  int64
	UnitPrice *float64
}

// CreateSaleInput describes a sale to create. The credit portion is booked
// onto the customer's account and counts as settled from the sale's side;
// DueAmount covers only the residual nobody has covered yet.
type CreateSaleInput struct {
	CustomerID     *int64
	WarehouseID    *int64
	Discount       float64
	CashAmount     float64
	TransferAmount float64
	CreditAmount   float64
	Note           *string
	Draft          bool
	Lines          []SaleLineInput
}

type SaleFilter struct {
	CustomerID *int64
	Status     *SaleStatus
	Limit      int
	Offset     int
}

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
)
