// Package events defines the ledger's outbound domain events and the queue
// they are published to. The core only ever writes to the queue; receipts,
// reports and notifications consume from it.
package events

import "time"

// Kinds double as asynq task types on the outbound queue.
const (
	KindLowStock            = "ledger:stock.low"
	KindReorderLevelReached = "ledger:stock.reorder"
	KindCreditLimitExceeded = "ledger:credit.limit_exceeded"
	KindSaleCompleted       = "ledger:sale.completed"
)

// Event is implemented by every outbound domain event.
type Event interface {
	Kind() string
}

// LowStockAlert fires once when a product's quantity crosses its low-stock
// threshold, not on every subsequent reduction below it.
type LowStockAlert struct {
	ProductID   int64     `json:"product_id"`
	ProductCode string    `json:"product_code"`
	Quantity    int64     `json:"quantity"`
	Threshold   int64     `json:"threshold"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Kind implements Event.
func (LowStockAlert) Kind() string { return KindLowStock }

// ReorderLevelReached fires once when a product's quantity crosses its
// reorder point.
type ReorderLevelReached struct {
	ProductID    int64     `json:"product_id"`
	ProductCode  string    `json:"product_code"`
	Quantity     int64     `json:"quantity"`
	ReorderPoint int64     `json:"reorder_point"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Kind implements Event.
func (ReorderLevelReached) Kind() string { return KindReorderLevelReached }

// CreditLimitExceeded reports a soft-limit breach. It accompanies a purchase
// that succeeded; it is a notification, never a failure.
type CreditLimitExceeded struct {
	CustomerID  int64     `json:"customer_id"`
	CreditLimit float64   `json:"credit_limit"`
	Spend       float64   `json:"spend"`
	Overage     float64   `json:"overage"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Kind implements Event.
func (CreditLimitExceeded) Kind() string { return KindCreditLimitExceeded }

// SaleCompleted announces an approved sale to downstream collaborators.
type SaleCompleted struct {
	SaleID      int64     `json:"sale_id"`
	Number      string    `json:"number"`
	CustomerID  int64     `json:"customer_id"`
	TotalAmount float64   `json:"total_amount"`
	PaidAmount  float64   `json:"paid_amount"`
	DueAmount   float64   `json:"due_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Kind implements Event.
func (SaleCompleted) Kind() string { return KindSaleCompleted }
