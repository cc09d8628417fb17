package catalog

import "time"

// Product is a single ledger unit of stock. Several rows may share the same
// Code: each batch of a product code is its own row with its own quantity,
// prices and expiry, and the stock ledger moves them independently.
type Product struct {
	ID                int64      `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Unit              string     `json:"unit"`
	Quantity          int64      `json:"quantity"`
	BuyingPrice       float64    `json:"buying_price"`
	SellingPrice      float64    `json:"selling_price"`
	LowStockThreshold int64      `json:"low_stock_threshold"`
	ReorderPoint      int64      `json:"reorder_point"`
	BatchNumber       *string    `json:"batch_number,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Warehouse is a stock location. Per-warehouse quantities live in
// stock_levels and are created lazily on first movement.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Code   string
	Search string
	Limit  int
	Offset int
}
