package domain

import "time"

type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Order struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	OrderNumber string    `json:"order_number"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderItem captures the unit price at insertion time; LineTotal is never
// re-derived from the live catalog, so later price edits leave history intact.
type OrderItem struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"line_total"`
}

// OrderDetail is the ledger's read model: an order joined with its owner's
// username and full item set.
type OrderDetail struct {
	Order
	Owner string      `json:"owner"`
	Items []OrderItem `json:"items"`
}

// Total sums the item line totals.
func (d OrderDetail) Total() float64 {
	var t float64
	for _, it := range d.Items {
		t += it.LineTotal
	}
	return t
}

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// ProductSales is one row of the per-product sales report. Stock is the
// current on-hand quantity so an exporter can render stock next to sold.
type ProductSales struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Stock     int     `json:"stock"`
	UnitsSold int     `json:"units_sold"`
	Income    float64 `json:"income"`
}

// MonthlyBucket aggregates completed orders by creation month ("2006-01").
type MonthlyBucket struct {
	Month     string  `json:"month"`
	Income    float64 `json:"income"`
	UnitsSold int     `json:"units_sold"`
}
