package repository

import (
	"context"

	"github.com/orderdesk/orderdesk/internal/domain"
)

// ProductRepository owns product rows. AdjustStock applies quantity += delta
// atomically and fails with domain.ErrInsufficientStock when the result
// would go negative.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]domain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) error
}

// OrderRepository owns orders and their line items. Items are always written
// as a batch: Create inserts the order with its items, ReplaceItems swaps the
// whole set, Delete removes the order and its items together.
type OrderRepository interface {
	NextOrderNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, o *domain.Order, items []domain.OrderItem) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	UpdateHeader(ctx context.Context, id, userID int64, status domain.Status) error
	ReplaceItems(ctx context.Context, orderID int64, items []domain.OrderItem) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, forUser *int64) ([]domain.OrderDetail, error)
	HasItemsForProduct(ctx context.Context, productID int64) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ReportRepository is the read-only aggregation surface. Implementations
// must return zeros and empty slices on an empty ledger, never an error.
type ReportRepository interface {
	TotalIncome(ctx context.Context) (float64, error)
	UnitsSold(ctx context.Context) ([]domain.ProductSales, error)
	MonthlySummary(ctx context.Context) ([]domain.MonthlyBucket, error)
}

// TxManager brackets a mutating sequence. Implementations guarantee that
// either every repository call inside fn is durably applied or none is.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
