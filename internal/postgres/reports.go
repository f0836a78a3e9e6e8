package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

// Reports aggregates over completed orders only; pending, in-progress and
// cancelled orders never count toward income.
type Reports struct{ DB *pgxpool.Pool }

func NewReports(db *pgxpool.Pool) *Reports { return &Reports{DB: db} }

var _ repository.ReportRepository = (*Reports)(nil)

func (r *Reports) TotalIncome(ctx context.Context) (float64, error) {
	var total float64
	err := q(ctx, r.DB).QueryRow(ctx,
		`SELECT COALESCE(SUM(oi.line_total), 0)
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.status = 'completed'`,
	).Scan(&total)
	return total, err
}

func (r *Reports) UnitsSold(ctx context.Context) ([]domain.ProductSales, error) {
	rows, err := q(ctx, r.DB).Query(ctx,
		`SELECT p.id, p.name, p.quantity,
		        COALESCE(SUM(oi.quantity), 0), COALESCE(SUM(oi.line_total), 0)
		 FROM products p
		 JOIN order_items oi ON oi.product_id = p.id
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.status = 'completed'
		 GROUP BY p.id, p.name, p.quantity
		 ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProductSales
	for rows.Next() {
		var s domain.ProductSales
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Stock, &s.UnitsSold, &s.Income); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Reports) MonthlySummary(ctx context.Context) ([]domain.MonthlyBucket, error) {
	rows, err := q(ctx, r.DB).Query(ctx,
		`SELECT to_char(o.created_at, 'YYYY-MM') AS month,
		        COALESCE(SUM(oi.line_total), 0), COALESCE(SUM(oi.quantity), 0)
		 FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 WHERE o.status = 'completed'
		 GROUP BY month
		 ORDER BY month`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MonthlyBucket
	for rows.Next() {
		var b domain.MonthlyBucket
		if err := rows.Scan(&b.Month, &b.Income, &b.UnitsSold); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
