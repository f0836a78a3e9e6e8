package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

type Products struct{ DB *pgxpool.Pool }

func NewProducts(db *pgxpool.Pool) *Products { return &Products{DB: db} }

var _ repository.ProductRepository = (*Products)(nil)

func (r *Products) Create(ctx context.Context, p *domain.Product) error {
	return q(ctx, r.DB).QueryRow(ctx,
		`INSERT INTO products(name, price, quantity) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.Price, p.Quantity,
	).Scan(&p.ID)
}

func (r *Products) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := q(ctx, r.DB).QueryRow(ctx,
		`SELECT id, name, price, quantity FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Products) Update(ctx context.Context, p *domain.Product) error {
	ct, err := q(ctx, r.DB).Exec(ctx,
		`UPDATE products SET name = $2, price = $3, quantity = $4 WHERE id = $1`,
		p.ID, p.Name, p.Price, p.Quantity,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *Products) Delete(ctx context.Context, id int64) error {
	ct, err := q(ctx, r.DB).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Products) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := q(ctx, r.DB).Query(ctx,
		`SELECT id, name, price, quantity FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdjustStock changes on-hand quantity by delta. The row is locked first so a
// concurrent adjustment cannot drive stock negative between check and write.
func (r *Products) AdjustStock(ctx context.Context, id int64, delta int) error {
	db := q(ctx, r.DB)
	var stock int
	err := db.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if stock+delta < 0 {
		return fmt.Errorf("product %d: need %d, have %d: %w", id, -delta, stock, domain.ErrInsufficientStock)
	}
	_, err = db.Exec(ctx, `UPDATE products SET quantity = quantity + $2 WHERE id = $1`, id, delta)
	return err
}
