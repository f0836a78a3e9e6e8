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

type Orders struct{ DB *pgxpool.Pool }

func NewOrders(db *pgxpool.Pool) *Orders { return &Orders{DB: db} }

var _ repository.OrderRepository = (*Orders)(nil)

// NextOrderNumber draws from a dedicated sequence, so numbers stay unique and
// monotonic no matter how many orders are later deleted.
func (r *Orders) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := q(ctx, r.DB).QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d", n), nil
}

func (r *Orders) Create(ctx context.Context, o *domain.Order, items []domain.OrderItem) error {
	db := q(ctx, r.DB)
	err := db.QueryRow(ctx,
		`INSERT INTO orders(user_id, order_number, status) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		o.UserID, o.OrderNumber, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = o.ID
		err := db.QueryRow(ctx,
			`INSERT INTO order_items(order_id, product_id, quantity, line_total)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			o.ID, items[i].ProductID, items[i].Quantity, items[i].LineTotal,
		).Scan(&items[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Orders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := q(ctx, r.DB).QueryRow(ctx,
		`SELECT id, user_id, order_number, status, created_at FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Orders) GetItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := q(ctx, r.DB).Query(ctx,
		`SELECT id, order_id, product_id, quantity, line_total
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Orders) UpdateHeader(ctx context.Context, id, userID int64, status domain.Status) error {
	ct, err := q(ctx, r.DB).Exec(ctx,
		`UPDATE orders SET user_id = $2, status = $3 WHERE id = $1`, id, userID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ReplaceItems swaps an order's full item set: delete then reinsert.
func (r *Orders) ReplaceItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	db := q(ctx, r.DB)
	if _, err := db.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = orderID
		err := db.QueryRow(ctx,
			`INSERT INTO order_items(order_id, product_id, quantity, line_total)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			orderID, items[i].ProductID, items[i].Quantity, items[i].LineTotal,
		).Scan(&items[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Orders) Delete(ctx context.Context, id int64) error {
	ct, err := q(ctx, r.DB).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Orders) List(ctx context.Context, forUser *int64) ([]domain.OrderDetail, error) {
	db := q(ctx, r.DB)
	query := `SELECT o.id, o.user_id, o.order_number, o.status, o.created_at, u.username
	          FROM orders o JOIN users u ON u.id = o.user_id`
	args := []any{}
	if forUser != nil {
		query += ` WHERE o.user_id = $1`
		args = append(args, *forUser)
	}
	query += ` ORDER BY o.id`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderDetail
	index := map[int64]int{}
	for rows.Next() {
		var d domain.OrderDetail
		if err := rows.Scan(&d.ID, &d.UserID, &d.OrderNumber, &d.Status, &d.CreatedAt, &d.Owner); err != nil {
			return nil, err
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	for _, d := range out {
		ids = append(ids, d.ID)
	}
	itemRows, err := db.Query(ctx,
		`SELECT id, order_id, product_id, quantity, line_total
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it domain.OrderItem
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.LineTotal); err != nil {
			return nil, err
		}
		i := index[it.OrderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, itemRows.Err()
}

func (r *Orders) HasItemsForProduct(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := q(ctx, r.DB).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_items WHERE product_id = $1)`, productID,
	).Scan(&exists)
	return exists, err
}
