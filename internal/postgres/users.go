package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

type Users struct{ DB *pgxpool.Pool }

func NewUsers(db *pgxpool.Pool) *Users { return &Users{DB: db} }

var _ repository.UserRepository = (*Users)(nil)

func (r *Users) Create(ctx context.Context, u *domain.User) error {
	err := q(ctx, r.DB).QueryRow(ctx,
		`INSERT INTO users(username, password_hash, role) VALUES ($1, $2, $3) RETURNING id`,
		u.Username, u.PasswordHash, u.Role,
	).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%q: %w", u.Username, domain.ErrDuplicateUsername)
	}
	return err
}

func (r *Users) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := q(ctx, r.DB).QueryRow(ctx,
		`SELECT id, username, password_hash, role FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Users) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := q(ctx, r.DB).QueryRow(ctx,
		`SELECT id, username, password_hash, role FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
