// Package catalog manages the product list and its on-hand stock.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

type Service struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
	log      zerolog.Logger
}

func NewService(products repository.ProductRepository, orders repository.OrderRepository, tx repository.TxManager, log zerolog.Logger) *Service {
	return &Service{products: products, orders: orders, tx: tx, log: log}
}

func validateProduct(name string, price float64, quantity int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if price < 0 {
		return fmt.Errorf("price must not be negative: %w", domain.ErrValidation)
	}
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative: %w", domain.ErrValidation)
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, name string, price float64, quantity int) (*domain.Product, error) {
	if err := validateProduct(name, price, quantity); err != nil {
		return nil, err
	}
	p := &domain.Product{Name: strings.TrimSpace(name), Price: price, Quantity: quantity}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", p.ID).Str("name", p.Name).Msg("product created")
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, name string, price float64, quantity int) (*domain.Product, error) {
	if err := validateProduct(name, price, quantity); err != nil {
		return nil, err
	}
	p := &domain.Product{ID: id, Name: strings.TrimSpace(name), Price: price, Quantity: quantity}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", id).Msg("product updated")
	return p, nil
}

// DeleteProduct refuses to delete a product that any order item still
// references, so order history keeps resolving.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.products.GetByID(ctx, id); err != nil {
			return err
		}
		used, err := s.orders.HasItemsForProduct(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("product %d appears in existing orders: %w", id, domain.ErrReferenced)
		}
		return s.products.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

// AdjustStock applies a manual stock correction (restock or writedown).
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (*domain.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("delta must not be zero: %w", domain.ErrValidation)
	}
	var p *domain.Product
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.products.AdjustStock(ctx, id, delta); err != nil {
			return err
		}
		var err error
		p, err = s.products.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", id).Int("delta", delta).Msg("stock adjusted")
	return p, nil
}

func (s *Service) GetStock(ctx context.Context, id int64) (int, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Quantity, nil
}
