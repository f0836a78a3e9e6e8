// Package ledger owns the order book: placing, editing, status moves and
// deletion, with stock held once per live order. Stock is taken at placement
// and returned only when an order leaves the book or is cancelled; completing
// an order is a pure status write and never touches stock again.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/events"
	"github.com/orderdesk/orderdesk/internal/repository"
)

type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Service struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	tx       repository.TxManager
	pub      events.Publisher
	log      zerolog.Logger
}

func NewService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	tx repository.TxManager,
	pub events.Publisher,
	log zerolog.Logger,
) *Service {
	return &Service{products: products, orders: orders, users: users, tx: tx, pub: pub, log: log}
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("order needs at least one item: %w", domain.ErrValidation)
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("quantity for product %d must be positive: %w", it.ProductID, domain.ErrValidation)
		}
	}
	return nil
}

// netQuantities sums requested quantities per product. Repeated lines for the
// same product are legal and reserve their combined total.
func netQuantities(items []ItemInput) map[int64]int {
	need := make(map[int64]int, len(items))
	for _, it := range items {
		need[it.ProductID] += it.Quantity
	}
	return need
}

// PlaceOrder reserves stock for every line and records the order as pending.
// All checks run before the first write, so a failed line leaves every
// product untouched.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, items []ItemInput) (*domain.OrderDetail, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var detail *domain.OrderDetail
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		owner, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		need := netQuantities(items)
		prices := make(map[int64]float64, len(need))
		for pid, qty := range need {
			p, err := s.products.GetByID(ctx, pid)
			if err != nil {
				return err
			}
			if p.Quantity < qty {
				return fmt.Errorf("product %d: need %d, have %d: %w", pid, qty, p.Quantity, domain.ErrInsufficientStock)
			}
			prices[pid] = p.Price
		}

		number, err := s.orders.NextOrderNumber(ctx)
		if err != nil {
			return err
		}
		order := domain.Order{UserID: userID, OrderNumber: number, Status: domain.StatusPending}
		rows := make([]domain.OrderItem, len(items))
		for i, it := range items {
			rows[i] = domain.OrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				LineTotal: prices[it.ProductID] * float64(it.Quantity),
			}
		}
		if err := s.orders.Create(ctx, &order, rows); err != nil {
			return err
		}
		for pid, qty := range need {
			if err := s.products.AdjustStock(ctx, pid, -qty); err != nil {
				return err
			}
		}
		detail = &domain.OrderDetail{Order: order, Owner: owner.Username, Items: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("order_id", detail.ID).Str("order_number", detail.OrderNumber).Msg("order placed")
	s.pub.Publish(ctx, events.OrderEvent{
		Type: events.TypeOrderPlaced, OrderID: detail.ID, OrderNumber: detail.OrderNumber,
		UserID: detail.UserID, Status: detail.Status, OccurredAt: time.Now().UTC(),
	})
	return detail, nil
}

// EditOrder rewrites an order's owner, status and item set in one move. Stock
// follows the net per-product difference between what the order held before
// and what it holds after, so an unchanged line costs nothing and an edit
// that fails mid-validation changes nothing.
func (s *Service) EditOrder(ctx context.Context, orderID, newUserID int64, newStatus domain.Status, items []ItemInput) (*domain.OrderDetail, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", newStatus, domain.ErrValidation)
	}
	if err := validateItems(items); err != nil {
		return nil, err
	}

	var detail *domain.OrderDetail
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		owner, err := s.users.GetByID(ctx, newUserID)
		if err != nil {
			return err
		}
		oldItems, err := s.orders.GetItems(ctx, orderID)
		if err != nil {
			return err
		}

		// Net stock delta per product: positive means we must reserve more.
		delta := make(map[int64]int)
		if newStatus.HoldsStock() {
			for pid, qty := range netQuantities(items) {
				delta[pid] += qty
			}
		}
		if order.Status.HoldsStock() {
			for _, it := range oldItems {
				delta[it.ProductID] -= it.Quantity
			}
		}

		prices := make(map[int64]float64)
		for _, it := range items {
			if _, ok := prices[it.ProductID]; ok {
				continue
			}
			p, err := s.products.GetByID(ctx, it.ProductID)
			if err != nil {
				return err
			}
			prices[it.ProductID] = p.Price
		}
		for pid, d := range delta {
			if d <= 0 {
				continue
			}
			p, err := s.products.GetByID(ctx, pid)
			if err != nil {
				return err
			}
			if p.Quantity < d {
				return fmt.Errorf("product %d: need %d more, have %d: %w", pid, d, p.Quantity, domain.ErrInsufficientStock)
			}
		}

		if err := s.orders.UpdateHeader(ctx, orderID, newUserID, newStatus); err != nil {
			return err
		}
		rows := make([]domain.OrderItem, len(items))
		for i, it := range items {
			rows[i] = domain.OrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				LineTotal: prices[it.ProductID] * float64(it.Quantity),
			}
		}
		if err := s.orders.ReplaceItems(ctx, orderID, rows); err != nil {
			return err
		}
		for pid, d := range delta {
			if d == 0 {
				continue
			}
			if err := s.products.AdjustStock(ctx, pid, -d); err != nil {
				return err
			}
		}
		order.UserID = newUserID
		order.Status = newStatus
		detail = &domain.OrderDetail{Order: *order, Owner: owner.Username, Items: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("order_id", orderID).Msg("order edited")
	s.pub.Publish(ctx, events.OrderEvent{
		Type: events.TypeOrderEdited, OrderID: detail.ID, OrderNumber: detail.OrderNumber,
		UserID: detail.UserID, Status: detail.Status, OccurredAt: time.Now().UTC(),
	})
	return detail, nil
}

// SetStatus moves an order between statuses. Cancelling returns the held
// stock; leaving cancelled re-reserves it (and fails if stock ran out in the
// meantime); every other move, completing included, only rewrites the status
// column. Setting the current status again is a no-op.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status domain.Status) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidation)
	}

	var out *domain.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == status {
			out = order
			return nil
		}

		wasHolding := order.Status.HoldsStock()
		willHold := status.HoldsStock()
		switch {
		case wasHolding && !willHold:
			items, err := s.orders.GetItems(ctx, orderID)
			if err != nil {
				return err
			}
			for pid, qty := range heldQuantities(items) {
				if err := s.products.AdjustStock(ctx, pid, qty); err != nil {
					return err
				}
			}
		case !wasHolding && willHold:
			items, err := s.orders.GetItems(ctx, orderID)
			if err != nil {
				return err
			}
			need := heldQuantities(items)
			for pid, qty := range need {
				p, err := s.products.GetByID(ctx, pid)
				if err != nil {
					return err
				}
				if p.Quantity < qty {
					return fmt.Errorf("product %d: need %d, have %d: %w", pid, qty, p.Quantity, domain.ErrInsufficientStock)
				}
			}
			for pid, qty := range need {
				if err := s.products.AdjustStock(ctx, pid, -qty); err != nil {
					return err
				}
			}
		}

		if err := s.orders.UpdateHeader(ctx, orderID, order.UserID, status); err != nil {
			return err
		}
		order.Status = status
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("order_id", orderID).Str("status", string(status)).Msg("order status set")
	s.pub.Publish(ctx, events.OrderEvent{
		Type: events.TypeOrderStatusChanged, OrderID: out.ID, OrderNumber: out.OrderNumber,
		UserID: out.UserID, Status: out.Status, OccurredAt: time.Now().UTC(),
	})
	return out, nil
}

// DeleteOrder removes an order and, when the order still holds stock, puts
// the reserved quantities back on the shelf.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	var deleted domain.Order
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.HoldsStock() {
			items, err := s.orders.GetItems(ctx, orderID)
			if err != nil {
				return err
			}
			for pid, qty := range heldQuantities(items) {
				if err := s.products.AdjustStock(ctx, pid, qty); err != nil {
					return err
				}
			}
		}
		deleted = *order
		return s.orders.Delete(ctx, orderID)
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("order_id", orderID).Msg("order deleted")
	s.pub.Publish(ctx, events.OrderEvent{
		Type: events.TypeOrderDeleted, OrderID: deleted.ID, OrderNumber: deleted.OrderNumber,
		UserID: deleted.UserID, Status: deleted.Status, OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID int64) (*domain.OrderDetail, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.GetItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	detail := &domain.OrderDetail{Order: *order, Items: items}
	if owner, err := s.users.GetByID(ctx, order.UserID); err == nil {
		detail.Owner = owner.Username
	}
	return detail, nil
}

// ListOrders returns all orders, or only those owned by forUser when set.
func (s *Service) ListOrders(ctx context.Context, forUser *int64) ([]domain.OrderDetail, error) {
	return s.orders.List(ctx, forUser)
}

func heldQuantities(items []domain.OrderItem) map[int64]int {
	need := make(map[int64]int, len(items))
	for _, it := range items {
		need[it.ProductID] += it.Quantity
	}
	return need
}
