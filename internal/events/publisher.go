// Package events publishes order lifecycle notifications for downstream
// consumers (fulfilment dashboards, audit trails). Publishing is best-effort
// and never blocks or fails an order mutation.
package events

import (
	"context"
	"time"

	"github.com/orderdesk/orderdesk/internal/domain"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderEdited        = "order.edited"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderDeleted       = "order.deleted"
)

type OrderEvent struct {
	Type        string        `json:"type"`
	OrderID     int64         `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	UserID      int64         `json:"user_id"`
	Status      domain.Status `json:"status"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent)
}

// Nop drops every event. Used when no broker is configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) {}
