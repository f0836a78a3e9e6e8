package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/domain"
)

func TestMemoryProductsCopyOut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := &domain.Product{Name: "widget", Price: 2, Quantity: 5}
	require.NoError(t, store.Create(ctx, p))

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	got.Quantity = 999

	again, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Quantity)
}

func TestMemoryAdjustStockNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := &domain.Product{Name: "widget", Quantity: 3}
	require.NoError(t, store.Create(ctx, p))

	require.NoError(t, store.AdjustStock(ctx, p.ID, -3))
	err := store.AdjustStock(ctx, p.ID, -1)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.ErrorIs(t, store.AdjustStock(ctx, 999, 1), domain.ErrNotFound)
}

func TestMemoryOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	users := NewMemoryUsers(store)

	u := &domain.User{Username: "clerk", PasswordHash: "x", Role: domain.RoleUser}
	require.NoError(t, users.Create(ctx, u))

	num, err := orders.NextOrderNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", num)

	o := &domain.Order{UserID: u.ID, OrderNumber: num, Status: domain.StatusPending}
	items := []domain.OrderItem{{ProductID: 7, Quantity: 2, LineTotal: 10}}
	require.NoError(t, orders.Create(ctx, o, items))
	assert.NotZero(t, o.ID)
	assert.False(t, o.CreatedAt.IsZero())

	got, err := orders.GetItems(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, o.ID, got[0].OrderID)

	require.NoError(t, orders.ReplaceItems(ctx, o.ID, []domain.OrderItem{
		{ProductID: 7, Quantity: 1, LineTotal: 5},
		{ProductID: 8, Quantity: 4, LineTotal: 20},
	}))
	got, err = orders.GetItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	used, err := orders.HasItemsForProduct(ctx, 8)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = orders.HasItemsForProduct(ctx, 99)
	require.NoError(t, err)
	assert.False(t, used)

	list, err := orders.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "clerk", list[0].Owner)
	assert.Equal(t, 25.0, list[0].Total())

	require.NoError(t, orders.Delete(ctx, o.ID))
	_, err = orders.GetByID(ctx, o.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	got, err = orders.GetItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryUsersUniqueUsername(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUsers(NewMemoryStore())

	u := &domain.User{Username: "alice", PasswordHash: "x", Role: domain.RoleAdmin}
	require.NoError(t, users.Create(ctx, u))

	dup := &domain.User{Username: "alice", PasswordHash: "y", Role: domain.RoleUser}
	require.ErrorIs(t, users.Create(ctx, dup), domain.ErrDuplicateUsername)

	got, err := users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.GetByUsername(ctx, "bob")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryTxNestedCallsDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)

	p := &domain.Product{Name: "widget", Quantity: 5}
	require.NoError(t, store.Create(ctx, p))

	err := tx.WithTx(ctx, func(ctx context.Context) error {
		if err := store.AdjustStock(ctx, p.ID, -2); err != nil {
			return err
		}
		got, err := store.GetByID(ctx, p.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 3, got.Quantity)
		return nil
	})
	require.NoError(t, err)
}
