package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/orderdesk/orderdesk/internal/domain"
)

// MemoryStore is the in-process implementation of the storage interfaces,
// backing tests and the --store=memory demo mode. A single RWMutex plays the
// role of the database: MemoryTx takes the write lock for the whole
// transaction and marks the context so nested calls skip their own locking.
type MemoryStore struct {
	mu          sync.RWMutex
	nextProdID  int64
	nextOrderID int64
	nextItemID  int64
	nextUserID  int64
	orderSeq    int64

	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    map[int64][]domain.OrderItem
	users    map[int64]domain.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProdID:  1,
		nextOrderID: 1,
		nextItemID:  1,
		nextUserID:  1,
		products:    make(map[int64]domain.Product),
		orders:      make(map[int64]domain.Order),
		items:       make(map[int64][]domain.OrderItem),
		users:       make(map[int64]domain.User),
	}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(txKey{}).(bool)
	return ok && v
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}

func (m *MemoryStore) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}

func (m *MemoryStore) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryStore) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

var _ ProductRepository = (*MemoryStore)(nil)

func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextProdID
	m.nextProdID++
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[p.ID]; !ok {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AdjustStock(ctx context.Context, id int64, delta int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if p.Quantity+delta < 0 {
		return fmt.Errorf("product %d: need %d, have %d: %w", id, -delta, p.Quantity, domain.ErrInsufficientStock)
	}
	p.Quantity += delta
	m.products[id] = p
	return nil
}

// MemoryOrders implements OrderRepository over the shared store.
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) NextOrderNumber(ctx context.Context) (string, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	mo.store.orderSeq++
	return fmt.Sprintf("ORD-%d", mo.store.orderSeq), nil
}

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order, items []domain.OrderItem) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	mo.store.orders[o.ID] = *o
	stored := make([]domain.OrderItem, len(items))
	for i := range items {
		items[i].ID = mo.store.nextItemID
		mo.store.nextItemID++
		items[i].OrderID = o.ID
		stored[i] = items[i]
	}
	mo.store.items[o.ID] = stored
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	cp := o
	return &cp, nil
}

func (mo *MemoryOrders) GetItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	items := mo.store.items[orderID]
	out := make([]domain.OrderItem, len(items))
	copy(out, items)
	return out, nil
}

func (mo *MemoryOrders) UpdateHeader(ctx context.Context, id, userID int64, status domain.Status) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	o.UserID = userID
	o.Status = status
	mo.store.orders[id] = o
	return nil
}

func (mo *MemoryOrders) ReplaceItems(ctx context.Context, orderID int64, items []domain.OrderItem) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.orders[orderID]; !ok {
		return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	stored := make([]domain.OrderItem, len(items))
	for i := range items {
		items[i].ID = mo.store.nextItemID
		mo.store.nextItemID++
		items[i].OrderID = orderID
		stored[i] = items[i]
	}
	mo.store.items[orderID] = stored
	return nil
}

func (mo *MemoryOrders) Delete(ctx context.Context, id int64) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	delete(mo.store.orders, id)
	delete(mo.store.items, id)
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, forUser *int64) ([]domain.OrderDetail, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	ids := make([]int64, 0, len(mo.store.orders))
	for id, o := range mo.store.orders {
		if forUser != nil && o.UserID != *forUser {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.OrderDetail, 0, len(ids))
	for _, id := range ids {
		o := mo.store.orders[id]
		items := make([]domain.OrderItem, len(mo.store.items[id]))
		copy(items, mo.store.items[id])
		d := domain.OrderDetail{Order: o, Items: items}
		if u, ok := mo.store.users[o.UserID]; ok {
			d.Owner = u.Username
		}
		out = append(out, d)
	}
	return out, nil
}

func (mo *MemoryOrders) HasItemsForProduct(ctx context.Context, productID int64) (bool, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	for _, items := range mo.store.items {
		for _, it := range items {
			if it.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

// MemoryUsers implements UserRepository over the shared store.
type MemoryUsers struct{ store *MemoryStore }

func NewMemoryUsers(store *MemoryStore) *MemoryUsers { return &MemoryUsers{store: store} }

var _ UserRepository = (*MemoryUsers)(nil)

func (mu *MemoryUsers) Create(ctx context.Context, u *domain.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	for _, existing := range mu.store.users {
		if existing.Username == u.Username {
			return fmt.Errorf("%q: %w", u.Username, domain.ErrDuplicateUsername)
		}
	}
	u.ID = mu.store.nextUserID
	mu.store.nextUserID++
	mu.store.users[u.ID] = *u
	return nil
}

func (mu *MemoryUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	u, ok := mu.store.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	cp := u
	return &cp, nil
}

func (mu *MemoryUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	for _, u := range mu.store.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

// MemoryReports implements ReportRepository over the shared store.
type MemoryReports struct{ store *MemoryStore }

func NewMemoryReports(store *MemoryStore) *MemoryReports { return &MemoryReports{store: store} }

var _ ReportRepository = (*MemoryReports)(nil)

func (mr *MemoryReports) completedItems() map[int64][]domain.OrderItem {
	out := make(map[int64][]domain.OrderItem)
	for id, o := range mr.store.orders {
		if o.Status == domain.StatusCompleted {
			out[id] = mr.store.items[id]
		}
	}
	return out
}

func (mr *MemoryReports) TotalIncome(ctx context.Context) (float64, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	var total float64
	for _, items := range mr.completedItems() {
		for _, it := range items {
			total += it.LineTotal
		}
	}
	return total, nil
}

func (mr *MemoryReports) UnitsSold(ctx context.Context) ([]domain.ProductSales, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	byProduct := make(map[int64]*domain.ProductSales)
	for _, items := range mr.completedItems() {
		for _, it := range items {
			s, ok := byProduct[it.ProductID]
			if !ok {
				s = &domain.ProductSales{ProductID: it.ProductID}
				byProduct[it.ProductID] = s
			}
			s.UnitsSold += it.Quantity
			s.Income += it.LineTotal
		}
	}
	out := make([]domain.ProductSales, 0, len(byProduct))
	for pid, s := range byProduct {
		if p, ok := mr.store.products[pid]; ok {
			s.Name = p.Name
			s.Stock = p.Quantity
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (mr *MemoryReports) MonthlySummary(ctx context.Context) ([]domain.MonthlyBucket, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	byMonth := make(map[string]*domain.MonthlyBucket)
	for id, o := range mr.store.orders {
		if o.Status != domain.StatusCompleted {
			continue
		}
		month := o.CreatedAt.Format("2006-01")
		b, ok := byMonth[month]
		if !ok {
			b = &domain.MonthlyBucket{Month: month}
			byMonth[month] = b
		}
		for _, it := range mr.store.items[id] {
			b.Income += it.LineTotal
			b.UnitsSold += it.Quantity
		}
	}
	out := make([]domain.MonthlyBucket, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// MemoryTx serializes a whole mutation under the store's write lock. There is
// no rollback here; callers keep the all-or-nothing contract by validating
// every step before the first mutation, which all services in this module do.
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}
