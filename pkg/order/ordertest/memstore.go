// Package ordertest provides in-memory doubles for the order service's
// storage, cache, lock and notifier dependencies.
package ordertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemStore mimics the MongoDB order store, including the unique partial index
// on active payable orders and the conditional lifecycle writes.
type MemStore struct {
	mu     sync.RWMutex
	orders map[primitive.ObjectID]*models.Order

	// FailWith, when set, is returned by every method.
	FailWith error
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[primitive.ObjectID]*models.Order)}
}

// Put stores o as-is, bypassing the index check. Useful for seeding legacy rows.
func (m *MemStore) Put(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	m.orders[o.ID] = o.Clone()
}

func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func indexed(o *models.Order) bool {
	return o.OrderStatus == models.OrderPending && o.PaymentStatus == models.PaymentUnpaid && o.ExpiresAt != nil
}

func (m *MemStore) Insert(_ context.Context, o *models.Order) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	for _, existing := range m.orders {
		if existing.OrderCode == o.OrderCode {
			return repository.ErrDuplicateKey
		}
		if indexed(o) && indexed(existing) && existing.CustomerID == o.CustomerID {
			return repository.ErrActiveOrderExists
		}
	}
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (m *MemStore) FindByCustomer(_ context.Context, customerID string) ([]*models.Order, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return m.collect(func(o *models.Order) bool { return o.CustomerID == customerID }), nil
}

func (m *MemStore) FindBlocking(_ context.Context, customerID string) (*models.Order, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	found := m.collect(func(o *models.Order) bool {
		return o.CustomerID == customerID && o.AwaitingPayment()
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func legacyBank(o *models.Order) bool {
	return o.PaymentMethod == models.PaymentBanking || o.PaymentMethod == models.PaymentStripe
}

func (m *MemStore) BackfillExpiry(_ context.Context, customerID string, window time.Duration) (int64, error) {
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, o := range m.orders {
		if customerID != "" && o.CustomerID != customerID {
			continue
		}
		if o.OrderStatus == models.OrderPending && o.PaymentStatus == models.PaymentUnpaid &&
			legacyBank(o) && o.ExpiresAt == nil {
			t := o.CreatedAt.Add(window)
			o.ExpiresAt = &t
			n++
		}
	}
	return n, nil
}

func (m *MemStore) FindExpired(_ context.Context, customerID string, now time.Time, window time.Duration) ([]*models.Order, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return m.collect(func(o *models.Order) bool {
		if customerID != "" && o.CustomerID != customerID {
			return false
		}
		if o.OrderStatus != models.OrderPending || o.PaymentStatus != models.PaymentUnpaid {
			return false
		}
		if o.ExpiresAt != nil {
			return !o.ExpiresAt.After(now)
		}
		return legacyBank(o) && !o.CreatedAt.After(now.Add(-window))
	}), nil
}

func (m *MemStore) ExpireOrders(_ context.Context, ids []primitive.ObjectID, entry models.HistoryEntry) (int64, error) {
	if m.FailWith != nil {
		return 0, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || o.OrderStatus != models.OrderPending || o.PaymentStatus != models.PaymentUnpaid {
			continue
		}
		o.OrderStatus = models.OrderCancelled
		o.PaymentStatus = models.PaymentExpired
		o.UpdatedAt = entry.CreatedAt
		o.History = append(o.History, entry)
		n++
	}
	return n, nil
}

func (m *MemStore) UpdateStatus(_ context.Context, id primitive.ObjectID, upd models.StatusUpdate) (*models.Order, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.OrderStatus != upd.From {
		return nil, repository.ErrNotFound
	}
	o.OrderStatus = upd.To
	if upd.SetPaid {
		o.PaymentStatus = models.PaymentPaid
	}
	o.UpdatedAt = upd.Entry.CreatedAt
	o.History = append(o.History, upd.Entry)
	return o.Clone(), nil
}

func (m *MemStore) MarkPaid(_ context.Context, id primitive.ObjectID, entry models.HistoryEntry) (*models.Order, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != models.PaymentUnpaid || o.OrderStatus == models.OrderCancelled {
		return nil, repository.ErrNotFound
	}
	o.PaymentStatus = models.PaymentPaid
	o.UpdatedAt = entry.CreatedAt
	o.History = append(o.History, entry)
	return o.Clone(), nil
}

func (m *MemStore) List(_ context.Context, f models.OrderFilter) ([]*models.Order, int64, error) {
	if m.FailWith != nil {
		return nil, 0, m.FailWith
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	all := m.collect(func(o *models.Order) bool {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			return false
		}
		if f.OrderStatus != "" && o.OrderStatus != f.OrderStatus {
			return false
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			return false
		}
		if q != "" {
			hay := strings.ToLower(strings.Join([]string{o.OrderCode, o.CustomerName, o.CustomerEmail, o.CustomerPhone}, " "))
			return strings.Contains(hay, q)
		}
		return true
	})

	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MemStore) CountByStatus(_ context.Context) (map[models.OrderStatus]int64, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.OrderStatus]int64)
	for _, o := range m.orders {
		counts[o.OrderStatus]++
	}
	return counts, nil
}

func (m *MemStore) DailyRevenue(_ context.Context, since time.Time) ([]models.RevenuePoint, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	loc := since.Location()
	byDay := make(map[string]*models.RevenuePoint)
	for _, o := range m.collect(func(o *models.Order) bool {
		return !o.CreatedAt.Before(since) &&
			(o.PaymentStatus == models.PaymentPaid || o.OrderStatus == models.OrderCompleted)
	}) {
		day := o.CreatedAt.In(loc).Format("2006-01-02")
		p, ok := byDay[day]
		if !ok {
			p = &models.RevenuePoint{Day: day}
			byDay[day] = p
		}
		p.Revenue += o.TotalAmount
		p.Orders++
	}

	points := make([]models.RevenuePoint, 0, len(byDay))
	for _, p := range byDay {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points, nil
}

// collect returns clones of matching orders, newest first.
func (m *MemStore) collect(match func(*models.Order) bool) []*models.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*models.Order{}
	for _, o := range m.orders {
		if match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
