package ordertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/flowershop/pkg/models"
)

type MemCache struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func NewMemCache() *MemCache {
	return &MemCache{orders: make(map[string]*models.Order)}
}

func (c *MemCache) GetOrder(_ context.Context, id string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.orders[id]; ok {
		return o.Clone(), nil
	}
	return nil, nil
}

func (c *MemCache) SetOrder(_ context.Context, o *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[o.ID.Hex()] = o.Clone()
	return nil
}

func (c *MemCache) InvalidateOrders(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.orders, id)
	}
	return nil
}

func (c *MemCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.orders[id]
	return ok
}

// MemLocker ignores ttl; locks live until released or Expire is called.
type MemLocker struct {
	mu   sync.Mutex
	held map[string]string
	seq  int
	Err  error
}

func NewMemLocker() *MemLocker {
	return &MemLocker{held: make(map[string]string)}
}

func (l *MemLocker) Acquire(_ context.Context, name string, _ time.Duration) (string, bool, error) {
	if l.Err != nil {
		return "", false, l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[name]; ok {
		return "", false, nil
	}
	l.seq++
	token := fmt.Sprintf("token-%d", l.seq)
	l.held[name] = token
	return token, true, nil
}

func (l *MemLocker) Release(_ context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == token {
		delete(l.held, name)
	}
	return nil
}

// Expire drops the lock as if its ttl had run out.
func (l *MemLocker) Expire(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
}

// StatusChange is one OrderStatusChanged call seen by a Notifier.
type StatusChange struct {
	Order *models.Order
	From  models.OrderStatus
}

type Notifier struct {
	mu      sync.Mutex
	placed  []*models.Order
	changes []StatusChange
}

func (n *Notifier) OrderPlaced(o *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, o)
}

func (n *Notifier) OrderStatusChanged(o *models.Order, from models.OrderStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, StatusChange{Order: o, From: from})
}

func (n *Notifier) Placed() []*models.Order {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.Order(nil), n.placed...)
}

func (n *Notifier) Changes() []StatusChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]StatusChange(nil), n.changes...)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
