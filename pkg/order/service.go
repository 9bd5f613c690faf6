// Package order implements the order lifecycle: checkout, the lazy expiry
// sweep, the admin status guard and payment confirmation.
package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	defaultDays      = 7
	maxDays          = 90
)

// Store is the order persistence the service needs. Conditional writes
// report a missed condition as repository.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByCustomer(ctx context.Context, customerID string) ([]*models.Order, error)
	FindBlocking(ctx context.Context, customerID string) (*models.Order, error)
	BackfillExpiry(ctx context.Context, customerID string, window time.Duration) (int64, error)
	FindExpired(ctx context.Context, customerID string, now time.Time, window time.Duration) ([]*models.Order, error)
	ExpireOrders(ctx context.Context, ids []primitive.ObjectID, entry models.HistoryEntry) (int64, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, upd models.StatusUpdate) (*models.Order, error)
	MarkPaid(ctx context.Context, id primitive.ObjectID, entry models.HistoryEntry) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]*models.Order, int64, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)
	DailyRevenue(ctx context.Context, since time.Time) ([]models.RevenuePoint, error)
}

// Cache holds orders by id. A miss is (nil, nil).
type Cache interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	SetOrder(ctx context.Context, o *models.Order) error
	InvalidateOrders(ctx context.Context, ids ...string) error
}

// Locker hands out expiring named locks. Release only frees a lock still
// owned by the token Acquire returned.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	OrderPlaced(o *models.Order)
	OrderStatusChanged(o *models.Order, from models.OrderStatus)
}

type Service struct {
	store    Store
	cache    Cache
	locker   Locker
	notifier Notifier
	logger   *zap.Logger

	window  time.Duration
	lockTTL time.Duration
	loc     *time.Location
	now     func() time.Time
}

func NewService(cfg config.OrderConfig, store Store, cache Cache, locker Locker, notifier Notifier, logger *zap.Logger) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	return &Service{
		store:    store,
		cache:    cache,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		window:   cfg.PaymentWindow,
		lockTTL:  cfg.CheckoutLock,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source; tests use it to step past expiry.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates a checkout, refuses it while the customer still has an
// order awaiting payment, and persists it. Side effects never fail the call.
func (s *Service) Create(ctx context.Context, customerID string, in CreateInput) (*models.Order, error) {
	v, err := validate(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.Sweep(ctx, customerID); err != nil {
		return nil, apperror.Internal(err)
	}

	lock := "checkout:" + customerID
	token, acquired, err := s.locker.Acquire(ctx, lock, s.lockTTL)
	if err != nil {
		s.logger.Warn("Checkout lock unavailable, relying on unique index",
			zap.String("customer_id", customerID), zap.Error(err))
	} else if !acquired {
		return nil, apperror.Wrap(http.StatusConflict, msgCheckoutBusy, ErrCheckoutInProgress)
	} else {
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), lock, token); err != nil {
				s.logger.Warn("Failed to release checkout lock", zap.String("customer_id", customerID), zap.Error(err))
			}
		}()
	}

	blocking, err := s.store.FindBlocking(ctx, customerID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if blocking != nil {
		return nil, apperror.Wrap(http.StatusConflict, msgBlockingOrder, ErrBlockingOrder)
	}

	now := s.now()
	o := &models.Order{
		ID:              primitive.NewObjectID(),
		OrderCode:       newOrderCode(now.In(s.loc)),
		CustomerID:      customerID,
		CustomerName:    v.customer.Name,
		CustomerEmail:   v.customer.Email,
		CustomerPhone:   v.customer.Phone,
		Items:           v.items,
		TotalAmount:     v.total,
		PaymentMethod:   v.method,
		PaymentStatus:   models.PaymentUnpaid,
		OrderStatus:     models.OrderPending,
		ShippingAddress: v.customer.Address,
		Note:            v.note,
		History: []models.HistoryEntry{{
			To:        models.OrderPending,
			By:        customerID,
			Note:      NoteCreated,
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if v.method.Payable() {
		expiresAt := now.Add(s.window)
		o.ExpiresAt = &expiresAt
	}

	if err := s.store.Insert(ctx, o); err != nil {
		if errors.Is(err, repository.ErrActiveOrderExists) {
			return nil, apperror.Wrap(http.StatusConflict, msgBlockingOrder, ErrBlockingOrder)
		}
		return nil, apperror.Internal(err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", o.ID.Hex()),
		zap.String("order_code", o.OrderCode),
		zap.String("customer_id", customerID),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.Int64("total_amount", o.TotalAmount))

	s.notifier.OrderPlaced(o.Clone())

	return o, nil
}

// ListForCustomer sweeps the customer's expired orders, then returns all of
// their orders newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]*models.Order, error) {
	if _, err := s.Sweep(ctx, customerID); err != nil {
		return nil, apperror.Internal(err)
	}
	orders, err := s.store.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return orders, nil
}

// GetForCustomer returns one of the customer's own orders. Other customers'
// orders are reported as not found.
func (s *Service) GetForCustomer(ctx context.Context, customerID, id string) (*models.Order, error) {
	if _, err := s.Sweep(ctx, customerID); err != nil {
		return nil, apperror.Internal(err)
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, notFound()
	}
	return o, nil
}

// Sweep expires the customer's lapsed orders and returns how many changed.
func (s *Service) Sweep(ctx context.Context, customerID string) (int, error) {
	return s.sweep(ctx, customerID)
}

// SweepAll runs the expiry sweep across every customer.
func (s *Service) SweepAll(ctx context.Context) (int, error) {
	return s.sweep(ctx, "")
}

func (s *Service) sweep(ctx context.Context, customerID string) (int, error) {
	if n, err := s.store.BackfillExpiry(ctx, customerID, s.window); err != nil {
		// legacy rows that collide with the active-order index keep no expiresAt;
		// FindExpired still catches them through createdAt
		s.logger.Warn("Expiry backfill failed", zap.String("customer_id", customerID), zap.Error(err))
	} else if n > 0 {
		s.logger.Info("Backfilled order expiry", zap.String("customer_id", customerID), zap.Int64("count", n))
	}

	now := s.now()
	expired, err := s.store.FindExpired(ctx, customerID, now, s.window)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]primitive.ObjectID, len(expired))
	hexIDs := make([]string, len(expired))
	for i, o := range expired {
		ids[i] = o.ID
		hexIDs[i] = o.ID.Hex()
	}

	entry := models.HistoryEntry{
		From:      models.OrderPending,
		To:        models.OrderCancelled,
		By:        models.SystemActor,
		Note:      NoteExpired,
		CreatedAt: now,
	}
	n, err := s.store.ExpireOrders(ctx, ids, entry)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, hexIDs...)

	s.logger.Info("Expired unpaid orders",
		zap.String("customer_id", customerID),
		zap.Strings("order_ids", hexIDs),
		zap.Int64("updated", n))

	return int(n), nil
}

// Get returns an order by hex id, served from cache when possible.
func (s *Service) Get(ctx context.Context, id string) (*models.Order, error) {
	if cached, err := s.cache.GetOrder(ctx, id); err != nil {
		s.logger.Warn("Order cache read failed", zap.String("order_id", id), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// A read racing a write could re-cache the old document after the
	// writer invalidated it, so only orders that can no longer change
	// are cached.
	if settled(o) {
		if err := s.cache.SetOrder(ctx, o); err != nil {
			s.logger.Warn("Order cache write failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	return o, nil
}

// settled reports whether no transition or payment can change o again.
func settled(o *models.Order) bool {
	switch o.OrderStatus {
	case models.OrderCancelled:
		return true
	case models.OrderCompleted:
		return o.PaymentStatus != models.PaymentUnpaid
	}
	return false
}

// Detail is the admin view of an order: the reconciled order plus the
// statuses it may move to.
func (s *Service) Detail(ctx context.Context, id string) (*models.Order, []models.OrderStatus, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if o, err = s.reconcile(ctx, o); err != nil {
		return nil, nil, err
	}
	return o, AllowedNext(o.OrderStatus), nil
}

// UpdateStatus moves an order along the state machine on behalf of an admin.
func (s *Service) UpdateStatus(ctx context.Context, id string, to models.OrderStatus, by, note string) (*models.Order, error) {
	to, ok := models.ParseOrderStatus(string(to))
	if !ok {
		return nil, invalid(msgInvalidStatus)
	}

	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o, err = s.reconcile(ctx, o); err != nil {
		return nil, err
	}

	from := o.OrderStatus
	if !CanTransition(from, to) {
		return nil, transitionNotAllowed(from, to)
	}

	upd := models.StatusUpdate{
		From: from,
		To:   to,
		// cash is collected on delivery
		SetPaid: to == models.OrderCompleted &&
			o.PaymentMethod == models.PaymentCOD &&
			o.PaymentStatus == models.PaymentUnpaid,
		Entry: models.HistoryEntry{
			From:      from,
			To:        to,
			By:        by,
			Note:      strings.TrimSpace(note),
			CreatedAt: s.now(),
		},
	}

	updated, err := s.store.UpdateStatus(ctx, o.ID, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Wrap(http.StatusConflict, msgConcurrent, ErrConcurrentUpdate)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("by", by))

	s.notifier.OrderStatusChanged(updated.Clone(), from)

	return updated, nil
}

// MarkPaid records an externally confirmed payment.
func (s *Service) MarkPaid(ctx context.Context, id, by, note string) (*models.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o, err = s.reconcile(ctx, o); err != nil {
		return nil, err
	}

	if o.PaymentStatus != models.PaymentUnpaid || o.OrderStatus == models.OrderCancelled {
		return nil, apperror.Wrap(http.StatusBadRequest, msgPaymentDenied, ErrPaymentNotAllowed)
	}

	if note = strings.TrimSpace(note); note == "" {
		note = NotePaymentPaid
	}
	entry := models.HistoryEntry{
		From:      o.OrderStatus,
		To:        o.OrderStatus,
		By:        by,
		Note:      note,
		CreatedAt: s.now(),
	}

	updated, err := s.store.MarkPaid(ctx, o.ID, entry)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Wrap(http.StatusConflict, msgConcurrent, ErrConcurrentUpdate)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.invalidate(ctx, id)

	s.logger.Info("Order marked paid", zap.String("order_id", id), zap.String("by", by))

	return updated, nil
}

// List is the admin order listing. It sweeps every customer first so the
// listing never shows a lapsed order as pending.
func (s *Service) List(ctx context.Context, f models.OrderFilter) ([]*models.Order, int64, error) {
	if f.OrderStatus != "" {
		st, ok := models.ParseOrderStatus(string(f.OrderStatus))
		if !ok {
			return nil, 0, invalid(msgInvalidStatus)
		}
		f.OrderStatus = st
	}
	if f.PaymentStatus != "" {
		st, ok := models.ParsePaymentStatus(string(f.PaymentStatus))
		if !ok {
			return nil, 0, invalid(msgInvalidPaymentStatus)
		}
		f.PaymentStatus = st
	}

	if _, err := s.SweepAll(ctx); err != nil {
		return nil, 0, apperror.Internal(err)
	}

	orders, total, err := s.store.List(ctx, Paginate(f))
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return orders, total, nil
}

// Paginate applies the first page and the default and maximum page size to f.
func Paginate(f models.OrderFilter) models.OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	return f
}

// Dashboard aggregates status counts and daily revenue over the last days.
func (s *Service) Dashboard(ctx context.Context, days int) (*models.Dashboard, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}

	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	now := s.now().In(s.loc)
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	since := startOfToday.AddDate(0, 0, -(days - 1))

	points, err := s.store.DailyRevenue(ctx, since)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	d := &models.Dashboard{
		Days:         days,
		StatusCounts: counts,
		Revenue:      points,
	}
	for _, p := range points {
		d.TotalRevenue += p.Revenue
	}
	return d, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, notFound()
	}
	o, err := s.store.FindByID(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return o, nil
}

// reconcile applies a pending expiry before an admin acts on the order.
func (s *Service) reconcile(ctx context.Context, o *models.Order) (*models.Order, error) {
	if !o.Expired(s.now()) {
		return o, nil
	}
	if _, err := s.Sweep(ctx, o.CustomerID); err != nil {
		return nil, apperror.Internal(err)
	}
	return s.load(ctx, o.ID.Hex())
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if err := s.cache.InvalidateOrders(ctx, ids...); err != nil {
		s.logger.Warn("Order cache invalidation failed", zap.Strings("order_ids", ids), zap.Error(err))
	}
}

// newOrderCode renders codes like DH250314-9F2C1A.
func newOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("DH%s-%s", now.Format("060102"), suffix)
}
