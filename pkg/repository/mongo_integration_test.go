//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MongoSuite struct {
	suite.Suite

	ctx       context.Context
	container *mongodb.MongoDBContainer
	repo      *MongoRepository
	orders    *OrderStore
	inbox     *NotificationStore
	now       time.Time
}

func (s *MongoSuite) SetupSuite() {
	s.ctx = context.Background()

	c, err := mongodb.Run(s.ctx, "mongo:7")
	s.Require().NoError(err)
	s.container = c

	uri, err := c.ConnectionString(s.ctx)
	s.Require().NoError(err)

	s.repo, err = NewMongoRepository(&config.MongoDBConfig{
		URI:                     uri,
		Database:                "flowershop_test",
		OrdersCollection:        "orders",
		NotificationsCollection: "notifications",
		ConnectTimeout:          30 * time.Second,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Ping(s.ctx))

	s.orders = NewOrderStore(s.repo.Orders(), "Asia/Ho_Chi_Minh")
	s.inbox = NewNotificationStore(s.repo.Notifications())
}

func (s *MongoSuite) TearDownSuite() {
	if s.repo != nil {
		_ = s.repo.Close(s.ctx)
	}
	if err := testcontainers.TerminateContainer(s.container); err != nil {
		s.T().Logf("terminate mongo container: %v", err)
	}
}

func (s *MongoSuite) SetupTest() {
	s.Require().NoError(s.repo.Orders().Drop(s.ctx))
	s.Require().NoError(s.repo.Notifications().Drop(s.ctx))
	s.Require().NoError(s.repo.EnsureIndexes(s.ctx))
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *MongoSuite) newOrder(customer string, method models.PaymentMethod) *models.Order {
	o := &models.Order{
		OrderCode:     "DH" + primitive.NewObjectID().Hex()[18:],
		CustomerID:    customer,
		CustomerName:  "Nguyễn Văn A",
		Items:         []models.OrderItem{{Name: "Rose Bouquet", Price: 200000, Quantity: 2}},
		TotalAmount:   400000,
		PaymentMethod: method,
		PaymentStatus: models.PaymentUnpaid,
		OrderStatus:   models.OrderPending,
		History:       []models.HistoryEntry{},
		CreatedAt:     s.now,
		UpdatedAt:     s.now,
	}
	if method.Payable() {
		exp := s.now.Add(10 * time.Minute)
		o.ExpiresAt = &exp
	}
	return o
}

func (s *MongoSuite) TestActivePayableIndex() {
	s.Require().NoError(s.orders.Insert(s.ctx, s.newOrder("c1", models.PaymentMoMo)))

	err := s.orders.Insert(s.ctx, s.newOrder("c1", models.PaymentBanking))
	s.True(errors.Is(err, ErrActiveOrderExists), "got %v", err)

	s.NoError(s.orders.Insert(s.ctx, s.newOrder("c1", models.PaymentCOD)))
	s.NoError(s.orders.Insert(s.ctx, s.newOrder("c2", models.PaymentVNPay)))

	blocking, err := s.orders.FindBlocking(s.ctx, "c1")
	s.Require().NoError(err)
	s.Require().NotNil(blocking)
	s.Equal(models.PaymentMoMo, blocking.PaymentMethod)
}

func (s *MongoSuite) TestDuplicateOrderCode() {
	first := s.newOrder("c1", models.PaymentCOD)
	s.Require().NoError(s.orders.Insert(s.ctx, first))

	dup := s.newOrder("c2", models.PaymentCOD)
	dup.OrderCode = first.OrderCode
	err := s.orders.Insert(s.ctx, dup)
	s.True(errors.Is(err, ErrDuplicateKey), "got %v", err)
}

func (s *MongoSuite) TestLegacyBackfillAndExpiry() {
	legacyID := primitive.NewObjectID()
	_, err := s.repo.Orders().InsertOne(s.ctx, bson.M{
		"_id":           legacyID,
		"orderCode":     "DH-LEGACY",
		"customerId":    "c1",
		"paymentMethod": models.PaymentStripe,
		"paymentStatus": models.PaymentUnpaid,
		"orderStatus":   models.OrderPending,
		"history":       bson.A{},
		"createdAt":     s.now.Add(-time.Hour),
	})
	s.Require().NoError(err)

	n, err := s.orders.BackfillExpiry(s.ctx, "c1", 10*time.Minute)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	legacy, err := s.orders.FindByID(s.ctx, legacyID)
	s.Require().NoError(err)
	s.Require().NotNil(legacy.ExpiresAt)
	s.True(legacy.ExpiresAt.Equal(s.now.Add(-50 * time.Minute)))

	fresh := s.newOrder("c2", models.PaymentMoMo)
	s.Require().NoError(s.orders.Insert(s.ctx, fresh))

	expired, err := s.orders.FindExpired(s.ctx, "", s.now, 10*time.Minute)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(legacyID, expired[0].ID)

	entry := models.HistoryEntry{From: models.OrderPending, To: models.OrderCancelled, By: models.SystemActor, Note: "Hết hạn thanh toán", CreatedAt: s.now}
	n, err = s.orders.ExpireOrders(s.ctx, []primitive.ObjectID{legacyID, fresh.ID}, entry)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	n, err = s.orders.ExpireOrders(s.ctx, []primitive.ObjectID{legacyID}, entry)
	s.Require().NoError(err)
	s.Zero(n)

	legacy, err = s.orders.FindByID(s.ctx, legacyID)
	s.Require().NoError(err)
	s.Equal(models.OrderCancelled, legacy.OrderStatus)
	s.Equal(models.PaymentExpired, legacy.PaymentStatus)
	s.Require().Len(legacy.History, 1)
	s.Equal(models.SystemActor, legacy.History[0].By)

	// an expired order no longer holds the index slot
	s.NoError(s.orders.Insert(s.ctx, s.newOrder("c2", models.PaymentMoMo)))
}

func (s *MongoSuite) TestConditionalWrites() {
	o := s.newOrder("c1", models.PaymentCOD)
	s.Require().NoError(s.orders.Insert(s.ctx, o))

	upd := models.StatusUpdate{
		From:  models.OrderPending,
		To:    models.OrderConfirmed,
		Entry: models.HistoryEntry{From: models.OrderPending, To: models.OrderConfirmed, By: "admin", CreatedAt: s.now},
	}
	got, err := s.orders.UpdateStatus(s.ctx, o.ID, upd)
	s.Require().NoError(err)
	s.Equal(models.OrderConfirmed, got.OrderStatus)
	s.Len(got.History, 1)

	_, err = s.orders.UpdateStatus(s.ctx, o.ID, upd)
	s.ErrorIs(err, ErrNotFound)

	paid, err := s.orders.MarkPaid(s.ctx, o.ID, models.HistoryEntry{From: models.OrderConfirmed, To: models.OrderConfirmed, By: "admin", CreatedAt: s.now})
	s.Require().NoError(err)
	s.Equal(models.PaymentPaid, paid.PaymentStatus)

	_, err = s.orders.MarkPaid(s.ctx, o.ID, models.HistoryEntry{CreatedAt: s.now})
	s.ErrorIs(err, ErrNotFound)
}

func (s *MongoSuite) TestListAndDashboard() {
	a := s.newOrder("c1", models.PaymentCOD)
	a.CustomerPhone = "0901234567"
	s.Require().NoError(s.orders.Insert(s.ctx, a))
	b := s.newOrder("c2", models.PaymentMoMo)
	s.Require().NoError(s.orders.Insert(s.ctx, b))
	_, err := s.orders.MarkPaid(s.ctx, b.ID, models.HistoryEntry{CreatedAt: s.now})
	s.Require().NoError(err)

	orders, total, err := s.orders.List(s.ctx, models.OrderFilter{Query: "0901", Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(a.ID, orders[0].ID)

	orders, total, err = s.orders.List(s.ctx, models.OrderFilter{Page: 2, Limit: 1})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(orders, 1)

	counts, err := s.orders.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), counts[models.OrderPending])

	points, err := s.orders.DailyRevenue(s.ctx, s.now.Add(-24*time.Hour))
	s.Require().NoError(err)
	var revenue int64
	for _, p := range points {
		revenue += p.Revenue
	}
	s.Equal(int64(400000), revenue)
}

func (s *MongoSuite) TestNotifications() {
	for _, title := range []string{"first", "second"} {
		s.Require().NoError(s.inbox.Insert(s.ctx, &models.Notification{Type: models.NotificationOrderCreated, Title: title}))
	}

	items, unread, err := s.inbox.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(items, 2)
	s.Equal(int64(2), unread)

	s.Require().NoError(s.inbox.MarkRead(s.ctx, items[0].ID))
	_, unread, err = s.inbox.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal(int64(1), unread)

	s.ErrorIs(s.inbox.MarkRead(s.ctx, primitive.NewObjectID()), ErrNotFound)
}

func TestMongoSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	suite.Run(t, new(MongoSuite))
}
