package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// activePayableIndex is the unique partial index that allows at most one
// PENDING/UNPAID order with an expiry per customer.
const activePayableIndex = "uniq_active_payable_order"

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRepository) Orders() *mongo.Collection {
	return m.database.Collection(m.config.OrdersCollection)
}

func (m *MongoRepository) Notifications() *mongo.Collection {
	return m.database.Collection(m.config.NotificationsCollection)
}

// EnsureIndexes creates the indexes the order lifecycle relies on. It is
// idempotent and runs at startup.
func (m *MongoRepository) EnsureIndexes(ctx context.Context) error {
	orderIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderCode", Value: 1}},
			Options: options.Index().SetName("uniq_order_code").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("customer_created"),
		},
		{
			Keys:    bson.D{{Key: "orderStatus", Value: 1}, {Key: "paymentStatus", Value: 1}, {Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("sweep_lookup"),
		},
		{
			Keys: bson.D{{Key: "customerId", Value: 1}},
			Options: options.Index().
				SetName(activePayableIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{
					{Key: "orderStatus", Value: models.OrderPending},
					{Key: "paymentStatus", Value: models.PaymentUnpaid},
					{Key: "expiresAt", Value: bson.D{{Key: "$exists", Value: true}}},
				}),
		},
	}
	if _, err := m.Orders().Indexes().CreateMany(ctx, orderIndexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	notificationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "read", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("read_created"),
		},
	}
	if _, err := m.Notifications().Indexes().CreateMany(ctx, notificationIndexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}

	return nil
}
