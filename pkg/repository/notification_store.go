package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/flowershop/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationStore backs the admin bell.
type NotificationStore struct {
	coll *mongo.Collection
}

func NewNotificationStore(coll *mongo.Collection) *NotificationStore {
	return &NotificationStore{coll: coll}
}

func (s *NotificationStore) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if _, err := s.coll.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns the newest notifications and the number of unread ones.
func (s *NotificationStore) List(ctx context.Context, limit int64) ([]*models.Notification, int64, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []*models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, fmt.Errorf("decode notifications: %w", err)
	}

	unread, err := s.coll.CountDocuments(ctx, bson.M{"read": false})
	if err != nil {
		return nil, 0, fmt.Errorf("count unread notifications: %w", err)
	}

	return notifications, unread, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
