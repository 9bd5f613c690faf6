package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const NotificationOrderCreated = "order_created"

// Notification is an entry of the admin bell.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type      string             `bson:"type" json:"type"`
	Title     string             `bson:"title" json:"title"`
	Message   string             `bson:"message" json:"message"`
	OrderID   string             `bson:"orderId,omitempty" json:"orderId,omitempty"`
	OrderCode string             `bson:"orderCode,omitempty" json:"orderCode,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
