package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the JSON payload published on the order events topic.
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderCode     string               `json:"orderCode"`
	CustomerID    string               `json:"customerId"`
	OrderStatus   models.OrderStatus   `json:"orderStatus"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	TotalAmount   int64                `json:"totalAmount"`
	At            time.Time            `json:"at"`
}

func NewOrderEvent(eventType string, o *models.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       o.ID.Hex(),
		OrderCode:     o.OrderCode,
		CustomerID:    o.CustomerID,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		At:            at,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events keyed by order id, so every event of one
// order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
