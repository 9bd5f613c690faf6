package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/flowershop/pkg/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	o := sampleOrder()
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), NewOrderEvent(EventOrderCreated, o, at)))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, o.ID.Hex(), string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, EventOrderCreated, string(msg.Headers[0].Value))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "order.created", got["type"])
	assert.Equal(t, o.OrderCode, got["orderCode"])
	assert.Equal(t, "user-1", got["customerId"])
	assert.Equal(t, string(models.OrderPending), got["orderStatus"])
	assert.Equal(t, string(models.PaymentUnpaid), got["paymentStatus"])
	assert.Equal(t, float64(400000), got["totalAmount"])
	assert.Equal(t, "2025-03-14T09:30:00Z", got["at"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsErrors(t *testing.T) {
	broker := errors.New("leader not available")
	p := &KafkaPublisher{writer: &fakeWriter{err: broker}}

	err := p.Publish(context.Background(), NewOrderEvent(EventOrderStatusChanged, sampleOrder(), time.Now()))

	assert.ErrorIs(t, err, broker)
	assert.Contains(t, err.Error(), EventOrderStatusChanged)
}

func TestNewKafkaPublisherConfiguresWriter(t *testing.T) {
	p := NewKafkaPublisher(kafkaConfig())
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)

	assert.Equal(t, "order.events", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
