package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func kafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "order.events"}
}

type memInbox struct {
	items     []*models.Notification
	lastLimit int64
	err       error
}

func (m *memInbox) List(_ context.Context, limit int64) ([]*models.Notification, int64, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, 0, m.err
	}
	var unread int64
	for _, n := range m.items {
		if !n.Read {
			unread++
		}
	}
	return m.items, unread, nil
}

func (m *memInbox) MarkRead(_ context.Context, id primitive.ObjectID) error {
	for _, n := range m.items {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func TestInboxList(t *testing.T) {
	store := &memInbox{items: []*models.Notification{
		{ID: primitive.NewObjectID()},
		{ID: primitive.NewObjectID(), Read: true},
	}}
	inbox := NewInbox(store)

	items, unread, err := inbox.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(1), unread)
	assert.Equal(t, int64(defaultInboxLimit), store.lastLimit)

	_, _, err = inbox.List(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(maxInboxLimit), store.lastLimit)

	store.err = errors.New("mongo down")
	_, _, err = inbox.List(context.Background(), 5)
	assert.Equal(t, http.StatusInternalServerError, apperror.StatusOf(err))
}

func TestInboxMarkRead(t *testing.T) {
	n := &models.Notification{ID: primitive.NewObjectID()}
	inbox := NewInbox(&memInbox{items: []*models.Notification{n}})

	require.NoError(t, inbox.MarkRead(context.Background(), n.ID.Hex()))
	assert.True(t, n.Read)

	err := inbox.MarkRead(context.Background(), primitive.NewObjectID().Hex())
	assert.Equal(t, http.StatusNotFound, apperror.StatusOf(err))

	err = inbox.MarkRead(context.Background(), "bogus")
	assert.Equal(t, http.StatusNotFound, apperror.StatusOf(err))
}
