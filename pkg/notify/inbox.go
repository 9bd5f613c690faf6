package notify

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultInboxLimit = 20
	maxInboxLimit     = 100

	msgNotificationNotFound = "Không tìm thấy thông báo"
)

type InboxStore interface {
	List(ctx context.Context, limit int64) ([]*models.Notification, int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
}

// Inbox is the admin-facing view of the notification bell.
type Inbox struct {
	store InboxStore
}

func NewInbox(store InboxStore) *Inbox {
	return &Inbox{store: store}
}

// List returns the newest notifications and how many are still unread.
func (i *Inbox) List(ctx context.Context, limit int64) ([]*models.Notification, int64, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}
	items, unread, err := i.store.List(ctx, limit)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, unread, nil
}

func (i *Inbox) MarkRead(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperror.New(http.StatusNotFound, msgNotificationNotFound)
	}
	err = i.store.MarkRead(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.New(http.StatusNotFound, msgNotificationNotFound)
	}
	if err != nil {
		return apperror.Internal(err)
	}
	return nil
}
