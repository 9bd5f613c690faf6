// Package notify fans order lifecycle events out to the admin bell, email and
// Kafka. Delivery is best-effort: failures are logged and dropped.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/flowershop/pkg/models"
	"go.uber.org/zap"
)

const actorName = "notification-actor"

// Messages

type OrderPlaced struct {
	Order *models.Order
}

type OrderStatusChanged struct {
	Order *models.Order
	From  models.OrderStatus
}

type NotificationSink interface {
	Insert(ctx context.Context, n *models.Notification) error
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// Sinks are the outputs of the notification actor. Mailer and Events may be
// nil when the channel is disabled.
type Sinks struct {
	Inbox       NotificationSink
	Mailer      Mailer
	Events      EventPublisher
	AdminEmails []string
	// Timeout bounds each individual delivery.
	Timeout time.Duration
}

// NotificationActor processes lifecycle events one at a time from its mailbox.
type NotificationActor struct {
	logger *zap.Logger
	sinks  Sinks
	now    func() time.Time
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *OrderPlaced:
		a.orderPlaced(msg.Order)

	case *OrderStatusChanged:
		a.statusChanged(msg.Order, msg.From)

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopping:
		a.logger.Info("Notification actor stopping")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

func (a *NotificationActor) orderPlaced(o *models.Order) {
	a.logger.Info("Order placed notification",
		zap.String("order_id", o.ID.Hex()),
		zap.String("order_code", o.OrderCode))

	a.deliver("inbox", o, func(ctx context.Context) error {
		return a.sinks.Inbox.Insert(ctx, &models.Notification{
			Type:      models.NotificationOrderCreated,
			Title:     "Đơn hàng mới",
			Message:   fmt.Sprintf("%s vừa đặt đơn %s (%s)", o.CustomerName, o.OrderCode, formatVND(o.TotalAmount)),
			OrderID:   o.ID.Hex(),
			OrderCode: o.OrderCode,
			CreatedAt: a.now(),
		})
	})

	if a.sinks.Mailer != nil {
		a.deliver("customer_email", o, func(ctx context.Context) error {
			msg, err := orderPlacedMail(o)
			if err != nil {
				return err
			}
			return a.sinks.Mailer.Send(ctx, msg)
		})
		if len(a.sinks.AdminEmails) > 0 {
			a.deliver("admin_email", o, func(ctx context.Context) error {
				msg, err := adminOrderMail(o, a.sinks.AdminEmails)
				if err != nil {
					return err
				}
				return a.sinks.Mailer.Send(ctx, msg)
			})
		}
	}

	if a.sinks.Events != nil {
		a.deliver("event", o, func(ctx context.Context) error {
			return a.sinks.Events.Publish(ctx, NewOrderEvent(EventOrderCreated, o, a.now()))
		})
	}
}

func (a *NotificationActor) statusChanged(o *models.Order, from models.OrderStatus) {
	a.logger.Info("Order status notification",
		zap.String("order_id", o.ID.Hex()),
		zap.String("from", string(from)),
		zap.String("to", string(o.OrderStatus)))

	if a.sinks.Mailer != nil {
		a.deliver("customer_email", o, func(ctx context.Context) error {
			msg, err := statusChangedMail(o, from)
			if err != nil {
				return err
			}
			return a.sinks.Mailer.Send(ctx, msg)
		})
	}

	if a.sinks.Events != nil {
		a.deliver("event", o, func(ctx context.Context) error {
			return a.sinks.Events.Publish(ctx, NewOrderEvent(EventOrderStatusChanged, o, a.now()))
		})
	}
}

func (a *NotificationActor) deliver(channel string, o *models.Order, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.sinks.Timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		a.logger.Warn("Notification delivery failed",
			zap.String("channel", channel),
			zap.String("order_id", o.ID.Hex()),
			zap.Error(err))
	}
}

// Dispatcher hands lifecycle events to the notification actor without
// waiting for delivery. It satisfies order.Notifier.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

// StartDispatcher spawns the notification actor on system.
func StartDispatcher(system *actor.ActorSystem, sinks Sinks, logger *zap.Logger) (*Dispatcher, error) {
	if sinks.Timeout <= 0 {
		sinks.Timeout = 10 * time.Second
	}
	actorLogger := logger.Named(actorName)
	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{logger: actorLogger, sinks: sinks, now: time.Now}
	})
	pid, err := system.Root.SpawnNamed(props, actorName)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	logger.Info("Notification actor spawned", zap.String("pid", pid.Id))

	return &Dispatcher{system: system, pid: pid, logger: logger}, nil
}

func (d *Dispatcher) OrderPlaced(o *models.Order) {
	d.system.Root.Send(d.pid, &OrderPlaced{Order: o})
}

func (d *Dispatcher) OrderStatusChanged(o *models.Order, from models.OrderStatus) {
	d.system.Root.Send(d.pid, &OrderStatusChanged{Order: o, From: from})
}

// Stop drains the mailbox, then stops the actor.
func (d *Dispatcher) Stop() {
	if err := d.system.Root.PoisonFuture(d.pid).Wait(); err != nil {
		d.logger.Warn("Notification actor did not stop cleanly", zap.Error(err))
	}
}
