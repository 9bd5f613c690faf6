package order

import "github.com/example/flowershop/pkg/models"

// transitions is the forward-only order state machine. Terminal states map to nothing.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed: {models.OrderShipping, models.OrderCancelled},
	models.OrderShipping:  {models.OrderCompleted},
	models.OrderCompleted: {},
	models.OrderCancelled: {},
}

// AllowedNext returns the statuses an admin may move an order to from current.
func AllowedNext(current models.OrderStatus) []models.OrderStatus {
	next := transitions[current]
	out := make([]models.OrderStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s models.OrderStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}
