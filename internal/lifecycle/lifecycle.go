// Package lifecycle defines the legal order and item status transitions.
// It is pure: callers pass the state they read from the store and write the
// result back conditionally on that same state.
package lifecycle

import (
	"errors"
	"fmt"

	"tableside/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrItemIndex         = errors.New("item index out of range")
	ErrItemServed        = errors.New("item already served")
	ErrNotApproved       = errors.New("order has not been approved yet")
)

// TransitionError carries the rejected edge.
type TransitionError struct {
	From models.Status
	To   models.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Action names a staff command on an order.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReady   Action = "ready"
	ActionServe   Action = "serve"
)

var orderTransitions = map[models.Status]models.Status{
	models.StatusPending:  models.StatusReceived,
	models.StatusReceived: models.StatusReady,
	models.StatusReady:    models.StatusServed,
}

var actionTargets = map[Action]models.Status{
	ActionApprove: models.StatusReceived,
	ActionReady:   models.StatusReady,
	ActionServe:   models.StatusServed,
}

// Next returns the single legal successor of from.
func Next(from models.Status) (models.Status, bool) {
	to, ok := orderTransitions[from]
	return to, ok
}

// Predecessor returns the status an order must hold for to to be reachable.
func Predecessor(to models.Status) (models.Status, bool) {
	for from, next := range orderTransitions {
		if next == to {
			return from, true
		}
	}
	return "", false
}

func CanTransition(from, to models.Status) bool {
	next, ok := orderTransitions[from]
	return ok && next == to
}

func Validate(from, to models.Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Target maps a staff action to the status it moves the order to.
func Target(action Action) (models.Status, error) {
	to, ok := actionTargets[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q", action)
	}
	return to, nil
}

// Apply moves an order to status to. Reaching Served marks every item served
// so the item invariant keeps holding.
func Apply(order models.Order, to models.Status) (models.Order, error) {
	if err := Validate(order.Status, to); err != nil {
		return order, err
	}
	out := order.Clone()
	out.Status = to
	if to == models.StatusServed {
		for i := range out.Items {
			out.Items[i].Status = models.StatusServed
		}
	}
	return out, nil
}

// Aggregate recomputes the order status from its items. The result is Served
// iff every item is served and is never less advanced than current.
func Aggregate(current models.Status, items []models.Item) models.Status {
	all := len(items) > 0
	for _, item := range items {
		if item.Status != models.StatusServed {
			all = false
			break
		}
	}
	if all {
		return models.StatusServed
	}
	return current
}

// ServeItem marks items[index] served and recomputes the aggregate status.
func ServeItem(order models.Order, index int) (models.Order, error) {
	if index < 0 || index >= len(order.Items) {
		return order, ErrItemIndex
	}
	if order.Status == models.StatusPending {
		return order, ErrNotApproved
	}
	if order.Items[index].Status == models.StatusServed {
		return order, ErrItemServed
	}
	out := order.Clone()
	out.Items[index].Status = models.StatusServed
	out.Status = Aggregate(out.Status, out.Items)
	return out, nil
}

// NormalizeItems coerces a decoded document onto the item invariant: item
// statuses other than Served become Pending, a Served order has only served
// items, and an order whose items are all served is Served.
func NormalizeItems(order models.Order) models.Order {
	out := order.Clone()
	for i := range out.Items {
		if out.Status == models.StatusServed || out.Items[i].Status == models.StatusServed {
			out.Items[i].Status = models.StatusServed
			continue
		}
		out.Items[i].Status = models.StatusPending
	}
	out.Status = Aggregate(out.Status, out.Items)
	return out
}
