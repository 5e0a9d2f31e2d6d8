// Package events publishes order lifecycle events to an external broker.
// Publication is best effort and never blocks a store write.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tableside/internal/models"
)

type Type string

const (
	OrderSubmitted     Type = "order.submitted"
	OrderStatusChanged Type = "order.status_changed"
	OrderItemServed    Type = "order.item_served"
	OrderHelpChanged   Type = "order.help_changed"
	OrderArchived      Type = "order.archived"
)

type Event struct {
	ID            string        `json:"id"`
	Type          Type          `json:"type"`
	OrderID       string        `json:"orderId"`
	TableID       string        `json:"tableId"`
	OrderNumber   int64         `json:"orderNumber,omitempty"`
	From          models.Status `json:"from,omitempty"`
	To            models.Status `json:"to,omitempty"`
	ItemIndex     *int          `json:"itemIndex,omitempty"`
	HelpRequested *bool         `json:"helpRequested,omitempty"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

// New stamps an event for order with a fresh id and the current time.
func New(t Type, order models.Order) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		OrderID:     order.ID,
		TableID:     order.TableKey(),
		OrderNumber: order.OrderNumber,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher delivers a batch of events to a broker.
type Publisher interface {
	Publish(ctx context.Context, batch []Event) error
	Close() error
}

// Emitter is what the order services depend on.
type Emitter interface {
	Emit(Event)
}

type Nop struct{}

func (Nop) Emit(Event) {}

func (Nop) Publish(context.Context, []Event) error { return nil }

func (Nop) Close() error { return nil }
