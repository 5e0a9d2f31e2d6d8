package models

import (
	"strings"
	"time"
)

// TakeawayTable is the reserved table key for orders with no physical table.
const TakeawayTable = "Takeaway"

// Item represents a single menu entry within an order.
type Item struct {
	Name     string  `bson:"name" json:"name"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Price    float64 `bson:"price" json:"price"`
	Status   Status  `bson:"status" json:"status"`
}

// Order defines the live order document. ID is carried outside the BSON body
// because the store owns identifier assignment.
type Order struct {
	ID            string    `bson:"-" json:"id"`
	TableID       string    `bson:"tableId" json:"tableId"`
	OrderNumber   int64     `bson:"orderNumber" json:"orderNumber"`
	SessionID     string    `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Items         []Item    `bson:"items" json:"items"`
	Status        Status    `bson:"status" json:"status"`
	HelpRequested bool      `bson:"helpRequested" json:"helpRequested"`
	TotalPrice    float64   `bson:"totalPrice" json:"totalPrice"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
	Version       int64     `bson:"version" json:"version"`
}

// Clone returns a copy that shares no slices with the receiver.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]Item, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}

// TableKey returns the grouping key, mapping an empty table to takeaway.
func (o Order) TableKey() string {
	return NormalizeTableID(o.TableID)
}

func NormalizeTableID(tableID string) string {
	trimmed := strings.TrimSpace(tableID)
	if trimmed == "" || strings.EqualFold(trimmed, TakeawayTable) {
		return TakeawayTable
	}
	return trimmed
}

// AllItemsServed reports whether every item is served. An order without items
// is never considered served by its items.
func (o Order) AllItemsServed() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.Status != StatusServed {
			return false
		}
	}
	return true
}

// CalculateTotal sums price times quantity over the items.
func CalculateTotal(items []Item) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
