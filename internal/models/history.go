package models

import "time"

// HistoryKind distinguishes whole-order archives from single-item archives.
type HistoryKind string

const (
	HistoryKindOrder HistoryKind = "order"
	HistoryKindItem  HistoryKind = "item"
)

// HistoryRecord is the write-once archival copy stored in order_history.
type HistoryRecord struct {
	ID            string      `bson:"-" json:"id"`
	Kind          HistoryKind `bson:"kind" json:"kind"`
	OrderID       string      `bson:"orderId" json:"orderId"`
	TableID       string      `bson:"tableId" json:"tableId"`
	OrderNumber   int64       `bson:"orderNumber" json:"orderNumber"`
	SessionID     string      `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Items         []Item      `bson:"items" json:"items"`
	HelpRequested bool        `bson:"helpRequested" json:"helpRequested"`
	TotalPrice    float64     `bson:"totalPrice" json:"totalPrice"`
	Timestamp     time.Time   `bson:"timestamp" json:"timestamp"`
	Status        Status      `bson:"status" json:"status"`
	FinalStatus   string      `bson:"finalStatus" json:"finalStatus"`
	ArchivedAt    time.Time   `bson:"archivedAt" json:"archivedAt"`
}

// NewOrderHistory snapshots a whole order at archival time.
func NewOrderHistory(o Order, archivedAt time.Time) HistoryRecord {
	snap := o.Clone()
	return HistoryRecord{
		Kind:          HistoryKindOrder,
		OrderID:       snap.ID,
		TableID:       snap.TableKey(),
		OrderNumber:   snap.OrderNumber,
		SessionID:     snap.SessionID,
		Items:         snap.Items,
		HelpRequested: snap.HelpRequested,
		TotalPrice:    snap.TotalPrice,
		Timestamp:     snap.Timestamp,
		Status:        StatusServed,
		FinalStatus:   FinalStatusCompleted,
		ArchivedAt:    archivedAt,
	}
}

// NewItemHistory snapshots a single fulfilled item of an order.
func NewItemHistory(o Order, item Item, archivedAt time.Time) HistoryRecord {
	return HistoryRecord{
		Kind:        HistoryKindItem,
		OrderID:     o.ID,
		TableID:     o.TableKey(),
		OrderNumber: o.OrderNumber,
		SessionID:   o.SessionID,
		Items:       []Item{item},
		TotalPrice:  item.Price * float64(item.Quantity),
		Timestamp:   o.Timestamp,
		Status:      StatusServed,
		FinalStatus: FinalStatusCompleted,
		ArchivedAt:  archivedAt,
	}
}
