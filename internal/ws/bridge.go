package ws

import (
	"strings"

	"tableside/internal/models"
	"tableside/internal/orderstore"
	"tableside/internal/tables"
)

const (
	TypeBoard          = "board"
	TypeOrders         = "orders"
	TypeSessionExpired = "session.expired"
	TypeSessionReset   = "session.reset"
)

type BoardPayload struct {
	Tables []tables.View `json:"tables"`
	Seq    uint64        `json:"seq"`
	Stale  bool          `json:"stale"`
}

type OrdersPayload struct {
	Orders []models.Order `json:"orders"`
	Seq    uint64         `json:"seq"`
	Stale  bool           `json:"stale"`
}

// Bridge turns order snapshots into hub pushes: the table board for staff
// and each session's own orders for customers.
type Bridge struct {
	hub  *Hub
	plan tables.FloorPlan
}

func NewBridge(hub *Hub, plan tables.FloorPlan) *Bridge {
	return &Bridge{hub: hub, plan: plan}
}

// Attach starts forwarding snapshots from store and returns the stop func.
func (b *Bridge) Attach(store *orderstore.Store) func() {
	return store.Listen(b.Push)
}

func (b *Bridge) Push(snap orderstore.Snapshot) {
	b.hub.Publish(TopicBoard, b.BoardMessage(snap), true)

	for _, topic := range b.hub.Topics() {
		if !strings.HasPrefix(topic, sessionTopicPrefix) {
			continue
		}
		sessionID := strings.TrimPrefix(topic, sessionTopicPrefix)
		b.hub.Publish(topic, b.OrdersMessage(snap, sessionID), true)
	}
}

func (b *Bridge) BoardMessage(snap orderstore.Snapshot) Message {
	return Message{
		Type: TypeBoard,
		Data: BoardPayload{Tables: tables.Summarize(snap.Orders, b.plan), Seq: snap.Seq, Stale: snap.Stale},
	}
}

func (b *Bridge) OrdersMessage(snap orderstore.Snapshot, sessionID string) Message {
	return Message{
		Type: TypeOrders,
		Data: OrdersPayload{Orders: snap.ForSession(sessionID), Seq: snap.Seq, Stale: snap.Stale},
	}
}

// SessionExpired tells the customer their session ran out.
func (b *Bridge) SessionExpired(sessionID string) {
	b.hub.Publish(SessionTopic(sessionID), Message{Type: TypeSessionExpired}, false)
}

// SessionReset tells the customer the grace period is over and the view
// should start from scratch.
func (b *Bridge) SessionReset(sessionID string) {
	b.hub.Publish(SessionTopic(sessionID), Message{Type: TypeSessionReset}, false)
}
