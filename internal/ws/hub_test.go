package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/models"
	"tableside/internal/orderstore"
	"tableside/internal/tables"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, hub *Hub, topic string, initial ...Message) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, topic, initial...)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		for _, got := range hub.Topics() {
			if got == topic {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func messageType(t *testing.T, msg map[string]json.RawMessage) string {
	var typ string
	require.NoError(t, json.Unmarshal(msg["type"], &typ))
	return typ
}

func TestHubDeliversOnlyToTopic(t *testing.T) {
	hub := startHub(t)
	board := dial(t, hub, TopicBoard)
	customer := dial(t, hub, SessionTopic("s1"))

	hub.Publish(SessionTopic("s1"), Message{Type: TypeSessionExpired}, false)
	hub.Publish(TopicBoard, Message{Type: TypeBoard}, false)

	assert.Equal(t, TypeSessionExpired, messageType(t, readMessage(t, customer)))
	assert.Equal(t, TypeBoard, messageType(t, readMessage(t, board)))
}

func TestHubReplaysRetainedMessage(t *testing.T) {
	hub := startHub(t)
	hub.Publish(TopicBoard, Message{Type: TypeBoard, Data: "latest"}, true)

	conn := dial(t, hub, TopicBoard)
	msg := readMessage(t, conn)
	assert.Equal(t, TypeBoard, messageType(t, msg))
	assert.JSONEq(t, `"latest"`, string(msg["data"]))
}

func TestServeSendsInitialMessages(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub, SessionTopic("s2"), Message{Type: TypeOrders})
	assert.Equal(t, TypeOrders, messageType(t, readMessage(t, conn)))
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub, SessionTopic("gone"))
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return len(hub.Topics()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBridgePushesBoardAndSessionOrders(t *testing.T) {
	hub := startHub(t)
	bridge := NewBridge(hub, tables.DefaultFloorPlan(2))
	board := dial(t, hub, TopicBoard)
	customer := dial(t, hub, SessionTopic("s1"))

	bridge.Push(orderstore.Snapshot{Seq: 3, Orders: []models.Order{
		{ID: "a", TableID: "1", SessionID: "s1", Status: models.StatusPending, Items: []models.Item{{Name: "Wrap", Quantity: 1}}},
		{ID: "b", TableID: "2", SessionID: "s2", Status: models.StatusPending, Items: []models.Item{{Name: "Cola", Quantity: 1}}},
	}})

	boardMsg := readMessage(t, board)
	require.Equal(t, TypeBoard, messageType(t, boardMsg))
	var payload BoardPayload
	require.NoError(t, json.Unmarshal(boardMsg["data"], &payload))
	assert.Equal(t, uint64(3), payload.Seq)
	require.Len(t, payload.Tables, 3)
	assert.Equal(t, models.TakeawayTable, payload.Tables[0].TableID)
	assert.True(t, payload.Tables[1].AwaitingApproval)

	orderMsg := readMessage(t, customer)
	require.Equal(t, TypeOrders, messageType(t, orderMsg))
	var orders struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(orderMsg["data"], &orders))
	require.Len(t, orders.Orders, 1)
	assert.Equal(t, "a", orders.Orders[0].ID)

	bridge.SessionReset("s1")
	assert.Equal(t, TypeSessionReset, messageType(t, readMessage(t, customer)))
}
