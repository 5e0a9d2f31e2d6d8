package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStatusDecodeCoercesLegacyCasing(t *testing.T) {
	data, err := bson.Marshal(bson.M{"status": "ready"})
	require.NoError(t, err)

	var doc struct {
		Status Status `bson:"status"`
	}
	require.NoError(t, bson.Unmarshal(data, &doc))
	assert.Equal(t, StatusReady, doc.Status)
}

func TestStatusDecodeRejectsUnknownValue(t *testing.T) {
	data, err := bson.Marshal(bson.M{"status": "cooking"})
	require.NoError(t, err)

	var doc struct {
		Status Status `bson:"status"`
	}
	assert.Error(t, bson.Unmarshal(data, &doc))
}

func TestStatusDecodeRejectsNonString(t *testing.T) {
	data, err := bson.Marshal(bson.M{"status": 3})
	require.NoError(t, err)

	var doc struct {
		Status Status `bson:"status"`
	}
	assert.Error(t, bson.Unmarshal(data, &doc))
}

func TestStatusRank(t *testing.T) {
	assert.Less(t, StatusPending.Rank(), StatusReceived.Rank())
	assert.Less(t, StatusReceived.Rank(), StatusReady.Rank())
	assert.Less(t, StatusReady.Rank(), StatusServed.Rank())
	assert.Equal(t, -1, Status("Cooking").Rank())
}

func TestOrderTableKeyMapsEmptyToTakeaway(t *testing.T) {
	assert.Equal(t, TakeawayTable, Order{}.TableKey())
	assert.Equal(t, TakeawayTable, Order{TableID: "takeaway"}.TableKey())
	assert.Equal(t, "4", Order{TableID: " 4 "}.TableKey())
}

func TestCloneDoesNotShareItems(t *testing.T) {
	o := Order{Items: []Item{{Name: "Shawarma", Quantity: 2, Status: StatusPending}}}
	c := o.Clone()
	c.Items[0].Status = StatusServed
	assert.Equal(t, StatusPending, o.Items[0].Status)
}

func TestNewOrderHistoryStampsTerminalMarkers(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := Order{ID: "o1", TableID: "4", OrderNumber: 7, Items: []Item{{Name: "Shawarma", Quantity: 2, Price: 5, Status: StatusServed}}, Status: StatusServed, TotalPrice: 10}

	rec := NewOrderHistory(o, at)
	assert.Equal(t, HistoryKindOrder, rec.Kind)
	assert.Equal(t, "o1", rec.OrderID)
	assert.Equal(t, StatusServed, rec.Status)
	assert.Equal(t, FinalStatusCompleted, rec.FinalStatus)
	assert.Equal(t, at, rec.ArchivedAt)
	assert.Equal(t, 10.0, rec.TotalPrice)

	item := NewItemHistory(o, o.Items[0], at)
	assert.Equal(t, HistoryKindItem, item.Kind)
	assert.Equal(t, 10.0, item.TotalPrice)
	assert.Len(t, item.Items, 1)
}
