package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tableside/internal/models"
)

func TestNormalizeOrderDocumentCoercesLegacyFields(t *testing.T) {
	oid := primitive.NewObjectID()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := bson.M{
		"_id":           oid,
		"tableId":       int32(4),
		"orderNumber":   "17",
		"status":        "ready",
		"helpRequested": "true",
		"totalPrice":    int32(12),
		"timestamp":     primitive.NewDateTimeFromTime(ts),
		"items": bson.A{
			bson.D{{Key: "name", Value: "Wrap"}, {Key: "quantity", Value: "2"}, {Key: "price", Value: 6.0}},
			bson.M{"name": "Cola", "quantity": int32(1), "status": "served"},
		},
	}

	o, err := normalizeOrderDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, oid.Hex(), o.ID)
	assert.Equal(t, "4", o.TableID)
	assert.Equal(t, int64(17), o.OrderNumber)
	assert.Equal(t, models.StatusReady, o.Status)
	assert.True(t, o.HelpRequested)
	assert.Equal(t, 12.0, o.TotalPrice)
	assert.True(t, o.Timestamp.Equal(ts))
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, models.StatusPending, o.Items[0].Status)
	assert.Equal(t, models.StatusServed, o.Items[1].Status)
	assert.Equal(t, int64(0), o.Version)
}

func TestNormalizeOrderDocumentMapsMissingTableToTakeaway(t *testing.T) {
	raw := bson.M{
		"_id":    primitive.NewObjectID(),
		"status": "Pending",
		"items":  bson.A{bson.M{"name": "Fries"}},
	}
	o, err := normalizeOrderDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, models.TakeawayTable, o.TableID)
	assert.Equal(t, 1, o.Items[0].Quantity)
}

func TestNormalizeOrderDocumentRejectsMalformed(t *testing.T) {
	cases := map[string]bson.M{
		"no id":          {"status": "Pending", "items": bson.A{bson.M{"name": "x"}}},
		"unknown status": {"_id": primitive.NewObjectID(), "status": "cooking", "items": bson.A{bson.M{"name": "x"}}},
		"no status":      {"_id": primitive.NewObjectID(), "items": bson.A{bson.M{"name": "x"}}},
		"no items":       {"_id": primitive.NewObjectID(), "status": "Pending"},
		"empty items":    {"_id": primitive.NewObjectID(), "status": "Pending", "items": bson.A{}},
		"nameless item":  {"_id": primitive.NewObjectID(), "status": "Pending", "items": bson.A{bson.M{"quantity": 1}}},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := normalizeOrderDocument(raw)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestPreconditionFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	f := preconditionFilter(oid, AtStatus(models.StatusReady))
	assert.Equal(t, oid, f["_id"])
	assert.Equal(t, looseMatch("Ready"), f["status"])

	f = preconditionFilter(oid, AtVersion(0))
	assert.Equal(t, bson.M{"$in": bson.A{0, nil}}, f["version"])

	f = preconditionFilter(oid, AtVersion(3))
	assert.Equal(t, int64(3), f["version"])
}

func matchesLoose(t *testing.T, re primitive.Regex, value string) bool {
	t.Helper()
	pattern := re.Pattern
	if re.Options == "i" {
		pattern = "(?i)" + pattern
	}
	return regexp.MustCompile(pattern).MatchString(value)
}

func TestLooseMatchFollowsNormalization(t *testing.T) {
	pending := looseMatch(string(models.StatusPending))
	for _, v := range []string{"Pending", "pending", "PENDING", " Pending "} {
		assert.True(t, matchesLoose(t, pending, v), v)
	}
	assert.False(t, matchesLoose(t, pending, "Pendings"))

	table := tableFilter(" 4")
	re, ok := table.(primitive.Regex)
	require.True(t, ok)
	assert.True(t, matchesLoose(t, re, "4"))
	assert.True(t, matchesLoose(t, re, " 4 "))
	assert.False(t, matchesLoose(t, re, "14"))

	dotted := looseMatch("a.b")
	assert.False(t, matchesLoose(t, dotted, "axb"))
}

func TestTakeawayFilterCoversLegacySpellings(t *testing.T) {
	f, ok := tableFilter("takeaway").(bson.M)
	require.True(t, ok)
	in, ok := f["$in"].(bson.A)
	require.True(t, ok)
	require.Len(t, in, 3)

	word := in[0].(primitive.Regex)
	blank := in[1].(primitive.Regex)
	for _, v := range []string{"Takeaway", "TAKEAWAY", " takeaway"} {
		assert.True(t, matchesLoose(t, word, v), v)
	}
	assert.True(t, matchesLoose(t, blank, ""))
	assert.True(t, matchesLoose(t, blank, "  "))
	assert.False(t, matchesLoose(t, blank, "4"))
	assert.Nil(t, in[2])
}
