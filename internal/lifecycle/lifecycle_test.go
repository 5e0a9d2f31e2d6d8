package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/models"
)

var allStatuses = []models.Status{
	models.StatusPending,
	models.StatusReceived,
	models.StatusReady,
	models.StatusServed,
}

func TestTransitionsOnlyMoveForwardByOneStep(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			allowed := CanTransition(from, to)
			assert.Equal(t, to.Rank() == from.Rank()+1, allowed, "%s -> %s", from, to)
			if allowed {
				assert.Greater(t, to.Rank(), from.Rank())
			}
		}
	}
}

func TestServedIsTerminal(t *testing.T) {
	_, ok := Next(models.StatusServed)
	assert.False(t, ok)
}

func TestValidateReturnsTypedError(t *testing.T) {
	err := Validate(models.StatusReady, models.StatusReceived)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.StatusReady, te.From)
	assert.Equal(t, models.StatusReceived, te.To)
}

func TestPredecessor(t *testing.T) {
	from, ok := Predecessor(models.StatusReady)
	require.True(t, ok)
	assert.Equal(t, models.StatusReceived, from)

	_, ok = Predecessor(models.StatusPending)
	assert.False(t, ok)
}

func TestTargetMapsActions(t *testing.T) {
	to, err := Target(ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, to)

	_, err = Target(Action("cancel"))
	assert.Error(t, err)
}

func TestApplyServeMarksAllItemsServed(t *testing.T) {
	o := models.Order{
		Status: models.StatusReady,
		Items: []models.Item{
			{Name: "Shawarma", Quantity: 2, Status: models.StatusPending},
			{Name: "Fries", Quantity: 1, Status: models.StatusServed},
		},
	}
	out, err := Apply(o, models.StatusServed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, out.Status)
	assert.True(t, out.AllItemsServed())
	assert.Equal(t, models.StatusPending, o.Items[0].Status, "input must not be mutated")
}

func TestApplyRejectsSkippingAStep(t *testing.T) {
	o := models.Order{Status: models.StatusPending}
	_, err := Apply(o, models.StatusReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestServeItemRecomputesAggregate(t *testing.T) {
	o := models.Order{
		Status: models.StatusReady,
		Items: []models.Item{
			{Name: "Shawarma", Quantity: 2, Status: models.StatusPending},
			{Name: "Fries", Quantity: 1, Status: models.StatusPending},
		},
	}

	first, err := ServeItem(o, 0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, first.Status)
	assert.Equal(t, models.StatusServed, first.Items[0].Status)

	second, err := ServeItem(first, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServed, second.Status)
}

func TestServeItemPreconditions(t *testing.T) {
	pending := models.Order{Status: models.StatusPending, Items: []models.Item{{Status: models.StatusPending}}}
	_, err := ServeItem(pending, 0)
	assert.ErrorIs(t, err, ErrNotApproved)

	received := models.Order{Status: models.StatusReceived, Items: []models.Item{{Status: models.StatusServed}, {Status: models.StatusPending}}}
	_, err = ServeItem(received, 0)
	assert.ErrorIs(t, err, ErrItemServed)

	_, err = ServeItem(received, 2)
	assert.ErrorIs(t, err, ErrItemIndex)

	_, err = ServeItem(received, -1)
	assert.ErrorIs(t, err, ErrItemIndex)
}

func TestAggregateServedIffAllItemsServed(t *testing.T) {
	cases := []struct {
		name    string
		current models.Status
		items   []models.Item
		want    models.Status
	}{
		{"all served", models.StatusReceived, []models.Item{{Status: models.StatusServed}, {Status: models.StatusServed}}, models.StatusServed},
		{"one pending", models.StatusReady, []models.Item{{Status: models.StatusServed}, {Status: models.StatusPending}}, models.StatusReady},
		{"no items", models.StatusReceived, nil, models.StatusReceived},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Aggregate(tc.current, tc.items)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got.Rank(), tc.current.Rank())
		})
	}
}

func TestNormalizeItemsRestoresInvariant(t *testing.T) {
	served := NormalizeItems(models.Order{
		Status: models.StatusServed,
		Items:  []models.Item{{Name: "Wrap"}, {Name: "Cola", Status: models.StatusPending}},
	})
	assert.True(t, served.AllItemsServed())

	legacy := NormalizeItems(models.Order{
		Status: models.StatusReceived,
		Items:  []models.Item{{Name: "Wrap"}},
	})
	assert.Equal(t, models.StatusPending, legacy.Items[0].Status)
	assert.Equal(t, models.StatusReceived, legacy.Status)

	promoted := NormalizeItems(models.Order{
		Status: models.StatusReady,
		Items:  []models.Item{{Name: "Wrap", Status: models.StatusServed}},
	})
	assert.Equal(t, models.StatusServed, promoted.Status)
}
