package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableside/internal/models"
)

func newOrder(table string, ts time.Time, statuses ...models.Status) models.Order {
	items := make([]models.Item, 0, len(statuses))
	for i, s := range statuses {
		items = append(items, models.Item{Name: "item" + string(rune('A'+i)), Quantity: 1, Price: 2.5, Status: s})
	}
	return models.Order{TableID: table, Status: models.StatusPending, Items: items, Timestamp: ts}
}

func TestMemoryCreateAssignsIdentity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Create(ctx, newOrder("4", time.Time{}, models.StatusPending))
	require.NoError(t, err)
	second, err := store.Create(ctx, newOrder("4", time.Time{}, models.StatusPending))
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, int64(1), first.OrderNumber)
	assert.Equal(t, int64(2), second.OrderNumber)
	assert.Equal(t, int64(1), first.Version)
	assert.False(t, first.Timestamp.IsZero())
}

func TestMemoryLiveIsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := store.Seed(newOrder("1", base, models.StatusPending))
	recent := store.Seed(newOrder("2", base.Add(time.Minute), models.StatusPending))

	live, err := store.Live(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 2)
	assert.Equal(t, recent.ID, live[0].ID)
	assert.Equal(t, old.ID, live[1].ID)
}

func TestMemoryUpdateHonoursPreconditions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	o := store.Seed(newOrder("4", time.Now(), models.StatusPending))

	received := models.StatusReceived
	require.NoError(t, store.Update(ctx, o.ID, AtStatus(models.StatusPending), Patch{Status: &received}))

	err := store.Update(ctx, o.ID, AtStatus(models.StatusPending), Patch{Status: &received})
	assert.ErrorIs(t, err, ErrConflict)

	err = store.Update(ctx, o.ID, AtVersion(o.Version), Patch{Status: &received})
	assert.ErrorIs(t, err, ErrConflict, "version moved on after the first write")

	err = store.Update(ctx, "missing", Precondition{}, Patch{Status: &received})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, got.Status)
	assert.Equal(t, o.Version+1, got.Version)
}

func TestMemoryBatchIsAllOrNothing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	o := store.Seed(newOrder("4", time.Now(), models.StatusServed))

	boom := errors.New("boom")
	err := store.InBatch(ctx, func(ctx context.Context, b Batch) error {
		if _, err := b.PutHistory(ctx, models.NewOrderHistory(o, time.Now())); err != nil {
			return err
		}
		if err := b.DeleteLive(ctx, o.ID, Precondition{}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	live, _ := store.Live(ctx)
	assert.Len(t, live, 1)
	assert.Empty(t, store.HistoryRecords())
}

func TestMemoryFailNextWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	o := store.Seed(newOrder("4", time.Now(), models.StatusPending))

	store.FailNextWrite(errors.New("network down"))
	help := true
	assert.Error(t, store.Update(ctx, o.ID, Precondition{}, Patch{HelpRequested: &help}))
	assert.NoError(t, store.Update(ctx, o.ID, Precondition{}, Patch{HelpRequested: &help}))
}

func TestMemoryWatchNotifiesOnOpenAndChange(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func() { calls <- struct{}{} })
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("no notification when the feed opened")
	}

	store.Seed(newOrder("1", time.Now(), models.StatusPending))
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("no notification after a change")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMemoryHistoryPaginatesAndFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InBatch(ctx, func(ctx context.Context, b Batch) error {
		for i := 0; i < 3; i++ {
			o := newOrder("4", base, models.StatusServed)
			o.ID = "o" + string(rune('1'+i))
			if _, err := b.PutHistory(ctx, models.NewOrderHistory(o, base.Add(time.Duration(i)*time.Minute))); err != nil {
				return err
			}
		}
		_, err := b.PutHistory(ctx, models.NewOrderHistory(newOrder("", base, models.StatusServed), base))
		return err
	}))

	records, total, err := store.History(ctx, HistoryQuery{TableKey: "4", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 2)
	assert.Equal(t, "o3", records[0].OrderID)

	records, total, err = store.History(ctx, HistoryQuery{TableKey: "takeaway"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, models.TakeawayTable, records[0].TableID)
}

func TestMemoryHistoryHugePageIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InBatch(ctx, func(ctx context.Context, b Batch) error {
		_, err := b.PutHistory(ctx, models.NewOrderHistory(newOrder("4", time.Now(), models.StatusServed), time.Now()))
		return err
	}))

	assert.NotPanics(t, func() {
		records, total, err := store.History(ctx, HistoryQuery{Page: math.MaxInt64, Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Empty(t, records)
	})
}

func TestMemoryUpdateSetsTotalPrice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	o := store.Seed(newOrder("4", time.Now(), models.StatusPending, models.StatusPending))

	total := 2.5
	require.NoError(t, store.Update(ctx, o.ID, Precondition{}, Patch{TotalPrice: &total}))
	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.TotalPrice)
}

func TestMemorySessionStoreFirstSaveWins(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, models.Session{Key: "s1", TableID: "4", StartTime: start}))
	require.NoError(t, store.Save(ctx, models.Session{Key: "s1", TableID: "4", StartTime: start.Add(time.Hour)}))

	sess, ok, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start, sess.StartTime)

	require.NoError(t, store.Clear(ctx, "s1"))
	_, ok, _ = store.Load(ctx, "s1")
	assert.False(t, ok)
}
