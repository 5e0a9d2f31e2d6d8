package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"tableside/internal/models"
)

// MemoryStore keeps the collections in process. It backs the "memory" store
// driver and the service tests, and mirrors the Mongo semantics: conditional
// updates, all-or-nothing batches and a change feed.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[string]models.Order
	history  []models.HistoryRecord
	counter  int64
	watchers map[chan struct{}]struct{}
	failNext error
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]models.Order),
		watchers: make(map[chan struct{}]struct{}),
		now:      time.Now,
	}
}

// FailNextWrite makes the next write (update, create or batch) fail with err.
func (s *MemoryStore) FailNextWrite(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Seed inserts an order as-is, keeping its ID when set.
func (s *MemoryStore) Seed(order models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := order.Clone()
	if o.ID == "" {
		o.ID = primitive.NewObjectID().Hex()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	if o.OrderNumber > s.counter {
		s.counter = o.OrderNumber
	}
	s.orders[o.ID] = o
	s.signalLocked()
	return o.Clone()
}

// HistoryRecords returns a copy of everything archived so far.
func (s *MemoryStore) HistoryRecords() []models.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

func (s *MemoryStore) Live(_ context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortLive(s.orders, Filter{}), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, order models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return models.Order{}, err
	}
	o := order.Clone()
	o.ID = primitive.NewObjectID().Hex()
	s.counter++
	o.OrderNumber = s.counter
	if o.Timestamp.IsZero() {
		o.Timestamp = s.now().UTC()
	}
	o.Version = 1
	s.orders[o.ID] = o
	s.signalLocked()
	return o.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, pre Precondition, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if err := applyUpdate(s.orders, id, pre, patch); err != nil {
		return err
	}
	s.signalLocked()
	return nil
}

// InBatch runs fn against a staged copy of the collections and swaps it in
// only when fn succeeds.
func (s *MemoryStore) InBatch(ctx context.Context, fn func(ctx context.Context, b Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	staged := &memoryBatch{
		orders:  make(map[string]models.Order, len(s.orders)),
		history: make([]models.HistoryRecord, len(s.history)),
		now:     s.now,
	}
	for id, o := range s.orders {
		staged.orders[id] = o.Clone()
	}
	copy(staged.history, s.history)

	if err := fn(ctx, staged); err != nil {
		return err
	}

	s.orders = staged.orders
	s.history = staged.history
	if staged.changed {
		s.signalLocked()
	}
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context, notify func()) error {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
	}()

	notify()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			notify()
		}
	}
}

func (s *MemoryStore) History(_ context.Context, q HistoryQuery) ([]models.HistoryRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.HistoryRecord, 0, len(s.history))
	for _, rec := range s.history {
		if q.TableKey != "" && models.NormalizeTableID(rec.TableID) != models.NormalizeTableID(q.TableKey) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ArchivedAt.After(matched[j].ArchivedAt)
	})

	total := int64(len(matched))
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start, ok := pageOffset(page, limit)
	if !ok || start >= total {
		return []models.HistoryRecord{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *MemoryStore) signalLocked() {
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type memoryBatch struct {
	orders  map[string]models.Order
	history []models.HistoryRecord
	changed bool
	now     func() time.Time
}

func (b *memoryBatch) FindLive(_ context.Context, filter Filter) ([]models.Order, error) {
	return sortLive(b.orders, filter), nil
}

func (b *memoryBatch) PutHistory(_ context.Context, record models.HistoryRecord) (string, error) {
	rec := record
	rec.ID = primitive.NewObjectID().Hex()
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = b.now().UTC()
	}
	b.history = append(b.history, rec)
	return rec.ID, nil
}

func (b *memoryBatch) DeleteLive(_ context.Context, id string, pre Precondition) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !pre.matches(o) {
		return ErrConflict
	}
	delete(b.orders, id)
	b.changed = true
	return nil
}

func (b *memoryBatch) UpdateLive(_ context.Context, id string, pre Precondition, patch Patch) error {
	if err := applyUpdate(b.orders, id, pre, patch); err != nil {
		return err
	}
	b.changed = true
	return nil
}

func (p Precondition) matches(o models.Order) bool {
	if p.Status != "" && o.Status != p.Status {
		return false
	}
	if p.Version != nil && o.Version != *p.Version {
		return false
	}
	return true
}

func applyUpdate(orders map[string]models.Order, id string, pre Precondition, patch Patch) error {
	o, ok := orders[id]
	if !ok {
		return ErrNotFound
	}
	if !pre.matches(o) {
		return ErrConflict
	}
	next := o.Clone()
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Items != nil {
		next.Items = make([]models.Item, len(patch.Items))
		copy(next.Items, patch.Items)
	}
	if patch.TotalPrice != nil {
		next.TotalPrice = *patch.TotalPrice
	}
	if patch.HelpRequested != nil {
		next.HelpRequested = *patch.HelpRequested
	}
	next.Version++
	orders[id] = next
	return nil
}

func sortLive(orders map[string]models.Order, filter Filter) []models.Order {
	var ids map[string]struct{}
	if len(filter.IDs) > 0 {
		ids = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = struct{}{}
		}
	}

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if filter.TableKey != "" && o.TableKey() != models.NormalizeTableID(filter.TableKey) {
			continue
		}
		if ids != nil {
			if _, ok := ids[o.ID]; !ok {
				continue
			}
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// pageOffset returns (page-1)*limit, or false when it does not fit in int64.
func pageOffset(page, limit int64) (int64, bool) {
	if page > 1 && page-1 > math.MaxInt64/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}
