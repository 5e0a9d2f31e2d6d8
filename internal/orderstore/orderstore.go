// Package orderstore keeps the process-wide live projection of the orders
// collection and routes order mutations to the backing store.
//
// The projection is only ever replaced by what the store's change feed
// reports. Mutations write through the store and return; the cached snapshot
// is never edited locally.
package orderstore

import (
	"context"
	"log"
	"sync"
	"time"

	"tableside/internal/events"
	"tableside/internal/models"
	"tableside/internal/repository"
)

// Snapshot is one authoritative view of the live orders, newest first.
type Snapshot struct {
	Orders []models.Order `json:"orders"`
	Seq    uint64         `json:"seq"`
	At     time.Time      `json:"at"`
	Stale  bool           `json:"stale"`
}

// ForSession returns the orders submitted under a customer session.
func (s Snapshot) ForSession(sessionID string) []models.Order {
	out := make([]models.Order, 0)
	if sessionID == "" {
		return out
	}
	for _, o := range s.Orders {
		if o.SessionID == sessionID {
			out = append(out, o)
		}
	}
	return out
}

type Options struct {
	RetryDelay time.Duration
	Events     events.Emitter
}

type Store struct {
	repo       repository.Store
	events     events.Emitter
	retryDelay time.Duration

	mu      sync.Mutex
	current Snapshot
	subs    map[uint64]*subscriber
	nextSub uint64
}

type subscriber struct {
	ch     chan Snapshot
	fn     func(Snapshot)
	closed bool
}

func New(repo repository.Store, opts Options) *Store {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Store{
		repo:       repo,
		events:     opts.Events,
		retryDelay: opts.RetryDelay,
		current:    Snapshot{Orders: []models.Order{}, Stale: true},
		subs:       make(map[uint64]*subscriber),
	}
}

// Snapshot returns the last snapshot received from the feed.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe delivers every new snapshot on the returned channel until ctx is
// done, then closes it. A slow reader only ever sees the latest snapshot.
func (s *Store) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	id := s.addLocked(&subscriber{ch: ch})
	if s.current.Seq > 0 {
		ch <- s.current
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.remove(id)
	}()
	return ch
}

// Listen calls fn with every new snapshot until stop is called. fn runs on
// the feed goroutine and must not block.
func (s *Store) Listen(fn func(Snapshot)) (stop func()) {
	s.mu.Lock()
	id := s.addLocked(&subscriber{fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Store) addLocked(sub *subscriber) uint64 {
	s.nextSub++
	s.subs[s.nextSub] = sub
	return s.nextSub
}

func (s *Store) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	if sub.ch != nil && !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Run keeps the change feed open until ctx is done, reconnecting after
// RetryDelay whenever it fails. While disconnected the snapshot is Stale.
func (s *Store) Run(ctx context.Context) error {
	for {
		err := s.repo.Watch(ctx, func() { s.refresh(ctx) })
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[FEED] [ERROR] change feed dropped: %v; retrying in %s", err, s.retryDelay)
		s.markStale()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Store) refresh(ctx context.Context) {
	orders, err := s.repo.Live(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Println("[FEED] [ERROR] reading live orders:", err)
			s.markStale()
		}
		return
	}
	s.mu.Lock()
	s.current = Snapshot{Orders: orders, Seq: s.current.Seq + 1, At: time.Now().UTC()}
	snap := s.current
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Store) markStale() {
	s.mu.Lock()
	if s.current.Stale {
		s.mu.Unlock()
		return
	}
	s.current.Stale = true
	snap := s.current
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Store) publish(snap Snapshot) {
	s.mu.Lock()
	callbacks := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.fn != nil {
			callbacks = append(callbacks, sub.fn)
			continue
		}
		if sub.closed {
			continue
		}
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(snap)
	}
}

// Order reads one live order straight from the store.
func (s *Store) Order(ctx context.Context, id string) (models.Order, error) {
	return s.repo.Get(ctx, id)
}

// Ping checks the backing store.
func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
