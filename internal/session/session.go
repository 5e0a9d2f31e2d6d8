// Package session runs the countdown that bounds a customer ordering session.
//
// The persisted start time is the only state; time left is always recomputed
// from the wall clock, so a restarted process resumes the same countdown and
// a session whose start is already too old expires on first observation.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"tableside/internal/models"
)

// Persistence stores the session start time. Save must keep an existing
// record untouched so the first observed start wins.
type Persistence interface {
	Load(ctx context.Context, key string) (models.Session, bool, error)
	Save(ctx context.Context, sess models.Session) error
	Clear(ctx context.Context, key string) error
}

type Options struct {
	Duration time.Duration
	Tick     time.Duration
	Grace    time.Duration
	Now      func() time.Time
	// OnExpire runs once when time runs out, before persistence is cleared.
	OnExpire func()
	// OnReset runs Grace after expiry.
	OnReset func()
}

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = 10 * time.Minute
	}
	if o.Tick <= 0 {
		o.Tick = time.Second
	}
	if o.Grace < 0 {
		o.Grace = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Timer struct {
	sess    models.Session
	persist Persistence
	opts    Options

	mu      sync.Mutex
	minLeft time.Duration
	expired bool
	stopped bool
	stop    chan struct{}
	grace   *time.Timer
}

// Start resumes the session stored under key, or records a new one starting
// now, and begins ticking. If the stored start is already past the duration
// the expiry sequence runs before Start returns.
func Start(ctx context.Context, key, tableID string, persist Persistence, opts Options) (*Timer, error) {
	opts = opts.withDefaults()

	sess, ok, err := persist.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := persist.Save(ctx, models.Session{
			Key:       key,
			TableID:   models.NormalizeTableID(tableID),
			StartTime: opts.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		if sess, ok, err = persist.Load(ctx, key); err != nil {
			return nil, err
		} else if !ok {
			sess = models.Session{Key: key, TableID: models.NormalizeTableID(tableID), StartTime: opts.Now().UTC()}
		}
	}

	t := &Timer{
		sess:    sess,
		persist: persist,
		opts:    opts,
		minLeft: opts.Duration,
		stop:    make(chan struct{}),
	}
	if t.Check() {
		return t, nil
	}
	go t.run()
	return t, nil
}

func (t *Timer) run() {
	ticker := time.NewTicker(t.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.Check() {
				return
			}
		}
	}
}

func (t *Timer) Session() models.Session {
	return t.sess
}

func (t *Timer) Key() string {
	return t.sess.Key
}

// TimeLeft is never negative and never grows, even if the clock steps back.
func (t *Timer) TimeLeft() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeLeftLocked()
}

func (t *Timer) timeLeftLocked() time.Duration {
	if t.expired {
		return 0
	}
	left := t.sess.StartTime.Add(t.opts.Duration).Sub(t.opts.Now())
	if left < 0 {
		left = 0
	}
	if left < t.minLeft {
		t.minLeft = left
	}
	return t.minLeft
}

func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Check recomputes time left and runs the expiry sequence when it reaches
// zero. It reports whether the session is expired. Repeated calls after
// expiry do nothing.
func (t *Timer) Check() bool {
	t.mu.Lock()
	if t.expired {
		t.mu.Unlock()
		return true
	}
	if t.stopped || t.timeLeftLocked() > 0 {
		t.mu.Unlock()
		return false
	}
	t.expired = true
	t.mu.Unlock()

	t.expire()
	return true
}

func (t *Timer) expire() {
	log.Printf("[SESSION] [INFO] session %s expired", t.sess.Key)
	if t.opts.OnExpire != nil {
		t.opts.OnExpire()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.persist.Clear(ctx, t.sess.Key); err != nil {
		log.Printf("[SESSION] [ERROR] clearing session %s: %v", t.sess.Key, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.grace = time.AfterFunc(t.opts.Grace, func() {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped && t.opts.OnReset != nil {
			t.opts.OnReset()
		}
	})
}

// Stop cancels the ticker and any pending reset. It does not clear
// persistence.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
	if t.grace != nil {
		t.grace.Stop()
	}
}
