package events

import (
	"context"
	"log"
	"sync"
	"time"
)

type DispatcherConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{BatchSize: 50, Timeout: 500 * time.Millisecond, ChannelSize: 1024}
}

// Dispatcher buffers events and hands them to the publishers in batches,
// flushing when a batch fills up or the timeout passes.
type Dispatcher struct {
	inputCh    chan Event
	publishers []Publisher
	batchSize  int
	timeout    time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, publishers ...Publisher) *Dispatcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	return &Dispatcher{
		inputCh:    make(chan Event, cfg.ChannelSize),
		publishers: publishers,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
	}
}

// Run drains the buffer until ctx is done, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.wg.Add(1)
	defer d.wg.Done()

	var batch []Event
	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			d.drain(&batch)
			if len(batch) > 0 {
				d.flush(batch)
			}
			return nil
		case ev := <-d.inputCh:
			batch = append(batch, ev)
			if len(batch) >= d.batchSize {
				d.flush(batch)
				batch = nil
			}
		case <-timer.C:
			if len(batch) > 0 {
				d.flush(batch)
				batch = nil
			}
			timer.Reset(d.timeout)
		}
	}
}

func (d *Dispatcher) drain(batch *[]Event) {
	for {
		select {
		case ev := <-d.inputCh:
			*batch = append(*batch, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) flush(batch []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, pub := range d.publishers {
		if err := pub.Publish(ctx, batch); err != nil {
			log.Printf("[EVENTS] [ERROR] publishing batch of %d: %v", len(batch), err)
		}
	}
}

// Emit never blocks; a full buffer drops the event.
func (d *Dispatcher) Emit(ev Event) {
	select {
	case d.inputCh <- ev:
	default:
		log.Printf("[EVENTS] [WARN] event buffer full, dropping %s for order %s", ev.Type, ev.OrderID)
	}
}

// Close waits for Run to return and closes every publisher.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	var firstErr error
	for _, pub := range d.publishers {
		if err := pub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
