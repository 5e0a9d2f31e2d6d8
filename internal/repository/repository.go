// Package repository is the boundary to the shared document store. Every
// write to the orders and order_history collections goes through a Store,
// either as a single conditional document update or inside an atomic batch.
package repository

import (
	"context"
	"errors"

	"tableside/internal/models"
)

var (
	ErrNotFound  = errors.New("order not found")
	ErrConflict  = errors.New("order was changed by another writer")
	ErrMalformed = errors.New("malformed order document")
)

// Precondition guards a write on the state the caller last read. Zero values
// mean "don't check".
type Precondition struct {
	Status  models.Status
	Version *int64
}

func AtStatus(status models.Status) Precondition {
	return Precondition{Status: status}
}

func AtVersion(version int64) Precondition {
	return Precondition{Version: &version}
}

// Patch is a partial merge onto a live order. Nil fields are left untouched.
type Patch struct {
	Status        *models.Status
	Items         []models.Item
	TotalPrice    *float64
	HelpRequested *bool
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.Items == nil && p.TotalPrice == nil && p.HelpRequested == nil
}

// Filter selects live orders. An empty filter matches every live order.
type Filter struct {
	TableKey string
	IDs      []string
}

type HistoryQuery struct {
	TableKey string
	Page     int64
	Limit    int64
}

// Batch is the view of the store inside an atomic multi-document write.
// Either every effect of the batch commits or none does.
type Batch interface {
	FindLive(ctx context.Context, filter Filter) ([]models.Order, error)
	PutHistory(ctx context.Context, record models.HistoryRecord) (string, error)
	DeleteLive(ctx context.Context, id string, pre Precondition) error
	UpdateLive(ctx context.Context, id string, pre Precondition, patch Patch) error
}

type Store interface {
	// Live returns every live order, newest timestamp first.
	Live(ctx context.Context) ([]models.Order, error)
	Get(ctx context.Context, id string) (models.Order, error)
	// Create assigns id, order number, timestamp and version.
	Create(ctx context.Context, order models.Order) (models.Order, error)
	Update(ctx context.Context, id string, pre Precondition, patch Patch) error
	InBatch(ctx context.Context, fn func(ctx context.Context, b Batch) error) error
	// Watch blocks until ctx is done or the feed fails. notify is called once
	// when the feed is open and again after every change to a live order.
	Watch(ctx context.Context, notify func()) error
	History(ctx context.Context, q HistoryQuery) ([]models.HistoryRecord, int64, error)
	Ping(ctx context.Context) error
}
