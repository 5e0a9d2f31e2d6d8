// Package archive moves fulfilled orders from the live collection into
// order_history. Each operation is one atomic batch: eligibility is re-read
// inside the batch and either every copy and removal commits or none does.
package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"tableside/internal/events"
	"tableside/internal/lifecycle"
	"tableside/internal/models"
	"tableside/internal/repository"
)

// Skipped is a live order left in place because it was not fulfilled.
type Skipped struct {
	OrderID string        `json:"orderId"`
	Status  models.Status `json:"status"`
}

type Result struct {
	Archived         []string  `json:"archived"`
	Records          int       `json:"records"`
	Skipped          []Skipped `json:"skipped"`
	NothingToArchive bool      `json:"nothingToArchive"`
	Reason           string    `json:"reason,omitempty"`
}

type Service struct {
	repo   repository.Store
	events events.Emitter
	now    func() time.Time
}

func NewService(repo repository.Store, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Service{repo: repo, events: emitter, now: time.Now}
}

// WithClock replaces the clock used for archivedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func eligible(o models.Order) bool {
	return o.Status == models.StatusServed && o.AllItemsServed()
}

// ArchiveOrder archives a single served order.
func (s *Service) ArchiveOrder(ctx context.Context, id string) (Result, error) {
	var res Result
	var archived []models.Order
	err := s.repo.InBatch(ctx, func(ctx context.Context, b repository.Batch) error {
		res, archived = Result{}, nil

		found, err := b.FindLive(ctx, repository.Filter{IDs: []string{id}})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return repository.ErrNotFound
		}
		o := found[0]
		if !eligible(o) {
			res.Skipped = append(res.Skipped, Skipped{OrderID: o.ID, Status: o.Status})
			res.NothingToArchive = true
			res.Reason = fmt.Sprintf("order %d is %s, only served orders can be archived", o.OrderNumber, o.Status)
			return nil
		}
		if err := s.moveOrder(ctx, b, o); err != nil {
			return err
		}
		res.Archived = append(res.Archived, o.ID)
		res.Records++
		archived = append(archived, o)
		return nil
	})
	if err != nil {
		log.Printf("[ARCHIVE] [ERROR] archiving order %s: %v", id, err)
		return Result{}, err
	}
	s.emit(archived)
	return res, nil
}

// ArchiveTable archives every served order of a table, leaving the rest live.
func (s *Service) ArchiveTable(ctx context.Context, key string) (Result, error) {
	key = models.NormalizeTableID(key)
	var res Result
	var archived []models.Order
	err := s.repo.InBatch(ctx, func(ctx context.Context, b repository.Batch) error {
		res, archived = Result{}, nil

		orders, err := b.FindLive(ctx, repository.Filter{TableKey: key})
		if err != nil {
			return err
		}
		for _, o := range orders {
			if !eligible(o) {
				res.Skipped = append(res.Skipped, Skipped{OrderID: o.ID, Status: o.Status})
				continue
			}
			if err := s.moveOrder(ctx, b, o); err != nil {
				return err
			}
			res.Archived = append(res.Archived, o.ID)
			res.Records++
			archived = append(archived, o)
		}
		if len(res.Archived) == 0 {
			res.NothingToArchive = true
			if len(orders) == 0 {
				res.Reason = fmt.Sprintf("table %s has no live orders", key)
			} else {
				res.Reason = fmt.Sprintf("table %s has no served orders", key)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ARCHIVE] [ERROR] archiving table %s: %v", key, err)
		return Result{}, err
	}
	if !res.NothingToArchive {
		log.Printf("[ARCHIVE] [INFO] table %s: archived %d, kept %d", key, len(res.Archived), len(res.Skipped))
	}
	s.emit(archived)
	return res, nil
}

// ArchiveServedItems copies every served item of an order to history and
// removes it from the live order, which then bills only what remains. The
// order itself goes once no item is left.
func (s *Service) ArchiveServedItems(ctx context.Context, id string) (Result, error) {
	var res Result
	var removed []models.Order
	err := s.repo.InBatch(ctx, func(ctx context.Context, b repository.Batch) error {
		res, removed = Result{}, nil

		found, err := b.FindLive(ctx, repository.Filter{IDs: []string{id}})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return repository.ErrNotFound
		}
		o := found[0]
		at := s.now().UTC()

		remaining := make([]models.Item, 0, len(o.Items))
		for _, item := range o.Items {
			if item.Status != models.StatusServed {
				remaining = append(remaining, item)
				continue
			}
			if _, err := b.PutHistory(ctx, models.NewItemHistory(o, item, at)); err != nil {
				return err
			}
			res.Records++
		}
		if res.Records == 0 {
			res.NothingToArchive = true
			res.Reason = fmt.Sprintf("order %d has no served items", o.OrderNumber)
			return nil
		}

		if len(remaining) == 0 {
			if err := b.DeleteLive(ctx, o.ID, repository.AtVersion(o.Version)); err != nil {
				return err
			}
			res.Archived = append(res.Archived, o.ID)
			removed = append(removed, o)
			return nil
		}
		status := lifecycle.Aggregate(o.Status, remaining)
		total := models.CalculateTotal(remaining)
		return b.UpdateLive(ctx, o.ID, repository.AtVersion(o.Version), repository.Patch{
			Items:      remaining,
			Status:     &status,
			TotalPrice: &total,
		})
	})
	if err != nil {
		log.Printf("[ARCHIVE] [ERROR] archiving served items of order %s: %v", id, err)
		return Result{}, err
	}
	s.emit(removed)
	return res, nil
}

func (s *Service) moveOrder(ctx context.Context, b repository.Batch, o models.Order) error {
	if _, err := b.PutHistory(ctx, models.NewOrderHistory(o, s.now().UTC())); err != nil {
		return err
	}
	return b.DeleteLive(ctx, o.ID, repository.AtVersion(o.Version))
}

func (s *Service) emit(orders []models.Order) {
	for _, o := range orders {
		s.events.Emit(events.New(events.OrderArchived, o))
	}
}
