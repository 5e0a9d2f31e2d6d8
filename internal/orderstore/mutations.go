package orderstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"tableside/internal/events"
	"tableside/internal/lifecycle"
	"tableside/internal/models"
	"tableside/internal/repository"
)

var ErrInvalidOrder = errors.New("invalid order")

// SetOrderStatus moves an order one step along its lifecycle. The write only
// lands if the order still holds the status it was validated against.
func (s *Store) SetOrderStatus(ctx context.Context, id string, to models.Status) (models.Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	next, err := lifecycle.Apply(current, to)
	if err != nil {
		return models.Order{}, err
	}

	pre := repository.AtStatus(current.Status)
	patch := repository.Patch{Status: &next.Status}
	if to == models.StatusServed {
		pre.Version = &current.Version
		patch.Items = next.Items
	}
	if err := s.repo.Update(ctx, id, pre, patch); err != nil {
		log.Printf("[ORDERS] [ERROR] %s -> %s on order %s: %v", current.Status, to, id, err)
		return models.Order{}, err
	}

	ev := events.New(events.OrderStatusChanged, current)
	ev.From, ev.To = current.Status, next.Status
	s.events.Emit(ev)
	log.Printf("[ORDERS] [INFO] order %s moved %s -> %s", id, current.Status, next.Status)
	return next, nil
}

// SetItemStatus marks one item served and recomputes the order status. Items
// only move Pending -> Served.
func (s *Store) SetItemStatus(ctx context.Context, id string, index int, to models.Status) (models.Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if to != models.StatusServed {
		from := models.StatusPending
		if index >= 0 && index < len(current.Items) {
			from = current.Items[index].Status
		}
		return models.Order{}, &lifecycle.TransitionError{From: from, To: to}
	}
	next, err := lifecycle.ServeItem(current, index)
	if err != nil {
		return models.Order{}, err
	}

	patch := repository.Patch{Items: next.Items}
	if next.Status != current.Status {
		patch.Status = &next.Status
	}
	if err := s.repo.Update(ctx, id, repository.AtVersion(current.Version), patch); err != nil {
		log.Printf("[ORDERS] [ERROR] serving item %d of order %s: %v", index, id, err)
		return models.Order{}, err
	}

	ev := events.New(events.OrderItemServed, current)
	ev.ItemIndex = &index
	s.events.Emit(ev)
	if next.Status != current.Status {
		changed := events.New(events.OrderStatusChanged, current)
		changed.From, changed.To = current.Status, next.Status
		s.events.Emit(changed)
	}
	return next, nil
}

func (s *Store) SetHelpRequested(ctx context.Context, id string, requested bool) (models.Order, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := s.repo.Update(ctx, id, repository.Precondition{}, repository.Patch{HelpRequested: &requested}); err != nil {
		log.Printf("[ORDERS] [ERROR] setting help=%t on order %s: %v", requested, id, err)
		return models.Order{}, err
	}

	next := current.Clone()
	next.HelpRequested = requested
	if current.HelpRequested != requested {
		ev := events.New(events.OrderHelpChanged, current)
		ev.HelpRequested = &requested
		s.events.Emit(ev)
	}
	return next, nil
}

type NewItem struct {
	Name     string
	Quantity int
	Price    float64
}

type NewOrder struct {
	TableID   string
	SessionID string
	Items     []NewItem
}

// Submit creates a Pending order with every item Pending and the total
// computed from the submitted prices.
func (s *Store) Submit(ctx context.Context, req NewOrder) (models.Order, error) {
	if len(req.Items) == 0 {
		return models.Order{}, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	items := make([]models.Item, 0, len(req.Items))
	for i, it := range req.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return models.Order{}, fmt.Errorf("%w: item %d has no name", ErrInvalidOrder, i)
		}
		if it.Quantity < 1 {
			return models.Order{}, fmt.Errorf("%w: item %d quantity must be at least 1", ErrInvalidOrder, i)
		}
		if it.Price < 0 {
			return models.Order{}, fmt.Errorf("%w: item %d has a negative price", ErrInvalidOrder, i)
		}
		items = append(items, models.Item{
			Name:     name,
			Quantity: it.Quantity,
			Price:    it.Price,
			Status:   models.StatusPending,
		})
	}

	created, err := s.repo.Create(ctx, models.Order{
		TableID:    models.NormalizeTableID(req.TableID),
		SessionID:  req.SessionID,
		Items:      items,
		Status:     models.StatusPending,
		TotalPrice: models.CalculateTotal(items),
	})
	if err != nil {
		log.Println("[ORDERS] [ERROR] submitting order:", err)
		return models.Order{}, err
	}

	s.events.Emit(events.New(events.OrderSubmitted, created))
	log.Printf("[ORDERS] [INFO] order #%d submitted for table %s", created.OrderNumber, created.TableID)
	return created, nil
}
