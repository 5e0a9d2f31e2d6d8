// Package tables derives the per-table board from a live order snapshot.
// Everything here is a pure function of its input.
package tables

import (
	"sort"
	"strconv"

	"tableside/internal/models"
)

// FloorPlan lists the table keys shown on the board, in display order.
type FloorPlan []string

// DefaultFloorPlan is the takeaway bucket followed by tables "1".."count".
func DefaultFloorPlan(count int) FloorPlan {
	plan := make(FloorPlan, 0, count+1)
	plan = append(plan, models.TakeawayTable)
	for i := 1; i <= count; i++ {
		plan = append(plan, strconv.Itoa(i))
	}
	return plan
}

type View struct {
	TableID          string         `json:"tableId"`
	Orders           []models.Order `json:"orders"`
	IsOccupied       bool           `json:"isOccupied"`
	HasPending       bool           `json:"hasPending"`
	NeedsHelp        bool           `json:"needsHelp"`
	AwaitingApproval bool           `json:"awaitingApproval"`
	TicketCount      int            `json:"ticketCount"`
}

func Key(order models.Order) string {
	return order.TableKey()
}

// Group buckets orders by table key, keeping the input order inside each
// bucket.
func Group(orders []models.Order) map[string][]models.Order {
	groups := make(map[string][]models.Order)
	for _, o := range orders {
		key := Key(o)
		groups[key] = append(groups[key], o)
	}
	return groups
}

func summarize(key string, orders []models.Order) View {
	v := View{TableID: key, Orders: orders, TicketCount: len(orders)}
	if v.Orders == nil {
		v.Orders = []models.Order{}
	}
	v.IsOccupied = len(orders) > 0
	for _, o := range orders {
		if o.Status != models.StatusServed || !o.AllItemsServed() {
			v.HasPending = true
		}
		if o.HelpRequested {
			v.NeedsHelp = true
		}
		if o.Status == models.StatusPending {
			v.AwaitingApproval = true
		}
	}
	return v
}

// Summarize returns one view per floor-plan table, in plan order, followed by
// any table that has orders but is not on the plan, sorted by key.
func Summarize(orders []models.Order, plan FloorPlan) []View {
	groups := Group(orders)
	views := make([]View, 0, len(plan)+len(groups))
	seen := make(map[string]bool, len(plan))

	for _, key := range plan {
		key = models.NormalizeTableID(key)
		if seen[key] {
			continue
		}
		seen[key] = true
		views = append(views, summarize(key, groups[key]))
	}

	extra := make([]string, 0)
	for key := range groups {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		views = append(views, summarize(key, groups[key]))
	}
	return views
}

func Find(views []View, key string) (View, bool) {
	key = models.NormalizeTableID(key)
	for _, v := range views {
		if v.TableID == key {
			return v, true
		}
	}
	return View{}, false
}

// ForTable builds the view of a single table whether or not it is on the plan.
func ForTable(orders []models.Order, key string) View {
	key = models.NormalizeTableID(key)
	return summarize(key, Group(orders)[key])
}
