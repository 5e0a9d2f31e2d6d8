package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tableside/internal/middleware"
	"tableside/internal/orderstore"
)

type submitOrderItemRequest struct {
	Name     string  `json:"name" binding:"required"`
	Quantity int     `json:"quantity" binding:"required,min=1"`
	Price    float64 `json:"price" binding:"gte=0"`
}

type submitOrderRequest struct {
	Items []submitOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// SubmitOrder places an order for the caller's session. The table comes from
// the session, not the request body.
func SubmitOrder(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders"
		defer handlePanic(c, route)

		timer, ok := middleware.CurrentSession(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "missing session")
			return
		}

		var req submitOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		items := make([]orderstore.NewItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, orderstore.NewItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		sess := timer.Session()
		order, err := store.Submit(ctx, orderstore.NewOrder{
			TableID:   sess.TableID,
			SessionID: sess.Key,
			Items:     items,
		})
		if err != nil {
			respondStoreError(c, route, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"orderId":     order.ID,
			"orderNumber": order.OrderNumber,
			"totalPrice":  order.TotalPrice,
			"status":      order.Status,
			"message":     "order submitted",
		})
	}
}

// GetSessionOrders lists the caller's live orders from the last snapshot.
func GetSessionOrders(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders"
		defer handlePanic(c, route)

		timer, ok := middleware.CurrentSession(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "missing session")
			return
		}

		snap := store.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"orders": snap.ForSession(timer.Key()),
			"seq":    snap.Seq,
			"stale":  snap.Stale,
		})
	}
}

// RequestHelp raises the help flag on one of the caller's orders. Customers
// can only turn it on.
func RequestHelp(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/orders/:id/help"
		defer handlePanic(c, route)

		timer, ok := middleware.CurrentSession(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "missing session")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		current, err := store.Order(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, route, err)
			return
		}
		if current.SessionID != timer.Key() {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		order, err := store.SetHelpRequested(ctx, current.ID, true)
		if err != nil {
			respondStoreError(c, route, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"orderId":       order.ID,
			"helpRequested": order.HelpRequested,
			"message":       "staff notified",
		})
	}
}
