package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/archive"
	"tableside/internal/lifecycle"
	"tableside/internal/models"
	"tableside/internal/orderstore"
)

const writeTimeout = 5 * time.Second

// AdvanceOrder applies a staff action (approve, ready, serve) to one order.
// 202 means the write committed; viewers see it once the feed reflects it.
func AdvanceOrder(store *orderstore.Store, action lifecycle.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "POST /admin/api/orders/:id/" + string(action)
		defer handlePanic(c, route)

		to, err := lifecycle.Target(action)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		order, err := store.SetOrderStatus(ctx, c.Param("id"), to)
		if err != nil {
			respondStoreError(c, route, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"orderId": order.ID,
			"status":  order.Status,
			"message": "accepted",
		})
	}
}

func ServeItem(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/items/:index/serve"
		defer handlePanic(c, route)

		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid item index")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		order, err := store.SetItemStatus(ctx, c.Param("id"), index, models.StatusServed)
		if err != nil {
			respondStoreError(c, route, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"orderId": order.ID,
			"status":  order.Status,
			"items":   order.Items,
			"message": "accepted",
		})
	}
}

func ResolveHelp(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/help/resolve"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		order, err := store.SetHelpRequested(ctx, c.Param("id"), false)
		if err != nil {
			respondStoreError(c, route, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"orderId":       order.ID,
			"helpRequested": order.HelpRequested,
			"message":       "accepted",
		})
	}
}

func respondArchive(c *gin.Context, res archive.Result) {
	if res.NothingToArchive {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func ArchiveOrder(svc *archive.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/archive"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		res, err := svc.ArchiveOrder(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, route, err)
			return
		}
		respondArchive(c, res)
	}
}

func ArchiveServedItems(svc *archive.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/archive-items"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		res, err := svc.ArchiveServedItems(ctx, c.Param("id"))
		if err != nil {
			respondStoreError(c, route, err)
			return
		}
		respondArchive(c, res)
	}
}

func ArchiveTable(svc *archive.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/tables/:tableId/archive"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), writeTimeout)
		defer cancel()

		res, err := svc.ArchiveTable(ctx, c.Param("tableId"))
		if err != nil {
			respondStoreError(c, route, err)
			return
		}
		respondArchive(c, res)
	}
}
