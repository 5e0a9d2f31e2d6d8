package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tableside/internal/orderstore"
	"tableside/internal/tables"
)

// GetTables returns the board as of the last snapshot from the feed.
func GetTables(store *orderstore.Store, plan tables.FloorPlan) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/tables"
		defer handlePanic(c, route)

		snap := store.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"tables": tables.Summarize(snap.Orders, plan),
			"seq":    snap.Seq,
			"stale":  snap.Stale,
		})
	}
}

func GetTable(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/tables/:tableId"
		defer handlePanic(c, route)

		snap := store.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"table": tables.ForTable(snap.Orders, c.Param("tableId")),
			"seq":   snap.Seq,
			"stale": snap.Stale,
		})
	}
}
