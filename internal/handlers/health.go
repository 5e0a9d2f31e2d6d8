package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/orderstore"
)

// Health reports store reachability and whether the order feed is live.
func Health(store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		snap := store.Snapshot()
		feed := "live"
		if snap.Stale {
			feed = "stale"
		}

		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable", "feed": feed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "feed": feed, "seq": snap.Seq})
	}
}
