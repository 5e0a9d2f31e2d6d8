package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"tableside/internal/middleware"
	"tableside/internal/orderstore"
	"tableside/internal/ws"
)

// StaffBoardSocket streams the table board. The first frame is the current
// board; later frames follow every snapshot.
func StaffBoardSocket(hub *ws.Hub, bridge *ws.Bridge, store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/ws"
		defer handlePanic(c, route)

		initial := bridge.BoardMessage(store.Snapshot())
		if err := hub.Serve(c.Writer, c.Request, ws.TopicBoard, initial); err != nil {
			log.Printf("[%s] ws upgrade error: %v", route, err)
		}
	}
}

// SessionSocket streams the caller's own orders plus session expiry notices.
func SessionSocket(hub *ws.Hub, bridge *ws.Bridge, store *orderstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /ws/session"
		defer handlePanic(c, route)

		timer, ok := middleware.CurrentSession(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "missing session")
			return
		}

		initial := bridge.OrdersMessage(store.Snapshot(), timer.Key())
		if err := hub.Serve(c.Writer, c.Request, ws.SessionTopic(timer.Key()), initial); err != nil {
			log.Printf("[%s] ws upgrade error: %v", route, err)
		}
	}
}
