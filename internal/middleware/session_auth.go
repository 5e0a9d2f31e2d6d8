package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tableside/internal/session"
)

const (
	SessionHeader = "X-Session-ID"
	sessionKey    = "session"
)

// SessionAuth requires a live customer session, taken from the X-Session-ID
// header or the sessionId query parameter.
func SessionAuth(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(SessionHeader))
		if key == "" {
			key = strings.TrimSpace(c.Query("sessionId"))
		}
		if key == "" {
			log.Println("[SESSION] [ERROR] missing session id")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
			return
		}

		timer, err := sessions.Get(c.Request.Context(), key)
		switch {
		case errors.Is(err, session.ErrExpired):
			c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": "session expired"})
			return
		case errors.Is(err, session.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown session"})
			return
		case err != nil:
			log.Println("[SESSION] [ERROR] session lookup failed:", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}

		c.Set(sessionKey, timer)
		c.Next()
	}
}

// CurrentSession returns the timer SessionAuth attached to the request.
func CurrentSession(c *gin.Context) (*session.Timer, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	timer, ok := v.(*session.Timer)
	return timer, ok
}
