package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/session"
)

type startSessionRequest struct {
	TableID   string `json:"tableId"`
	SessionID string `json:"sessionId"`
}

func sessionView(timer *session.Timer, duration time.Duration) gin.H {
	sess := timer.Session()
	left := timer.TimeLeft()
	return gin.H{
		"sessionId":       sess.Key,
		"tableId":         sess.TableID,
		"startTime":       sess.StartTime,
		"expiresAt":       sess.StartTime.Add(duration),
		"timeLeftSeconds": int64(left / time.Second),
		"expired":         timer.Expired(),
	}
}

// StartSession resumes the given session or opens a new one for the table.
func StartSession(sessions *session.Manager, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/sessions"
		defer handlePanic(c, route)

		var req startSessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		timer, err := sessions.Open(ctx, strings.TrimSpace(req.SessionID), req.TableID)
		if err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "session store unavailable")
			return
		}

		c.JSON(http.StatusCreated, sessionView(timer, duration))
	}
}

func GetSession(sessions *session.Manager, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/sessions/:id"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		timer, err := sessions.Get(ctx, c.Param("id"))
		switch {
		case errors.Is(err, session.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "session not found")
			return
		case errors.Is(err, session.ErrExpired):
			c.JSON(http.StatusGone, sessionView(timer, duration))
			return
		case err != nil:
			respondWithError(c, http.StatusServiceUnavailable, route, "session store unavailable")
			return
		}

		c.JSON(http.StatusOK, sessionView(timer, duration))
	}
}

func EndSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/sessions/:id"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := sessions.End(ctx, c.Param("id")); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "session store unavailable")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
