package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tableside/internal/repository"
)

func GetHistory(repo repository.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/history"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		records, total, err := repo.History(ctx, repository.HistoryQuery{
			TableKey: strings.TrimSpace(c.Query("tableId")),
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			respondStoreError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":  records,
			"page":  page,
			"limit": limit,
			"total": total,
		})
	}
}
