package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"tableside/internal/lifecycle"
	"tableside/internal/middleware"
	"tableside/internal/orderstore"
	"tableside/internal/repository"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] [%s] returning error %d: %s", route, middleware.GetRequestID(c), status, message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondStoreError maps lifecycle and store failures onto HTTP statuses.
func respondStoreError(c *gin.Context, route string, err error) {
	var transition *lifecycle.TransitionError
	switch {
	case errors.As(err, &transition):
		respondWithError(c, http.StatusConflict, route, transition.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, "order not found")
	case errors.Is(err, repository.ErrConflict):
		respondWithError(c, http.StatusConflict, route, "order was changed by someone else, refresh and retry")
	case errors.Is(err, lifecycle.ErrItemServed), errors.Is(err, lifecycle.ErrNotApproved):
		respondWithError(c, http.StatusConflict, route, err.Error())
	case errors.Is(err, lifecycle.ErrItemIndex), errors.Is(err, orderstore.ErrInvalidOrder):
		respondWithError(c, http.StatusBadRequest, route, err.Error())
	case errors.Is(err, repository.ErrMalformed):
		respondWithError(c, http.StatusUnprocessableEntity, route, "order document is malformed")
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
	default:
		log.Printf("[%s] store error: %v", route, err)
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "min", "gte", "gt":
				details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
