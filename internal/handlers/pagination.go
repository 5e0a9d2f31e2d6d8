package handlers

import (
	"errors"
	"math"
	"strconv"
)

const (
	maxPageLimit = 100
	// maxPage keeps (page-1)*limit inside int64.
	maxPage = math.MaxInt64 / maxPageLimit
)

var errPagination = errors.New("page and limit must be positive integers")

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(20)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 || p > maxPage {
			return 0, 0, errPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errPagination
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, nil
}
