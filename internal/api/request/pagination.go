package request

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type Pagination struct {
	Limit  int
	Cursor int64
}

// ParsePagination reads limit/cursor query parameters, clamping the limit.
func ParsePagination(r *http.Request) Pagination {
	pg := Pagination{Limit: defaultPageLimit}

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pg.Limit = min(n, maxPageLimit)
		}
	}
	if v := r.URL.Query().Get("cursor"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			pg.Cursor = n
		}
	}
	return pg
}
