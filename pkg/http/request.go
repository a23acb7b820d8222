package http

import (
	"net/http"
	"strconv"
)

const (
	defaultLimit = 100
	maxLimit     = 100
)

// Pagination reads skip/limit query parameters, clamping to sane bounds.
func Pagination(r *http.Request) (skip, limit int) {
	skip = queryInt(r, "skip", 0)
	if skip < 0 {
		skip = 0
	}

	limit = queryInt(r, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	return skip, limit
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}
