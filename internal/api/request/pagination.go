package request

import (
	"net/http"
	"strconv"
)

// Pagination carries the limit and opaque cursor for list endpoints. The
// cursor is the ID of the last row from the previous page; rollout history
// can run long for chatty services, so every list is cursor-paginated.
type Pagination struct {
	Limit  int
	Cursor string
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ParsePagination reads limit and cursor from the query string. Anything
// unparseable or out of range falls back to the defaults rather than
// erroring: a bad limit is not worth failing a read for.
func ParsePagination(r *http.Request) Pagination {
	q := r.URL.Query()
	p := Pagination{
		Limit:  DefaultLimit,
		Cursor: q.Get("cursor"),
	}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}
