// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 50

// MaxPageSize caps what a client may request via per_page.
const MaxPageSize = 200

// Params holds the decoded paging parameters of a list request.
type Params struct {
	Limit  int64
	Offset int64
}

// FromRequest extracts "per_page" and "page" (1-based) query parameters,
// applying defaults and caps.
func FromRequest(r *http.Request) Params {
	limit := int64(PageSize)
	if s := query.Get(r, "per_page"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			limit = n
			if limit > MaxPageSize {
				limit = MaxPageSize
			}
		}
	}

	page := int64(1)
	if s := query.Get(r, "page"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 1 {
			page = n
		}
	}

	return Params{Limit: limit, Offset: (page - 1) * limit}
}

// LimitPlusOne returns the fetch limit for look-ahead pagination: one extra
// row is requested to detect whether a next page exists.
func (p Params) LimitPlusOne() int64 { return p.Limit + 1 }

// Page returns the 1-based page number these params describe.
func (p Params) Page() int64 {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Meta is the paging block included in list response envelopes.
type Meta struct {
	Page    int64 `json:"page"`
	PerPage int64 `json:"per_page"`
	HasNext bool  `json:"has_next"`
}

// Trim removes the look-ahead row when present and returns the paging
// metadata. Call after fetching LimitPlusOne rows.
func Trim[T any](rows *[]T, p Params) Meta {
	hasNext := false
	if int64(len(*rows)) > p.Limit {
		*rows = (*rows)[:p.Limit]
		hasNext = true
	}
	return Meta{Page: p.Page(), PerPage: p.Limit, HasNext: hasNext}
}
