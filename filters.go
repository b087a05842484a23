package gatekit

import "time"

// TokenFilter provides options for filtering token list queries.
type TokenFilter struct {
	// Filter by protected pattern template
	Path string

	// Filter by validity flag (nil means both)
	Valid *bool

	// Filter by creation time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewTokenFilter creates a new TokenFilter with default values.
func NewTokenFilter() TokenFilter {
	return TokenFilter{
		Limit: 100,
	}
}

// WithPath sets the pattern template filter.
func (f TokenFilter) WithPath(path string) TokenFilter {
	f.Path = path
	return f
}

// WithValid sets the validity filter.
func (f TokenFilter) WithValid(valid bool) TokenFilter {
	f.Valid = &valid
	return f
}

// WithTimeRange sets the creation time range filter.
func (f TokenFilter) WithTimeRange(since, until time.Time) TokenFilter {
	f.Since = since
	f.Until = until
	return f
}

// WithPagination sets limit and offset.
func (f TokenFilter) WithPagination(limit, offset int) TokenFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}
