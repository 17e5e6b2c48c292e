package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is used when the client omits limit.
	DefaultLimit = 20
	// DefaultMaxLimit caps limit to prevent unbounded listings.
	DefaultMaxLimit = 100
)

// Params are the 1-based page number and page size of a listing request.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the index of the first entry on the page.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Options control defaults for a handler.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
)

// FromRequest parses page and limit from the request query.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads page and limit. Limits above the maximum are clamped rather than rejected.
func Parse(values url.Values, opts Options) (Params, error) {
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	page, err := positiveInt(values.Get("page"), 1)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidPage, err)
	}
	limit, err := positiveInt(values.Get("limit"), defaultLimit)
	if err != nil {
		return Params{}, fmt.Errorf("%w: %v", ErrInvalidLimit, err)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Params{Page: page, Limit: limit}, nil
}

func positiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if value <= 0 {
		return 0, errors.New("must be greater than zero")
	}
	return value, nil
}
