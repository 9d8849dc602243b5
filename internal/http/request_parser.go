// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for common
// form parsing, path parameter and paging extraction.

package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expensia/internal/forms"
)

const (
	// DefaultPageSize is the page size of every paged listing.
	DefaultPageSize = 10

	maxMultipartMemory = 1 << 20
)

// PageParams holds the paging and search parameters of a listing.
type PageParams struct {
	// Page is zero-based, as the backend expects.
	Page   int
	Size   int
	Search string
}

// ParsePageParams extracts page and search from query parameters. Page
// numbers below zero or unparsable fall back to the first page.
func ParsePageParams(query url.Values) PageParams {
	params := PageParams{Size: DefaultPageSize}
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p >= 0 {
			params.Page = p
		}
	}
	params.Search = strings.TrimSpace(query.Get("search"))
	return params
}

// Values renders the params back into a query string, merged into extra.
func (p PageParams) Values(extra url.Values) url.Values {
	v := url.Values{}
	for k, vals := range extra {
		v[k] = vals
	}
	v.Set("page", strconv.Itoa(p.Page))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	return v
}

// ParsePeriodParams reads month and year from the query, defaulting to the
// month containing now.
func (s *Server) ParsePeriodParams(r *http.Request) forms.Period {
	return forms.ParsePeriod(r.URL.Query(), forms.CurrentPeriod(s.userNow(r)))
}

// PathID parses the {id} path value. Returns an error response builder when
// it is missing or not a positive integer.
func PathID(r *http.Request) (int64, *HTMXResponseBuilder) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequestError("Invalid identifier")
	}
	return id, nil
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// ParseMultipartOrFail parses a multipart upload bounded by limit bytes.
func ParseMultipartOrFail(w http.ResponseWriter, r *http.Request, limit int64) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return UnprocessableEntityError(forms.MsgImageTooLarge).TriggerErrorNotification(forms.MsgImageTooLarge)
	}
	return nil
}
