// Package handlers exposes the billing services as JSON endpoints.
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-erp/httpx"
	"github.com/diewo77/go-erp/internal/services"
	"github.com/diewo77/go-erp/validation"
)

const maxBodyBytes = 1 << 20

// decode reads and validates the request body into dst, writing a 400 when it fails.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	v, err := validation.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), dst)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Error(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large", nil)
			return false
		}
		httpx.Error(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return false
	}
	return violations(w, v)
}

// violations writes a 400 and returns false when v is not empty.
func violations(w http.ResponseWriter, v validation.Violations) bool {
	if v.Empty() {
		return true
	}
	httpx.Error(w, http.StatusBadRequest, "validation_failed", "request is invalid", v)
	return false
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.Error(w, http.StatusBadRequest, "validation_failed", "invalid id", validation.Violations{"id": "invalid"})
		return 0, false
	}
	return uint(id), true
}

func pageFrom(q url.Values) services.Page {
	page, _ := strconv.Atoi(q.Get("page"))
	items, _ := strconv.Atoi(q.Get("items"))
	return services.Page{Page: page, Items: items}.Normalize()
}

func pagination(p services.Page, count int64) httpx.Pagination {
	return httpx.Pagination{Page: p.Page, Pages: p.Pages(count), Count: count}
}

// uintParam parses an optional numeric query parameter.
func uintParam(q url.Values, key string, v validation.Violations) uint {
	s := q.Get(key)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		v.Add(key, "invalid")
		return 0
	}
	return uint(n)
}

func intParam(q url.Values, key string, v validation.Violations) int {
	s := q.Get(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		v.Add(key, "invalid")
		return 0
	}
	return n
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty yields the zero time.
func parseDate(field, s string, v validation.Violations) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	v.Add(field, "invalid_date")
	return time.Time{}
}

// parseDueDate is parseDate, except that a calendar date runs until the last second of that day.
func parseDueDate(field, s string, v validation.Violations) time.Time {
	t := parseDate(field, s, v)
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(s)); err == nil {
		return t.Add(24*time.Hour - time.Second)
	}
	return t
}
