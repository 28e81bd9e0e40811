package apiutil

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const dateQueryKey = "date"

// RequireString trims the value and fails when it is empty.
func RequireString(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", FieldError{Field: field, Reason: "is required"}
	}
	return raw, nil
}

// RequireBirthYear validates a plausible four-digit birth year.
func RequireBirthYear(year int, field string) error {
	if year < 1900 || year > time.Now().Year() {
		return FieldError{Field: field, Reason: "must be a four-digit year"}
	}
	return nil
}

// DateFromQuery reads and validates the ?date= parameter.
func DateFromQuery(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(dateQueryKey))
	if raw == "" {
		return "", FieldError{Field: dateQueryKey, Reason: "is required"}
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", FieldError{Field: dateQueryKey, Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", raw)}
	}
	return raw, nil
}
