// Package rules stores the club's booking rulebook as key/value rows and
// parses it into a typed Ruleset once per load. Consumers receive a Ruleset
// value per request batch instead of reading a shared cache, so staleness is
// always explicit at the call site.
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Rule keys understood by the engine and sweeper.
const (
	KeyBookingWindowHours     = "booking_window_hours"
	KeyHalfBookingMinHours    = "half_booking_min_hours"
	KeyHalfBookingMaxHours    = "half_booking_max_hours"
	KeyHalfBookingExpiryHours = "half_booking_expiry_hours"
	KeyCoreTimeStart          = "core_time_start"
	KeyCoreTimeEnd            = "core_time_end"
	KeyCoreTimeDays           = "core_time_days"
	KeySingleMaxPerDay        = "single_max_per_day"
	KeySingleMaxPerWeek       = "single_max_per_week"
	KeyDoubleMaxPerDay        = "double_max_per_day"
	KeyDoubleMaxPerWeek       = "double_max_per_week"
	KeyEmailNotifications     = "email_notifications_enabled"
)

type valueKind int

const (
	kindInt valueKind = iota
	kindBool
	kindWeekdays
)

// schema maps each known rule key to its expected value type. Unknown keys
// are rejected on write; missing keys fall back to the original defaults.
var schema = map[string]valueKind{
	KeyBookingWindowHours:     kindInt,
	KeyHalfBookingMinHours:    kindInt,
	KeyHalfBookingMaxHours:    kindInt,
	KeyHalfBookingExpiryHours: kindInt,
	KeyCoreTimeStart:          kindInt,
	KeyCoreTimeEnd:            kindInt,
	KeyCoreTimeDays:           kindWeekdays,
	KeySingleMaxPerDay:        kindInt,
	KeySingleMaxPerWeek:       kindInt,
	KeyDoubleMaxPerDay:        kindInt,
	KeyDoubleMaxPerWeek:       kindInt,
	KeyEmailNotifications:     kindBool,
}

// Ruleset is the fully parsed rulebook handed to the engine per call.
type Ruleset struct {
	BookingWindowHours     int
	HalfBookingMinHours    int
	HalfBookingMaxHours    int
	HalfBookingExpiryHours int
	CoreTimeStart          int
	CoreTimeEnd            int
	CoreTimeDays           []int // ISO weekdays, 1=Mon..7=Sun
	SingleMaxPerDay        int
	SingleMaxPerWeek       int
	DoubleMaxPerDay        int
	DoubleMaxPerWeek       int
	EmailNotifications     bool
}

// Default returns the rulebook the club ships with.
func Default() Ruleset {
	return Ruleset{
		BookingWindowHours:     24,
		HalfBookingMinHours:    12,
		HalfBookingMaxHours:    24,
		HalfBookingExpiryHours: 12,
		CoreTimeStart:          17,
		CoreTimeEnd:            20,
		CoreTimeDays:           []int{1, 2, 3, 4, 5},
		SingleMaxPerDay:        1,
		SingleMaxPerWeek:       3,
		DoubleMaxPerDay:        2,
		DoubleMaxPerWeek:       6,
		EmailNotifications:     false,
	}
}

// Parse validates the raw rule rows against the schema and returns a typed
// Ruleset. Missing keys keep their defaults; malformed values are an error at
// load time rather than at every read site.
func Parse(values map[string]string) (Ruleset, error) {
	rs := Default()
	for key, raw := range values {
		kind, known := schema[key]
		if !known {
			continue
		}
		if err := ValidateValue(key, raw); err != nil {
			return Ruleset{}, err
		}
		switch kind {
		case kindInt:
			n, _ := strconv.Atoi(strings.TrimSpace(raw))
			switch key {
			case KeyBookingWindowHours:
				rs.BookingWindowHours = n
			case KeyHalfBookingMinHours:
				rs.HalfBookingMinHours = n
			case KeyHalfBookingMaxHours:
				rs.HalfBookingMaxHours = n
			case KeyHalfBookingExpiryHours:
				rs.HalfBookingExpiryHours = n
			case KeyCoreTimeStart:
				rs.CoreTimeStart = n
			case KeyCoreTimeEnd:
				rs.CoreTimeEnd = n
			case KeySingleMaxPerDay:
				rs.SingleMaxPerDay = n
			case KeySingleMaxPerWeek:
				rs.SingleMaxPerWeek = n
			case KeyDoubleMaxPerDay:
				rs.DoubleMaxPerDay = n
			case KeyDoubleMaxPerWeek:
				rs.DoubleMaxPerWeek = n
			}
		case kindBool:
			rs.EmailNotifications = strings.TrimSpace(raw) == "true"
		case kindWeekdays:
			days, _ := parseWeekdays(raw)
			rs.CoreTimeDays = days
		}
	}
	if err := rs.validate(); err != nil {
		return Ruleset{}, err
	}
	return rs, nil
}

// validate cross-checks fields that are individually valid but can contradict
// each other. A min above max or an empty core-time window would silently
// make half-bookings or core time impossible.
func (rs Ruleset) validate() error {
	if rs.HalfBookingMinHours > rs.HalfBookingMaxHours {
		return fmt.Errorf("rule %s (%d) must not exceed %s (%d)",
			KeyHalfBookingMinHours, rs.HalfBookingMinHours,
			KeyHalfBookingMaxHours, rs.HalfBookingMaxHours)
	}
	if rs.CoreTimeStart >= rs.CoreTimeEnd {
		return fmt.Errorf("rule %s (%d) must be before %s (%d)",
			KeyCoreTimeStart, rs.CoreTimeStart,
			KeyCoreTimeEnd, rs.CoreTimeEnd)
	}
	return nil
}

// ValidateValue checks a single rule value against the schema. Used on admin
// writes so a bad value never reaches the store.
func ValidateValue(key, raw string) error {
	kind, known := schema[key]
	if !known {
		return fmt.Errorf("unknown rule key %q", key)
	}
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("rule %s: %q is not a non-negative integer", key, raw)
		}
	case kindBool:
		if raw != "true" && raw != "false" {
			return fmt.Errorf("rule %s: %q is not true/false", key, raw)
		}
	case kindWeekdays:
		if _, err := parseWeekdays(raw); err != nil {
			return fmt.Errorf("rule %s: %w", key, err)
		}
	}
	return nil
}

// IsCoreDay reports whether the given ISO weekday is a core-time day.
func (rs Ruleset) IsCoreDay(isoWeekday int) bool {
	for _, d := range rs.CoreTimeDays {
		if d == isoWeekday {
			return true
		}
	}
	return false
}

func parseWeekdays(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := strconv.Atoi(p)
		if err != nil || d < 1 || d > 7 {
			return nil, fmt.Errorf("%q is not an ISO weekday list (1=Mon..7=Sun)", raw)
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%q contains no weekdays", raw)
	}
	return days, nil
}
