// Package clubtime resolves slot times in the club's local calendar. Booking
// cutoffs are expressed in local days and hours, so a slot's instant must be
// computed from the local-to-UTC offset at the slot's own date — naive UTC
// arithmetic on a "YYYY-MM-DDTHH:00" string drifts by an hour across DST
// boundaries.
package clubtime

import (
	"fmt"
	"time"
)

// Clock abstracts "now" for testing time-dependent rules.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the system clock.
func RealClock() Clock { return realClock{} }

// DateLayout is the calendar-day wire format.
const DateLayout = "2006-01-02"

// Calendar performs club-local calendar arithmetic.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(timezone string) (Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Calendar{}, fmt.Errorf("load club timezone: %w", err)
	}
	return Calendar{loc: loc}, nil
}

// MustCalendar is for tests and defaults where the zone name is known good.
func MustCalendar(timezone string) Calendar {
	cal, err := NewCalendar(timezone)
	if err != nil {
		panic(err)
	}
	return cal
}

func (c Calendar) Location() *time.Location { return c.loc }

// ParseDate parses a calendar day in the club's location.
func (c Calendar) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// SlotStart returns the true instant at which the slot (date, hour) begins in
// club-local time. The offset is resolved at that date, not at call time.
func (c Calendar) SlotStart(date string, hour int) (time.Time, error) {
	day, err := c.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, c.loc), nil
}

// HoursUntil returns the fractional hours from now until the slot starts.
// Negative when the slot is in the past.
func (c Calendar) HoursUntil(now time.Time, date string, hour int) (float64, error) {
	start, err := c.SlotStart(date, hour)
	if err != nil {
		return 0, err
	}
	return start.Sub(now).Hours(), nil
}

// ISOWeekday returns the ISO weekday (1=Mon..7=Sun) of a calendar day.
func (c Calendar) ISOWeekday(date string) (int, error) {
	day, err := c.ParseDate(date)
	if err != nil {
		return 0, err
	}
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return wd, nil
}

// WeekBounds returns the Monday and Sunday of the ISO week containing date.
// Core-time accounting always runs Monday through Sunday.
func (c Calendar) WeekBounds(date string) (monday, sunday string, err error) {
	day, err := c.ParseDate(date)
	if err != nil {
		return "", "", err
	}
	isoWd := int(day.Weekday())
	if isoWd == 0 {
		isoWd = 7
	}
	mondayT := day.AddDate(0, 0, 1-isoWd)
	sundayT := mondayT.AddDate(0, 0, 6)
	return mondayT.Format(DateLayout), sundayT.Format(DateLayout), nil
}

// Today returns the calendar day containing the given instant, in club time.
func (c Calendar) Today(now time.Time) string {
	return now.In(c.loc).Format(DateLayout)
}
