package clubtime

import (
	"testing"
	"time"
)

var berlin = MustCalendar("Europe/Berlin")

func TestSlotStartResolvesOffsetAtSlotDate(t *testing.T) {
	// Berlin springs forward on 2024-03-31: CET (+1) becomes CEST (+2).
	winter, err := berlin.SlotStart("2024-03-30", 10)
	if err != nil {
		t.Fatal(err)
	}
	summer, err := berlin.SlotStart("2024-03-31", 10)
	if err != nil {
		t.Fatal(err)
	}

	_, winterOffset := winter.Zone()
	_, summerOffset := summer.Zone()
	if winterOffset != 3600 || summerOffset != 7200 {
		t.Errorf("offsets = %d, %d, want 3600, 7200", winterOffset, summerOffset)
	}

	// The wall-clock gap is 24h but the real gap is 23h.
	if diff := summer.Sub(winter).Hours(); diff != 23 {
		t.Errorf("real gap = %v hours, want 23", diff)
	}
}

func TestHoursUntilAcrossDSTBoundary(t *testing.T) {
	now := time.Date(2024, 3, 30, 10, 0, 0, 0, berlin.Location())
	diff, err := berlin.HoursUntil(now, "2024-03-31", 10)
	if err != nil {
		t.Fatal(err)
	}
	if diff != 23 {
		t.Errorf("HoursUntil = %v, want 23", diff)
	}
}

func TestHoursUntilNegativeForPastSlots(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, berlin.Location())
	diff, err := berlin.HoursUntil(now, "2024-06-15", 10)
	if err != nil {
		t.Fatal(err)
	}
	if diff != -2 {
		t.Errorf("HoursUntil = %v, want -2", diff)
	}
}

func TestISOWeekday(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2024-01-01", 1}, // Monday
		{"2024-01-06", 6}, // Saturday
		{"2024-01-07", 7}, // Sunday
	}
	for _, tc := range tests {
		got, err := berlin.ISOWeekday(tc.date)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("ISOWeekday(%s) = %d, want %d", tc.date, got, tc.want)
		}
	}
}

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		date       string
		wantMonday string
		wantSunday string
	}{
		{"2024-01-01", "2024-01-01", "2024-01-07"}, // Monday itself
		{"2024-01-03", "2024-01-01", "2024-01-07"}, // midweek
		{"2024-01-07", "2024-01-01", "2024-01-07"}, // Sunday stays in its week
	}
	for _, tc := range tests {
		monday, sunday, err := berlin.WeekBounds(tc.date)
		if err != nil {
			t.Fatal(err)
		}
		if monday != tc.wantMonday || sunday != tc.wantSunday {
			t.Errorf("WeekBounds(%s) = %s..%s, want %s..%s",
				tc.date, monday, sunday, tc.wantMonday, tc.wantSunday)
		}
	}
}

func TestTodayUsesClubLocalDate(t *testing.T) {
	// 22:30 UTC is already the next day in Berlin during summer.
	now := time.Date(2024, 6, 15, 22, 30, 0, 0, time.UTC)
	if got := berlin.Today(now); got != "2024-06-16" {
		t.Errorf("Today = %s, want 2024-06-16", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "01.01.2024", "2024-13-01", "yesterday"} {
		if _, err := berlin.ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) succeeded", bad)
		}
	}
}
