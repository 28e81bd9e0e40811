package rules

import (
	"testing"
)

func TestParseEmptyKeepsDefaults(t *testing.T) {
	rs, err := Parse(map[string]string{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	def := Default()
	if rs.BookingWindowHours != def.BookingWindowHours || rs.SingleMaxPerWeek != def.SingleMaxPerWeek {
		t.Errorf("rs = %+v", rs)
	}
}

func TestParseOverrides(t *testing.T) {
	rs, err := Parse(map[string]string{
		KeyBookingWindowHours: "48",
		KeyCoreTimeDays:       "1, 3, 5",
		KeyEmailNotifications: "true",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rs.BookingWindowHours != 48 {
		t.Errorf("BookingWindowHours = %d", rs.BookingWindowHours)
	}
	if len(rs.CoreTimeDays) != 3 || rs.CoreTimeDays[1] != 3 {
		t.Errorf("CoreTimeDays = %v", rs.CoreTimeDays)
	}
	if !rs.EmailNotifications {
		t.Error("EmailNotifications should be true")
	}
}

func TestParseUnknownKeysAreIgnored(t *testing.T) {
	rs, err := Parse(map[string]string{"legacy_setting": "whatever"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rs.BookingWindowHours != Default().BookingWindowHours {
		t.Errorf("rs = %+v", rs)
	}
}

func TestParseMalformedValueFails(t *testing.T) {
	if _, err := Parse(map[string]string{KeyBookingWindowHours: "soon"}); err == nil {
		t.Error("expected error for non-integer value")
	}
	if _, err := Parse(map[string]string{KeyCoreTimeDays: "1,8"}); err == nil {
		t.Error("expected error for out-of-range weekday")
	}
}

func TestParseRejectsContradictoryRules(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"half min above max", map[string]string{
			KeyHalfBookingMinHours: "30",
			KeyHalfBookingMaxHours: "24",
		}},
		{"core time inverted", map[string]string{
			KeyCoreTimeStart: "20",
			KeyCoreTimeEnd:   "17",
		}},
		{"core time empty", map[string]string{
			KeyCoreTimeStart: "17",
			KeyCoreTimeEnd:   "17",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.values); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		ok    bool
	}{
		{KeyBookingWindowHours, "24", true},
		{KeyBookingWindowHours, "-1", false},
		{KeyBookingWindowHours, "1.5", false},
		{KeyEmailNotifications, "true", true},
		{KeyEmailNotifications, "yes", false},
		{KeyCoreTimeDays, "1,2,3,4,5", true},
		{KeyCoreTimeDays, "6,7", true},
		{KeyCoreTimeDays, "0", false},
		{KeyCoreTimeDays, "", false},
		{"no_such_rule", "1", false},
	}
	for _, tc := range tests {
		err := ValidateValue(tc.key, tc.value)
		if tc.ok && err != nil {
			t.Errorf("ValidateValue(%s, %q) = %v, want nil", tc.key, tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidateValue(%s, %q) = nil, want error", tc.key, tc.value)
		}
	}
}

func TestIsCoreDay(t *testing.T) {
	rs := Default()
	for day := 1; day <= 5; day++ {
		if !rs.IsCoreDay(day) {
			t.Errorf("weekday %d should be a core day", day)
		}
	}
	for _, day := range []int{6, 7} {
		if rs.IsCoreDay(day) {
			t.Errorf("weekday %d should not be a core day", day)
		}
	}
}
