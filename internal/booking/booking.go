// Package booking holds the reservation domain types and the booking store.
package booking

import (
	"strings"
	"time"
)

// Kind is the mutually exclusive variant tag of a reservation.
type Kind string

const (
	KindHalf    Kind = "half"
	KindFull    Kind = "full"
	KindDouble  Kind = "double"
	KindSpecial Kind = "special"
)

func (k Kind) Valid() bool {
	switch k {
	case KindHalf, KindFull, KindDouble, KindSpecial:
		return true
	}
	return false
}

// Recurrence types for special booking series.
const (
	RecurrenceOneOff = "einmalig"
	RecurrenceWeekly = "weekly"
)

// DateLayout is the calendar-day format used throughout the store ("YYYY-MM-DD").
const DateLayout = "2006-01-02"

// Identity is the (first name, last name, birth year) triple that serves as
// both display identity and authentication credential.
type Identity struct {
	Vorname     string `json:"vorname"`
	Nachname    string `json:"nachname"`
	Geburtsjahr int    `json:"geburtsjahr"`
}

// Normalized returns the identity with trimmed names.
func (i Identity) Normalized() Identity {
	return Identity{
		Vorname:     strings.TrimSpace(i.Vorname),
		Nachname:    strings.TrimSpace(i.Nachname),
		Geburtsjahr: i.Geburtsjahr,
	}
}

// Matches compares identities case-insensitively on names and exactly on
// birth year.
func (i Identity) Matches(other Identity) bool {
	return strings.EqualFold(strings.TrimSpace(i.Vorname), strings.TrimSpace(other.Vorname)) &&
		strings.EqualFold(strings.TrimSpace(i.Nachname), strings.TrimSpace(other.Nachname)) &&
		i.Geburtsjahr == other.Geburtsjahr
}

// Booking is the central reservation entity. One row occupies exactly one
// (date, court, start_hour) slot.
type Booking struct {
	ID                 string    `json:"id"`
	CourtNumber        int       `json:"court_number"`
	Date               string    `json:"date"`
	StartHour          int       `json:"start_hour"`
	Kind               Kind      `json:"booking_type"`
	Booker             Identity  `json:"booker"`
	BookerEmail        string    `json:"booker_email,omitempty"`
	BookerComment      string    `json:"booker_comment,omitempty"`
	Partner            *Identity `json:"partner,omitempty"`
	PartnerComment     string    `json:"partner_comment,omitempty"`
	DoubleMatchNames   string    `json:"double_match_names,omitempty"`
	SpecialLabel       string    `json:"special_label,omitempty"`
	RecurrenceType     string    `json:"recurrence_type,omitempty"`
	RecurrenceParentID string    `json:"recurrence_parent_id,omitempty"`
	RecurrenceEndDate  string    `json:"recurrence_end_date,omitempty"`
	IsJoined           bool      `json:"is_joined"`
	CreatedByAdmin     bool      `json:"created_by_admin"`
	CreatedByIP        string    `json:"created_by_ip,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// InSeries reports whether the booking belongs to a recurrence series.
func (b *Booking) InSeries() bool {
	return b.RecurrenceParentID != ""
}

// AnonymizeName reduces a name to its first letter for the public grid.
func AnonymizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "****"
	}
	runes := []rune(name)
	return strings.ToUpper(string(runes[0])) + "***"
}
