// Package series generates and manages special booking series: club-blocked
// slots such as training ("Abo"), tournaments or maintenance. A series is a
// set of special bookings sharing a recurrence parent id; the parent is the
// first row's own id.
package series

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/clubtime"
	"github.com/tcgruenwald/platzbuch/internal/db"
)

// DefaultLabel is shown on the grid when the admin gives no label.
const DefaultLabel = "Abo"

// specialBooker is the synthetic identity stored on club-generated rows.
var specialBooker = booking.Identity{Vorname: "Admin", Nachname: "System", Geburtsjahr: 2000}

// maxSeriesRows bounds a single series so a mistyped date range cannot fill
// the table.
const maxSeriesRows = 1000

// Spec describes a series to generate. Exactly one recurrence shape is used:
// one-off fills Date/Courts/StartHour/EndHour, weekly fills
// StartDate/EndDate/Weekdays/Courts/Hours.
type Spec struct {
	Label      string `json:"label"`
	Recurrence string `json:"recurrence"`

	Date      string `json:"date,omitempty"`
	StartHour int    `json:"start_hour,omitempty"`
	EndHour   int    `json:"end_hour,omitempty"`

	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Weekdays  []int  `json:"weekdays,omitempty"` // ISO, 1=Mon..7=Sun
	Hours     []int  `json:"hours,omitempty"`

	Courts []int `json:"courts"`
}

// Conflict is one member booking standing in the way of a series slot.
type Conflict struct {
	Date     string          `json:"date"`
	Court    int             `json:"court_number"`
	Hour     int             `json:"start_hour"`
	Existing booking.Booking `json:"existing"`
}

// Summary is one series as listed on the admin screen.
type Summary struct {
	ParentID       string `json:"recurrence_parent_id"`
	Label          string `json:"label"`
	RecurrenceType string `json:"recurrence_type"`
	Count          int    `json:"count"`
	FirstDate      string `json:"first_date"`
	LastDate       string `json:"last_date"`
}

// Generator expands series specs into booking rows and commits them
// atomically.
type Generator struct {
	db        *db.DB
	bookings  *booking.Store
	cal       clubtime.Calendar
	courts    int
	firstHour int
	lastHour  int
}

func NewGenerator(database *db.DB, bookings *booking.Store, cal clubtime.Calendar, courts, firstHour, lastHour int) *Generator {
	return &Generator{
		db:        database,
		bookings:  bookings,
		cal:       cal,
		courts:    courts,
		firstHour: firstHour,
		lastHour:  lastHour,
	}
}

// Expand materializes the spec into booking rows. The first row's id becomes
// the recurrence parent for the whole series, itself included. Expansion is
// deterministic: courts ascending within hour, hours ascending within date,
// dates ascending.
func (g *Generator) Expand(spec Spec) ([]booking.Booking, error) {
	label := spec.Label
	if label == "" {
		label = DefaultLabel
	}
	if err := g.validateCourts(spec.Courts); err != nil {
		return nil, err
	}

	var slots []slot
	var endDate string
	switch spec.Recurrence {
	case booking.RecurrenceOneOff:
		var err error
		slots, err = g.expandOneOff(spec)
		if err != nil {
			return nil, err
		}
	case booking.RecurrenceWeekly:
		var err error
		slots, err = g.expandWeekly(spec)
		if err != nil {
			return nil, err
		}
		endDate = spec.EndDate
	default:
		return nil, booking.Rejectf(booking.ReasonInvalidSpec,
			"unbekannter Wiederholungstyp %q", spec.Recurrence)
	}

	if len(slots) == 0 {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec,
			"die Serie enthält keine Termine")
	}
	if len(slots) > maxSeriesRows {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec,
			"die Serie umfasst %d Termine (max. %d)", len(slots), maxSeriesRows)
	}

	parentID := uuid.NewString()
	candidates := make([]booking.Booking, 0, len(slots))
	for i, sl := range slots {
		id := parentID
		if i > 0 {
			id = uuid.NewString()
		}
		candidates = append(candidates, booking.Booking{
			ID:                 id,
			CourtNumber:        sl.court,
			Date:               sl.date,
			StartHour:          sl.hour,
			Kind:               booking.KindSpecial,
			Booker:             specialBooker,
			SpecialLabel:       label,
			RecurrenceType:     spec.Recurrence,
			RecurrenceParentID: parentID,
			RecurrenceEndDate:  endDate,
			CreatedByAdmin:     true,
		})
	}
	return candidates, nil
}

// Conflicts reports every member booking occupying a candidate slot. All
// conflicts are returned, not just the first, so the admin sees the full
// picture before deciding.
func (g *Generator) Conflicts(ctx context.Context, candidates []booking.Booking) ([]Conflict, error) {
	dates := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		if !seen[c.Date] {
			seen[c.Date] = true
			dates = append(dates, c.Date)
		}
	}

	existing, err := g.bookings.ListByDatesNonSpecial(ctx, dates)
	if err != nil {
		return nil, err
	}
	occupied := make(map[slot]booking.Booking, len(existing))
	for _, b := range existing {
		occupied[slot{date: b.Date, court: b.CourtNumber, hour: b.StartHour}] = b
	}

	var conflicts []Conflict
	for _, c := range candidates {
		if b, ok := occupied[slot{date: c.Date, court: c.CourtNumber, hour: c.StartHour}]; ok {
			conflicts = append(conflicts, Conflict{
				Date:     c.Date,
				Court:    c.CourtNumber,
				Hour:     c.StartHour,
				Existing: b,
			})
		}
	}
	return conflicts, nil
}

// Commit writes the whole series in one transaction, first deleting the rows
// of a series being replaced. Either every row lands or none does; a
// mid-batch failure (typically a slot grabbed between preview and commit)
// rolls everything back.
func (g *Generator) Commit(ctx context.Context, candidates []booking.Booking, deleteIDs []string) error {
	return g.db.RunInTx(ctx, func(tx *sql.Tx) error {
		store := g.bookings.WithTx(tx)
		if _, err := store.DeleteByIDs(ctx, deleteIDs); err != nil {
			return &booking.RejectError{
				Reason:  booking.ReasonPartialSeries,
				Message: "Die bestehende Serie konnte nicht ersetzt werden.",
				Err:     err,
			}
		}
		for i := range candidates {
			if err := store.Insert(ctx, &candidates[i]); err != nil {
				return &booking.RejectError{
					Reason: booking.ReasonPartialSeries,
					Message: fmt.Sprintf("Termin %s Platz %d %d:00 konnte nicht angelegt werden.",
						candidates[i].Date, candidates[i].CourtNumber, candidates[i].StartHour),
					Err: err,
				}
			}
		}
		return nil
	})
}

// Replace expands a new spec and swaps it for the series identified by
// parentID, atomically. The old series' rows do not count as conflicts since
// they are gone by the time the new rows land.
func (g *Generator) Replace(ctx context.Context, parentID string, spec Spec) ([]booking.Booking, []Conflict, error) {
	candidates, err := g.Expand(spec)
	if err != nil {
		return nil, nil, err
	}
	conflicts, err := g.Conflicts(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}
	oldIDs, err := g.bookings.ListSeriesMemberIDs(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	if len(oldIDs) == 0 {
		return nil, nil, booking.ErrNotFound
	}
	if err := g.Commit(ctx, candidates, oldIDs); err != nil {
		return nil, nil, err
	}
	return candidates, nil, nil
}

// Delete removes the whole series.
func (g *Generator) Delete(ctx context.Context, parentID string) (int64, error) {
	deleted, err := g.bookings.DeleteSeries(ctx, parentID)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, booking.ErrNotFound
	}
	return deleted, nil
}

// List groups all special series rows into per-series summaries, ordered by
// first date.
func (g *Generator) List(ctx context.Context) ([]Summary, error) {
	rows, err := g.bookings.ListSpecialSeries(ctx)
	if err != nil {
		return nil, err
	}

	byParent := make(map[string]*Summary)
	var order []string
	for _, b := range rows {
		s, ok := byParent[b.RecurrenceParentID]
		if !ok {
			s = &Summary{
				ParentID:       b.RecurrenceParentID,
				Label:          b.SpecialLabel,
				RecurrenceType: b.RecurrenceType,
				FirstDate:      b.Date,
				LastDate:       b.Date,
			}
			byParent[b.RecurrenceParentID] = s
			order = append(order, b.RecurrenceParentID)
		}
		s.Count++
		if b.Date < s.FirstDate {
			s.FirstDate = b.Date
		}
		if b.Date > s.LastDate {
			s.LastDate = b.Date
		}
	}

	result := make([]Summary, 0, len(order))
	for _, id := range order {
		result = append(result, *byParent[id])
	}
	return result, nil
}

type slot struct {
	date  string
	court int
	hour  int
}

func (g *Generator) expandOneOff(spec Spec) ([]slot, error) {
	if _, err := g.cal.ParseDate(spec.Date); err != nil {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Datum %q", spec.Date)
	}
	if err := g.validateHourRange(spec.StartHour, spec.EndHour); err != nil {
		return nil, err
	}

	var slots []slot
	for hour := spec.StartHour; hour < spec.EndHour; hour++ {
		for _, court := range spec.Courts {
			slots = append(slots, slot{date: spec.Date, court: court, hour: hour})
		}
	}
	return slots, nil
}

func (g *Generator) expandWeekly(spec Spec) ([]slot, error) {
	start, err := g.cal.ParseDate(spec.StartDate)
	if err != nil {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Startdatum %q", spec.StartDate)
	}
	end, err := g.cal.ParseDate(spec.EndDate)
	if err != nil {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Enddatum %q", spec.EndDate)
	}
	if end.Before(start) {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec,
			"Enddatum %s liegt vor Startdatum %s", spec.EndDate, spec.StartDate)
	}
	if len(spec.Weekdays) == 0 {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec, "keine Wochentage angegeben")
	}
	wanted := make(map[int]bool, len(spec.Weekdays))
	for _, d := range spec.Weekdays {
		if d < 1 || d > 7 {
			return nil, booking.Rejectf(booking.ReasonInvalidSpec, "ungültiger Wochentag %d", d)
		}
		wanted[d] = true
	}
	if len(spec.Hours) == 0 {
		return nil, booking.Rejectf(booking.ReasonInvalidSpec, "keine Stunden angegeben")
	}
	for _, h := range spec.Hours {
		if h < g.firstHour || h >= g.lastHour {
			return nil, booking.Rejectf(booking.ReasonInvalidSpec,
				"Stunde %d liegt außerhalb der Spielzeiten", h)
		}
	}

	var slots []slot
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		wd := int(day.Weekday())
		if wd == 0 {
			wd = 7
		}
		if !wanted[wd] {
			continue
		}
		date := day.Format(clubtime.DateLayout)
		for _, hour := range spec.Hours {
			for _, court := range spec.Courts {
				slots = append(slots, slot{date: date, court: court, hour: hour})
			}
		}
	}
	return slots, nil
}

func (g *Generator) validateCourts(courts []int) error {
	if len(courts) == 0 {
		return booking.Rejectf(booking.ReasonInvalidSpec, "keine Plätze angegeben")
	}
	for _, c := range courts {
		if c < 1 || c > g.courts {
			return booking.Rejectf(booking.ReasonInvalidSpec, "Platz %d existiert nicht", c)
		}
	}
	return nil
}

func (g *Generator) validateHourRange(startHour, endHour int) error {
	if startHour < g.firstHour || endHour > g.lastHour || startHour >= endHour {
		return booking.Rejectf(booking.ReasonInvalidSpec,
			"ungültiger Stundenbereich %d bis %d", startHour, endHour)
	}
	return nil
}
