// Package engine evaluates booking, join, cancel, edit and info requests
// against the rulebook, the roster and the existing reservations. Every
// operation returns either an accepted result or a terminal
// *booking.RejectError with a human-readable reason.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/clubtime"
	"github.com/tcgruenwald/platzbuch/internal/rules"
)

// MemberVerifier checks an identity claim against the roster.
type MemberVerifier interface {
	Verify(ctx context.Context, vorname, nachname string, geburtsjahr int) (bool, error)
}

// BookingReader is the slice of the booking store the engine reads from.
type BookingReader interface {
	GetSlot(ctx context.Context, date string, court, hour int) (*booking.Booking, error)
	ListBookerWeekNonSpecial(ctx context.Context, ident booking.Identity, fromDate, toDate string) ([]booking.Booking, error)
}

// Engine is pure with respect to configuration: the Ruleset is passed per
// call, freshly loaded by the caller, so there is no hidden rule staleness.
type Engine struct {
	members  MemberVerifier
	bookings BookingReader
	cal      clubtime.Calendar
	clock    clubtime.Clock

	courts    int
	firstHour int
	lastHour  int
}

func New(members MemberVerifier, bookings BookingReader, cal clubtime.Calendar, clock clubtime.Clock, courts, firstHour, lastHour int) *Engine {
	if clock == nil {
		clock = clubtime.RealClock()
	}
	return &Engine{
		members:   members,
		bookings:  bookings,
		cal:       cal,
		clock:     clock,
		courts:    courts,
		firstHour: firstHour,
		lastHour:  lastHour,
	}
}

// Request is a member's self-service booking request.
type Request struct {
	Court            int
	Date             string
	Hour             int
	Kind             booking.Kind
	Identity         booking.Identity
	Email            string
	Comment          string
	DoubleMatchNames string
	ClientIP         string
}

// Evaluate runs the rule chain in order, short-circuiting on the first
// failure: identity, booking window, core-time limits, slot occupancy. On
// acceptance it returns the reservation to persist. The occupancy check here
// is advisory; the store's uniqueness constraint is authoritative and must be
// re-validated at insert time.
func (e *Engine) Evaluate(ctx context.Context, rs rules.Ruleset, req Request) (*booking.Booking, error) {
	if err := e.validateShape(req); err != nil {
		return nil, err
	}
	ident := req.Identity.Normalized()

	ok, err := e.members.Verify(ctx, ident.Vorname, ident.Nachname, ident.Geburtsjahr)
	if err != nil {
		return nil, fmt.Errorf("verify member: %w", err)
	}
	if !ok {
		return nil, booking.Rejectf(booking.ReasonNotAMember, "Mitglied nicht gefunden.")
	}

	if err := e.checkWindow(rs, req); err != nil {
		return nil, err
	}

	if err := e.checkCoreTimeLimits(ctx, rs, ident, req); err != nil {
		return nil, err
	}

	occupied, err := e.bookings.GetSlot(ctx, req.Date, req.Court, req.Hour)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if occupied != nil {
		return nil, booking.Rejectf(booking.ReasonSlotTaken, "Dieser Platz ist bereits belegt.")
	}

	b := &booking.Booking{
		ID:             uuid.NewString(),
		CourtNumber:    req.Court,
		Date:           req.Date,
		StartHour:      req.Hour,
		Kind:           req.Kind,
		Booker:         ident,
		IsJoined:       false,
		CreatedByAdmin: false,
		CreatedByIP:    req.ClientIP,
	}
	// Comment and email only exist for half-bookings (partner finding),
	// participant names only for doubles.
	if req.Kind == booking.KindHalf {
		b.BookerComment = req.Comment
		b.BookerEmail = req.Email
	}
	if req.Kind == booking.KindDouble {
		b.DoubleMatchNames = req.DoubleMatchNames
	}
	return b, nil
}

// EvaluateJoin decides whether ident may complete the half-booking target.
func (e *Engine) EvaluateJoin(ctx context.Context, target *booking.Booking, ident booking.Identity) error {
	ident = ident.Normalized()

	ok, err := e.members.Verify(ctx, ident.Vorname, ident.Nachname, ident.Geburtsjahr)
	if err != nil {
		return fmt.Errorf("verify member: %w", err)
	}
	if !ok {
		return booking.Rejectf(booking.ReasonNotAMember, "Mitglied nicht gefunden.")
	}

	if target.Kind != booking.KindHalf || target.IsJoined {
		return booking.Rejectf(booking.ReasonNotJoinable, "Diese Buchung kann nicht beigetreten werden.")
	}

	if ident.Matches(target.Booker) {
		return booking.Rejectf(booking.ReasonCannotJoinOwn, "Sie können nicht Ihrer eigenen Buchung beitreten.")
	}

	return nil
}

// AuthorizeBooker gates cancellation and comment edits: the claimed identity
// must exactly match the stored booker.
func (e *Engine) AuthorizeBooker(target *booking.Booking, ident booking.Identity) error {
	if !ident.Matches(target.Booker) {
		return booking.Rejectf(booking.ReasonIdentityMismatch, "Die Angaben stimmen nicht mit dem Bucher überein.")
	}
	return nil
}

// AuthorizeParticipant gates info disclosure: either participant of a
// completed booking is entitled to know who they play against.
func (e *Engine) AuthorizeParticipant(target *booking.Booking, ident booking.Identity) error {
	if ident.Matches(target.Booker) {
		return nil
	}
	if target.Partner != nil && ident.Matches(*target.Partner) {
		return nil
	}
	return booking.Rejectf(booking.ReasonIdentityMismatch, "Die Angaben stimmen mit keinem Teilnehmer überein.")
}

// CancelRequiresConfirmation reports whether cancelling the booking deprives
// a joined partner. The UI must force a second confirmation in that case.
func (e *Engine) CancelRequiresConfirmation(target *booking.Booking) bool {
	return target.IsJoined
}

func (e *Engine) validateShape(req Request) error {
	switch {
	case !req.Kind.Valid() || req.Kind == booking.KindSpecial:
		return booking.Rejectf(booking.ReasonInvalidSpec, "unbekannter Buchungstyp %q", req.Kind)
	case req.Court < 1 || req.Court > e.courts:
		return booking.Rejectf(booking.ReasonInvalidSpec, "Platz %d existiert nicht", req.Court)
	case req.Hour < e.firstHour || req.Hour >= e.lastHour:
		return booking.Rejectf(booking.ReasonInvalidSpec, "Stunde %d liegt außerhalb der Spielzeiten", req.Hour)
	}
	if _, err := e.cal.ParseDate(req.Date); err != nil {
		return booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Datum %q", req.Date)
	}
	return nil
}

// checkWindow applies the per-kind booking horizon. Half-bookings are exempt
// from the general window and instead use their own bounded horizon, so they
// can open early for partner finding.
func (e *Engine) checkWindow(rs rules.Ruleset, req Request) error {
	diff, err := e.cal.HoursUntil(e.clock.Now(), req.Date, req.Hour)
	if err != nil {
		return booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Datum %q", req.Date)
	}

	if req.Kind == booking.KindHalf {
		if diff < float64(rs.HalfBookingMinHours) || diff > float64(rs.HalfBookingMaxHours) {
			return booking.Rejectf(booking.ReasonOutsideBookingWindow,
				"Halbe Buchungen sind nur %d bis %d Stunden im Voraus möglich.",
				rs.HalfBookingMinHours, rs.HalfBookingMaxHours)
		}
		return nil
	}

	if diff <= 0 || diff > float64(rs.BookingWindowHours) {
		return booking.Rejectf(booking.ReasonOutsideBookingWindow,
			"Buchungen sind nur bis %d Stunden im Voraus möglich.", rs.BookingWindowHours)
	}
	return nil
}

// checkCoreTimeLimits enforces the per-member core-time caps for the ISO week
// (Monday-Sunday) containing the slot. Singles (full and half) and doubles
// are separate partitions; a half-booking counts as a full single even though
// it reserves only half a court.
func (e *Engine) checkCoreTimeLimits(ctx context.Context, rs rules.Ruleset, ident booking.Identity, req Request) error {
	core, err := e.isCoreTime(rs, req.Date, req.Hour)
	if err != nil {
		return err
	}
	if !core {
		return nil
	}

	monday, sunday, err := e.cal.WeekBounds(req.Date)
	if err != nil {
		return booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Datum %q", req.Date)
	}
	weekBookings, err := e.bookings.ListBookerWeekNonSpecial(ctx, ident, monday, sunday)
	if err != nil {
		return fmt.Errorf("load week bookings: %w", err)
	}

	var todayCount, weekCount int
	wantDouble := req.Kind == booking.KindDouble
	for _, b := range weekBookings {
		core, err := e.isCoreTime(rs, b.Date, b.StartHour)
		if err != nil || !core {
			continue
		}
		if (b.Kind == booking.KindDouble) != wantDouble {
			continue
		}
		weekCount++
		if b.Date == req.Date {
			todayCount++
		}
	}

	if wantDouble {
		if todayCount >= rs.DoubleMaxPerDay {
			return booking.Rejectf(booking.ReasonCoreTimeLimit,
				"Sie haben Ihr tägliches Kernzeit-Limit für Doppel erreicht (max. %d Std./Tag).", rs.DoubleMaxPerDay)
		}
		if weekCount >= rs.DoubleMaxPerWeek {
			return booking.Rejectf(booking.ReasonCoreTimeLimit,
				"Sie haben Ihr wöchentliches Kernzeit-Limit für Doppel erreicht (max. %d Std./Woche).", rs.DoubleMaxPerWeek)
		}
		return nil
	}

	if todayCount >= rs.SingleMaxPerDay {
		return booking.Rejectf(booking.ReasonCoreTimeLimit,
			"Sie haben Ihr tägliches Kernzeit-Limit für Einzel erreicht (max. %d Std./Tag).", rs.SingleMaxPerDay)
	}
	if weekCount >= rs.SingleMaxPerWeek {
		return booking.Rejectf(booking.ReasonCoreTimeLimit,
			"Sie haben Ihr wöchentliches Kernzeit-Limit für Einzel erreicht (max. %d Std./Woche).", rs.SingleMaxPerWeek)
	}
	return nil
}

func (e *Engine) isCoreTime(rs rules.Ruleset, date string, hour int) (bool, error) {
	wd, err := e.cal.ISOWeekday(date)
	if err != nil {
		return false, booking.Rejectf(booking.ReasonInvalidSpec, "ungültiges Datum %q", date)
	}
	return rs.IsCoreDay(wd) && hour >= rs.CoreTimeStart && hour < rs.CoreTimeEnd, nil
}
