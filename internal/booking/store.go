package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/tcgruenwald/platzbuch/internal/db"
)

// Store persists bookings. The (date, court, start_hour) uniqueness invariant
// is enforced by the database, not here; Insert surfaces a constraint
// violation as ErrSlotConflict so callers can distinguish "slot just taken"
// from other write failures.
type Store struct {
	db db.DBTX
}

func NewStore(dbtx db.DBTX) *Store {
	return &Store{db: dbtx}
}

// WithTx returns a store bound to the given transaction.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

const bookingColumns = `id, court_number, date, start_hour, booking_type,
	booker_vorname, booker_nachname, booker_geburtsjahr, booker_email, booker_comment,
	partner_vorname, partner_nachname, partner_geburtsjahr, partner_comment,
	double_match_names, special_label, recurrence_type, recurrence_parent_id,
	recurrence_end_date, is_joined, created_by_admin, created_by_ip, created_at`

func (s *Store) Insert(ctx context.Context, b *Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CourtNumber, b.Date, b.StartHour, string(b.Kind),
		b.Booker.Vorname, b.Booker.Nachname, b.Booker.Geburtsjahr,
		nullString(b.BookerEmail), nullString(b.BookerComment),
		partnerField(b.Partner, func(p Identity) string { return p.Vorname }),
		partnerField(b.Partner, func(p Identity) string { return p.Nachname }),
		partnerYear(b.Partner),
		nullString(b.PartnerComment),
		nullString(b.DoubleMatchNames), nullString(b.SpecialLabel),
		nullString(b.RecurrenceType), nullString(b.RecurrenceParentID),
		nullString(b.RecurrenceEndDate),
		b.IsJoined, b.CreatedByAdmin, nullString(b.CreatedByIP), b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotConflict
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetSlot returns the booking occupying (date, court, hour), or nil if the
// slot is free.
func (s *Store) GetSlot(ctx context.Context, date string, court, hour int) (*Booking, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE date = ? AND court_number = ? AND start_hour = ?`,
		date, court, hour)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return b, nil
}

// Join completes an open half-booking in place: partner fields are set,
// is_joined flips and the kind becomes full. The WHERE clause re-checks the
// joinable state so two concurrent joiners cannot both succeed.
func (s *Store) Join(ctx context.Context, id string, partner Identity, comment string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET is_joined = 1,
		    booking_type = ?,
		    partner_vorname = ?,
		    partner_nachname = ?,
		    partner_geburtsjahr = ?,
		    partner_comment = ?
		WHERE id = ? AND booking_type = ? AND is_joined = 0`,
		string(KindFull),
		partner.Vorname, partner.Nachname, partner.Geburtsjahr,
		nullString(comment),
		id, string(KindHalf),
	)
	if err != nil {
		return fmt.Errorf("join booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("join booking: %w", err)
	}
	if affected == 0 {
		return Rejectf(ReasonNotJoinable, "Diese Buchung kann nicht beigetreten werden.")
	}
	return nil
}

func (s *Store) UpdateComment(ctx context.Context, id, comment string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET booker_comment = ? WHERE id = ?`,
		nullString(comment), id)
	if err != nil {
		return fmt.Errorf("update booking comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking comment: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete bookings: %w", err)
	}
	return res.RowsAffected()
}

// DeleteSeries removes every booking sharing the given recurrence parent.
func (s *Store) DeleteSeries(ctx context.Context, parentID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookings WHERE recurrence_parent_id = ?`, parentID)
	if err != nil {
		return 0, fmt.Errorf("delete series: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) ListByDate(ctx context.Context, date string) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE date = ?
		ORDER BY court_number, start_hour`, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings by date: %w", err)
	}
	return collectBookings(rows)
}

// ListByDatesNonSpecial returns all member bookings on any of the given
// dates. Used by the series generator for conflict detection.
func (s *Store) ListByDatesNonSpecial(ctx context.Context, dates []string) ([]Booking, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(dates)-1) + "?"
	args := make([]any, 0, len(dates)+1)
	for _, d := range dates {
		args = append(args, d)
	}
	args = append(args, string(KindSpecial))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE date IN (`+placeholders+`) AND booking_type != ?
		ORDER BY date, court_number, start_hour`, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings by dates: %w", err)
	}
	return collectBookings(rows)
}

// ListOpenHalf returns every half-booking still waiting for a partner.
func (s *Store) ListOpenHalf(ctx context.Context) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE booking_type = ? AND is_joined = 0
		ORDER BY date, start_hour`, string(KindHalf))
	if err != nil {
		return nil, fmt.Errorf("list open half-bookings: %w", err)
	}
	return collectBookings(rows)
}

// ListBookerWeekNonSpecial returns the booker's non-special bookings between
// fromDate and toDate inclusive. Name matching is case-insensitive.
func (s *Store) ListBookerWeekNonSpecial(ctx context.Context, ident Identity, fromDate, toDate string) ([]Booking, error) {
	ident = ident.Normalized()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE LOWER(booker_vorname) = LOWER(?)
		  AND LOWER(booker_nachname) = LOWER(?)
		  AND booker_geburtsjahr = ?
		  AND date >= ? AND date <= ?
		  AND booking_type != ?
		ORDER BY date, start_hour`,
		ident.Vorname, ident.Nachname, ident.Geburtsjahr,
		fromDate, toDate, string(KindSpecial))
	if err != nil {
		return nil, fmt.Errorf("list booker week: %w", err)
	}
	return collectBookings(rows)
}

// ListSeriesMemberIDs returns the ids of every booking in a series.
func (s *Store) ListSeriesMemberIDs(ctx context.Context, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE recurrence_parent_id = ?`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list series members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan series member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSpecialSeries returns all special bookings that belong to a series,
// ordered by date.
func (s *Store) ListSpecialSeries(ctx context.Context) ([]Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE booking_type = ? AND recurrence_parent_id IS NOT NULL
		ORDER BY date, court_number, start_hour`, string(KindSpecial))
	if err != nil {
		return nil, fmt.Errorf("list special series: %w", err)
	}
	return collectBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var (
		b                                  Booking
		kind                               string
		email, comment                     sql.NullString
		partnerV, partnerN, partnerComment sql.NullString
		partnerYear                        sql.NullInt64
		matchNames, label                  sql.NullString
		recType, recParent, recEnd         sql.NullString
		createdByIP                        sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.CourtNumber, &b.Date, &b.StartHour, &kind,
		&b.Booker.Vorname, &b.Booker.Nachname, &b.Booker.Geburtsjahr,
		&email, &comment,
		&partnerV, &partnerN, &partnerYear, &partnerComment,
		&matchNames, &label, &recType, &recParent, &recEnd,
		&b.IsJoined, &b.CreatedByAdmin, &createdByIP, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Kind = Kind(kind)
	b.BookerEmail = email.String
	b.BookerComment = comment.String
	if partnerV.Valid || partnerN.Valid {
		b.Partner = &Identity{
			Vorname:     partnerV.String,
			Nachname:    partnerN.String,
			Geburtsjahr: int(partnerYear.Int64),
		}
	}
	b.PartnerComment = partnerComment.String
	b.DoubleMatchNames = matchNames.String
	b.SpecialLabel = label.String
	b.RecurrenceType = recType.String
	b.RecurrenceParentID = recParent.String
	b.RecurrenceEndDate = recEnd.String
	b.CreatedByIP = createdByIP.String
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]Booking, error) {
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func partnerField(p *Identity, pick func(Identity) string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullString(pick(*p))
}

func partnerYear(p *Identity) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(p.Geburtsjahr), Valid: true}
}
