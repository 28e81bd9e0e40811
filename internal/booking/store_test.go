package booking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/testutil"
)

var (
	anna = booking.Identity{Vorname: "Anna", Nachname: "Schmidt", Geburtsjahr: 1985}
	ben  = booking.Identity{Vorname: "Ben", Nachname: "Weber", Geburtsjahr: 1992}
)

func newStore(t *testing.T) *booking.Store {
	t.Helper()
	return booking.NewStore(testutil.NewTestDB(t))
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	b := booking.Booking{
		ID: "b1", CourtNumber: 3, Date: "2024-01-05", StartHour: 18,
		Kind:          booking.KindHalf,
		Booker:        anna,
		BookerEmail:   "anna@example.com",
		BookerComment: "Suche Partner",
		CreatedByIP:   "203.0.113.1",
	}
	if err := store.Insert(ctx, &b); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if b.CreatedAt.IsZero() {
		t.Error("Insert must stamp CreatedAt")
	}

	got, err := store.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Kind != booking.KindHalf || got.Booker != anna {
		t.Errorf("got %+v", got)
	}
	if got.Partner != nil {
		t.Errorf("unjoined booking has partner %+v", got.Partner)
	}
	if got.BookerEmail != "anna@example.com" || got.BookerComment != "Suche Partner" {
		t.Errorf("got email %q comment %q", got.BookerEmail, got.BookerComment)
	}
	if got.CreatedByIP != "203.0.113.1" {
		t.Errorf("CreatedByIP = %q", got.CreatedByIP)
	}
}

func TestInsertEnforcesSlotUniqueness(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := booking.Booking{
		ID: "b1", CourtNumber: 1, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindFull, Booker: anna,
	}
	if err := store.Insert(ctx, &first); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	second := booking.Booking{
		ID: "b2", CourtNumber: 1, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindFull, Booker: ben,
	}
	err := store.Insert(ctx, &second)
	var rej *booking.RejectError
	if !errors.As(err, &rej) || rej.Reason != booking.ReasonSlotConflict {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	// Same hour on another court is fine.
	third := booking.Booking{
		ID: "b3", CourtNumber: 2, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindFull, Booker: ben,
	}
	if err := store.Insert(ctx, &third); err != nil {
		t.Fatalf("insert on free court: %v", err)
	}
}

func TestInsertRaceOnSameSlot(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	contenders := []booking.Booking{
		{ID: "race-1", CourtNumber: 1, Date: "2024-01-05", StartHour: 18, Kind: booking.KindFull, Booker: anna},
		{ID: "race-2", CourtNumber: 1, Date: "2024-01-05", StartHour: 18, Kind: booking.KindFull, Booker: ben},
	}
	start := make(chan struct{})
	results := make(chan error, len(contenders))
	for _, b := range contenders {
		b := b
		go func() {
			<-start
			results <- store.Insert(ctx, &b)
		}()
	}
	close(start)

	var won, lost int
	for range contenders {
		err := <-results
		if err == nil {
			won++
			continue
		}
		var rej *booking.RejectError
		if !errors.As(err, &rej) || rej.Reason != booking.ReasonSlotConflict {
			t.Fatalf("unexpected error: %v", err)
		}
		lost++
	}
	if won != 1 || lost != 1 {
		t.Errorf("winners = %d, conflicts = %d, want exactly one of each", won, lost)
	}

	// The unique index decided the race; exactly one row exists.
	list, err := store.ListByDate(ctx, "2024-01-05")
	if err != nil {
		t.Fatalf("ListByDate: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("persisted rows = %d, want 1", len(list))
	}
}

func TestJoinIsConditional(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	half := booking.Booking{
		ID: "b1", CourtNumber: 1, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindHalf, Booker: anna,
	}
	if err := store.Insert(ctx, &half); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := store.Join(ctx, "b1", ben, "Bin dabei"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	got, _ := store.GetByID(ctx, "b1")
	if !got.IsJoined || got.Kind != booking.KindFull {
		t.Errorf("after join: joined=%v kind=%s", got.IsJoined, got.Kind)
	}
	if got.Partner == nil || !got.Partner.Matches(ben) {
		t.Errorf("partner = %+v", got.Partner)
	}
	if got.PartnerComment != "Bin dabei" {
		t.Errorf("partner comment = %q", got.PartnerComment)
	}

	// The losing concurrent joiner hits the guarded update.
	err := store.Join(ctx, "b1", anna, "")
	var rej *booking.RejectError
	if !errors.As(err, &rej) || rej.Reason != booking.ReasonNotJoinable {
		t.Errorf("second join: %v", err)
	}
}

func TestListBookerWeekNonSpecial(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rows := []booking.Booking{
		{ID: "in1", CourtNumber: 1, Date: "2024-01-01", StartHour: 17, Kind: booking.KindFull, Booker: anna},
		{ID: "in2", CourtNumber: 1, Date: "2024-01-07", StartHour: 18, Kind: booking.KindHalf, Booker: anna},
		{ID: "out-date", CourtNumber: 1, Date: "2024-01-08", StartHour: 17, Kind: booking.KindFull, Booker: anna},
		{ID: "out-booker", CourtNumber: 2, Date: "2024-01-01", StartHour: 17, Kind: booking.KindFull, Booker: ben},
		{ID: "out-special", CourtNumber: 3, Date: "2024-01-01", StartHour: 17, Kind: booking.KindSpecial,
			Booker: booking.Identity{Vorname: "Admin", Nachname: "System", Geburtsjahr: 2000}},
	}
	for _, b := range rows {
		b := b
		if err := store.Insert(ctx, &b); err != nil {
			t.Fatalf("insert %s: %v", b.ID, err)
		}
	}

	// Case-insensitive booker match.
	got, err := store.ListBookerWeekNonSpecial(ctx,
		booking.Identity{Vorname: "ANNA", Nachname: "schmidt", Geburtsjahr: 1985},
		"2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("ListBookerWeekNonSpecial: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d bookings, want 2: %+v", len(got), got)
	}
	if got[0].ID != "in1" || got[1].ID != "in2" {
		t.Errorf("ids = %s, %s", got[0].ID, got[1].ID)
	}
}

func TestListOpenHalf(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	open := booking.Booking{
		ID: "open", CourtNumber: 1, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindHalf, Booker: anna,
	}
	joined := booking.Booking{
		ID: "joined", CourtNumber: 2, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindHalf, Booker: anna, IsJoined: true,
	}
	full := booking.Booking{
		ID: "full", CourtNumber: 3, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindFull, Booker: ben,
	}
	for _, b := range []booking.Booking{open, joined, full} {
		b := b
		if err := store.Insert(ctx, &b); err != nil {
			t.Fatalf("insert %s: %v", b.ID, err)
		}
	}

	got, err := store.ListOpenHalf(ctx)
	if err != nil {
		t.Fatalf("ListOpenHalf: %v", err)
	}
	if len(got) != 1 || got[0].ID != "open" {
		t.Errorf("got %+v", got)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	b := booking.Booking{
		ID: "b1", CourtNumber: 1, Date: "2024-01-05", StartHour: 18,
		Kind: booking.KindFull, Booker: anna,
	}
	if err := store.Insert(ctx, &b); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Delete(ctx, "b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "b1"); !errors.Is(err, booking.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if _, err := store.GetByID(ctx, "b1"); !errors.Is(err, booking.ErrNotFound) {
		t.Errorf("GetByID after delete: %v", err)
	}
	if err := store.UpdateComment(ctx, "b1", "x"); !errors.Is(err, booking.ErrNotFound) {
		t.Errorf("UpdateComment after delete: %v", err)
	}
}

func TestAnonymizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Anna", "A***"},
		{"  anna  ", "A***"},
		{"Özil", "Ö***"},
		{"", "****"},
		{"   ", "****"},
	}
	for _, tc := range tests {
		if got := booking.AnonymizeName(tc.in); got != tc.want {
			t.Errorf("AnonymizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
