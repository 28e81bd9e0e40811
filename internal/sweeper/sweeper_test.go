package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/clubtime"
	"github.com/tcgruenwald/platzbuch/internal/members"
	"github.com/tcgruenwald/platzbuch/internal/rules"
	"github.com/tcgruenwald/platzbuch/internal/testutil"
)

var berlin = clubtime.MustCalendar("Europe/Berlin")

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type captureSender struct {
	mu    sync.Mutex
	sent  []string
	gotCh chan struct{}
}

func newCaptureSender() *captureSender {
	return &captureSender{gotCh: make(chan struct{}, 16)}
}

func (c *captureSender) Send(_ context.Context, recipient, _, _ string) error {
	c.mu.Lock()
	c.sent = append(c.sent, recipient)
	c.mu.Unlock()
	c.gotCh <- struct{}{}
	return nil
}

func (c *captureSender) recipients() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func halfBooking(id, date string, hour int, email string) booking.Booking {
	return booking.Booking{
		ID: id, CourtNumber: 1, Date: date, StartHour: hour,
		Kind:        booking.KindHalf,
		Booker:      booking.Identity{Vorname: "Anna", Nachname: "Schmidt", Geburtsjahr: 1985},
		BookerEmail: email,
	}
}

func TestSweepDeletesOnlyExpiredUnjoinedHalves(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := booking.NewStore(database)
	ctx := context.Background()

	// Saturday 08:00 club time; default expiry horizon is 12 hours.
	clock := fixedClock{t: time.Date(2024, 6, 15, 8, 0, 0, 0, berlin.Location())}

	expiring := halfBooking("expiring", "2024-06-15", 10, "")
	keeper := halfBooking("keeper", "2024-06-16", 10, "")
	joined := halfBooking("joined", "2024-06-15", 11, "")
	joined.IsJoined = true
	joined.Kind = booking.KindFull
	full := booking.Booking{
		ID: "full", CourtNumber: 2, Date: "2024-06-15", StartHour: 10,
		Kind:   booking.KindFull,
		Booker: booking.Identity{Vorname: "Ben", Nachname: "Weber", Geburtsjahr: 1992},
	}
	for _, b := range []booking.Booking{expiring, keeper, joined, full} {
		b := b
		if err := store.Insert(ctx, &b); err != nil {
			t.Fatalf("insert %s: %v", b.ID, err)
		}
	}

	s := New(store, rules.NewStore(database), members.NewStore(database), berlin, clock, nil)
	result, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}

	if _, err := store.GetByID(ctx, "expiring"); err != booking.ErrNotFound {
		t.Error("expired half-booking should be gone")
	}
	for _, id := range []string{"keeper", "joined", "full"} {
		if _, err := store.GetByID(ctx, id); err != nil {
			t.Errorf("booking %s should survive the sweep: %v", id, err)
		}
	}

	// A second run must be a no-op.
	result, err = s.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("second sweep Deleted = %d, want 0", result.Deleted)
	}
}

func TestSweepNotifiesWhenEnabled(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := booking.NewStore(database)
	ruleStore := rules.NewStore(database)
	ctx := context.Background()

	if err := ruleStore.Set(ctx, rules.KeyEmailNotifications, "true"); err != nil {
		t.Fatalf("enable notifications: %v", err)
	}

	clock := fixedClock{t: time.Date(2024, 6, 15, 8, 0, 0, 0, berlin.Location())}
	expiring := halfBooking("expiring", "2024-06-15", 10, "anna@example.com")
	if err := store.Insert(ctx, &expiring); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sender := newCaptureSender()
	s := New(store, ruleStore, members.NewStore(database), berlin, clock, sender)

	result, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Notified != 1 {
		t.Errorf("Notified = %d, want 1", result.Notified)
	}

	select {
	case <-sender.gotCh:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never dispatched")
	}
	if got := sender.recipients(); len(got) != 1 || got[0] != "anna@example.com" {
		t.Errorf("recipients = %v", got)
	}
}

func TestSweepFallsBackToRosterEmail(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := booking.NewStore(database)
	ruleStore := rules.NewStore(database)
	memberStore := members.NewStore(database)
	ctx := context.Background()

	if err := ruleStore.Set(ctx, rules.KeyEmailNotifications, "true"); err != nil {
		t.Fatalf("enable notifications: %v", err)
	}
	if err := memberStore.Create(ctx, &members.Member{
		Vorname: "Anna", Nachname: "Schmidt", Geburtsjahr: 1985,
		Email: "roster@example.com",
	}); err != nil {
		t.Fatalf("create member: %v", err)
	}

	clock := fixedClock{t: time.Date(2024, 6, 15, 8, 0, 0, 0, berlin.Location())}
	expiring := halfBooking("expiring", "2024-06-15", 10, "")
	if err := store.Insert(ctx, &expiring); err != nil {
		t.Fatalf("insert: %v", err)
	}

	sender := newCaptureSender()
	s := New(store, ruleStore, memberStore, berlin, clock, sender)

	if _, err := s.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	select {
	case <-sender.gotCh:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never dispatched")
	}
	if got := sender.recipients(); len(got) != 1 || got[0] != "roster@example.com" {
		t.Errorf("recipients = %v", got)
	}
}
