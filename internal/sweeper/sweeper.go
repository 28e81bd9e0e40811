// Package sweeper removes half-bookings that never found a partner. A slot
// held by an unjoined half-booking too close to its start time is worthless
// to everyone, so the sweep frees it for walk-in use.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/clubtime"
	"github.com/tcgruenwald/platzbuch/internal/email"
	"github.com/tcgruenwald/platzbuch/internal/members"
	"github.com/tcgruenwald/platzbuch/internal/metrics"
	"github.com/tcgruenwald/platzbuch/internal/rules"
	"github.com/tcgruenwald/platzbuch/internal/scheduler"
)

const jobTimeout = 2 * time.Minute

// Result summarizes one sweep run.
type Result struct {
	Deleted  int
	Notified int
}

// Sweeper deletes expired unjoined half-bookings.
type Sweeper struct {
	bookings *booking.Store
	rules    *rules.Store
	members  *members.Store
	cal      clubtime.Calendar
	clock    clubtime.Clock
	sender   email.Sender
}

func New(bookings *booking.Store, ruleStore *rules.Store, memberStore *members.Store, cal clubtime.Calendar, clock clubtime.Clock, sender email.Sender) *Sweeper {
	if clock == nil {
		clock = clubtime.RealClock()
	}
	return &Sweeper{
		bookings: bookings,
		rules:    ruleStore,
		members:  memberStore,
		cal:      cal,
		clock:    clock,
		sender:   sender,
	}
}

// Sweep deletes every unjoined half-booking whose start is closer than the
// configured expiry horizon. The cutoff is computed against the slot's
// club-local start instant, so it stays correct across DST changes. Running
// the sweep twice in a row is harmless.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	logger := log.Ctx(ctx)

	rs, err := s.rules.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load rules: %w", err)
	}

	open, err := s.bookings.ListOpenHalf(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list open half-bookings: %w", err)
	}

	now := s.clock.Now()
	var expired []booking.Booking
	for _, b := range open {
		hoursUntil, err := s.cal.HoursUntil(now, b.Date, b.StartHour)
		if err != nil {
			logger.Error().Err(err).Str("booking_id", b.ID).Msg("Skipping half-booking with unparsable date")
			continue
		}
		if hoursUntil < float64(rs.HalfBookingExpiryHours) {
			expired = append(expired, b)
		}
	}
	if len(expired) == 0 {
		return Result{}, nil
	}

	ids := make([]string, len(expired))
	for i, b := range expired {
		ids[i] = b.ID
	}
	deleted, err := s.bookings.DeleteByIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("delete expired half-bookings: %w", err)
	}

	result := Result{Deleted: int(deleted)}
	for _, b := range expired {
		logger.Info().
			Str("booking_id", b.ID).
			Str("date", b.Date).
			Int("court", b.CourtNumber).
			Int("hour", b.StartHour).
			Msg("Expired half-booking removed")

		if !rs.EmailNotifications || s.sender == nil {
			continue
		}
		recipient := s.resolveRecipient(ctx, b)
		if recipient == "" {
			continue
		}
		email.SendExpiryNotification(*logger, s.sender, recipient, email.ExpiryDetails{
			Vorname: b.Booker.Vorname,
			Date:    b.Date,
			Court:   b.CourtNumber,
			Hour:    b.StartHour,
		})
		result.Notified++
	}
	return result, nil
}

// resolveRecipient prefers the email given on the booking form and falls back
// to the roster.
func (s *Sweeper) resolveRecipient(ctx context.Context, b booking.Booking) string {
	if b.BookerEmail != "" {
		return b.BookerEmail
	}
	addr, err := s.members.FindEmail(ctx, b.Booker.Vorname, b.Booker.Nachname, b.Booker.Geburtsjahr)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("booking_id", b.ID).Msg("Failed to look up booker email")
		return ""
	}
	return addr
}

// RegisterJob schedules the sweep on the app scheduler.
func RegisterJob(s *Sweeper, cronExpr string) error {
	jobName := "half_booking_expiry"
	jobLogger := log.With().
		Str("component", "half_booking_expiry_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := scheduler.AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		result, err := s.Sweep(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Half-booking expiry sweep failed")
			return
		}
		if result.Deleted > 0 {
			metrics.SweeperDeleted.Add(float64(result.Deleted))
			jobLogger.Info().
				Int("deleted", result.Deleted).
				Int("notified", result.Notified).
				Msg("Half-booking expiry sweep completed")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add half-booking expiry job: %w", err)
	}

	jobLogger.Info().Msg("Half-booking expiry job registered")
	return nil
}
