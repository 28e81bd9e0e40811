// internal/api/bookings/handlers.go
package bookings

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tcgruenwald/platzbuch/internal/api/apiutil"
	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/email"
	"github.com/tcgruenwald/platzbuch/internal/engine"
	"github.com/tcgruenwald/platzbuch/internal/members"
	"github.com/tcgruenwald/platzbuch/internal/metrics"
	"github.com/tcgruenwald/platzbuch/internal/ratelimit"
	"github.com/tcgruenwald/platzbuch/internal/rules"
)

// Deps are the collaborators the booking handlers need.
type Deps struct {
	Bookings   *booking.Store
	Members    *members.Store
	Rules      *rules.Store
	Engine     *engine.Engine
	Limiter    *ratelimit.Limiter
	Sender     email.Sender
	TrustProxy bool
}

var (
	deps     Deps
	depsOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(d Deps) {
	depsOnce.Do(func() {
		deps = d
	})
}

type identityPayload struct {
	Vorname     string `json:"vorname"`
	Nachname    string `json:"nachname"`
	Geburtsjahr int    `json:"geburtsjahr"`
}

func (p identityPayload) validate() (booking.Identity, error) {
	vorname, err := apiutil.RequireString(p.Vorname, "vorname")
	if err != nil {
		return booking.Identity{}, err
	}
	nachname, err := apiutil.RequireString(p.Nachname, "nachname")
	if err != nil {
		return booking.Identity{}, err
	}
	if err := apiutil.RequireBirthYear(p.Geburtsjahr, "geburtsjahr"); err != nil {
		return booking.Identity{}, err
	}
	return booking.Identity{Vorname: vorname, Nachname: nachname, Geburtsjahr: p.Geburtsjahr}, nil
}

type createRequest struct {
	identityPayload
	CourtNumber      int    `json:"court_number"`
	Date             string `json:"date"`
	StartHour        int    `json:"start_hour"`
	BookingType      string `json:"booking_type"`
	Email            string `json:"email,omitempty"`
	Comment          string `json:"comment,omitempty"`
	DoubleMatchNames string `json:"double_match_names,omitempty"`
	// Honeypot. Humans never see this field; bots fill it.
	Website string `json:"website,omitempty"`
}

// POST /api/v1/bookings
func HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	clientIP := ratelimit.GetClientIP(r, deps.TrustProxy)

	// Bots that fill the hidden field get a convincing success and no row.
	if strings.TrimSpace(req.Website) != "" {
		logger.Warn().Str("ip", clientIP).Msg("Honeypot triggered on booking form")
		apiutil.WriteJSON(w, http.StatusCreated, map[string]string{
			"id":     uuid.NewString(),
			"status": "created",
		})
		return
	}

	if res := deps.Limiter.Check(clientIP); !res.Allowed {
		ratelimit.LogRateLimitExceeded(clientIP, res.RetryAfter)
		metrics.RateLimited.Inc()
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		apiutil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "Zu viele Buchungen. Bitte versuchen Sie es später erneut.",
		})
		return
	}

	ident, err := req.identityPayload.validate()
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	rs, err := deps.Rules.Load(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load booking rules")
		apiutil.WriteError(w, err)
		return
	}

	b, err := deps.Engine.Evaluate(r.Context(), rs, engine.Request{
		Court:            req.CourtNumber,
		Date:             strings.TrimSpace(req.Date),
		Hour:             req.StartHour,
		Kind:             booking.Kind(strings.TrimSpace(req.BookingType)),
		Identity:         ident,
		Email:            strings.TrimSpace(req.Email),
		Comment:          strings.TrimSpace(req.Comment),
		DoubleMatchNames: strings.TrimSpace(req.DoubleMatchNames),
		ClientIP:         clientIP,
	})
	if err != nil {
		countRejection(err)
		apiutil.WriteError(w, err)
		return
	}

	// The unique slot index decides the race; a conflict here means someone
	// else won between rule check and insert.
	if err := deps.Bookings.Insert(r.Context(), b); err != nil {
		countRejection(err)
		if !errors.Is(err, booking.ErrSlotConflict) {
			logger.Error().Err(err).Msg("Failed to insert booking")
		}
		apiutil.WriteError(w, err)
		return
	}

	deps.Limiter.Record(clientIP)
	metrics.BookingsCreated.WithLabelValues(string(b.Kind)).Inc()
	logger.Info().
		Str("booking_id", b.ID).
		Str("date", b.Date).
		Int("court", b.CourtNumber).
		Int("hour", b.StartHour).
		Str("booking_type", string(b.Kind)).
		Msg("Booking created")

	apiutil.WriteJSON(w, http.StatusCreated, map[string]string{
		"id":     b.ID,
		"status": "created",
	})
}

// gridEntry is the public view of one booking. Names are anonymized; only the
// half-booking comment is shown so members can find a partner.
type gridEntry struct {
	ID            string `json:"id"`
	CourtNumber   int    `json:"court_number"`
	Date          string `json:"date"`
	StartHour     int    `json:"start_hour"`
	BookingType   string `json:"booking_type"`
	BookerDisplay string `json:"booker_display,omitempty"`
	SpecialLabel  string `json:"special_label,omitempty"`
	IsJoined      bool   `json:"is_joined"`
	BookerComment string `json:"booker_comment,omitempty"`
	InSeries      bool   `json:"in_series,omitempty"`
}

// GET /api/v1/bookings?date=YYYY-MM-DD
func HandleDayGrid(w http.ResponseWriter, r *http.Request) {
	date, err := apiutil.DateFromQuery(r)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	list, err := deps.Bookings.ListByDate(r.Context(), date)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("date", date).Msg("Failed to list bookings")
		apiutil.WriteError(w, err)
		return
	}

	entries := make([]gridEntry, 0, len(list))
	for _, b := range list {
		e := gridEntry{
			ID:          b.ID,
			CourtNumber: b.CourtNumber,
			Date:        b.Date,
			StartHour:   b.StartHour,
			BookingType: string(b.Kind),
			IsJoined:    b.IsJoined,
			InSeries:    b.InSeries(),
		}
		if b.Kind == booking.KindSpecial {
			e.SpecialLabel = b.SpecialLabel
		} else {
			e.BookerDisplay = booking.AnonymizeName(b.Booker.Vorname) + " " + booking.AnonymizeName(b.Booker.Nachname)
			if b.Kind == booking.KindHalf && !b.IsJoined {
				e.BookerComment = b.BookerComment
			}
		}
		entries = append(entries, e)
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"date":     date,
		"bookings": entries,
	})
}

type joinRequest struct {
	identityPayload
	Comment string `json:"comment,omitempty"`
}

// POST /api/v1/bookings/{id}/join
func HandleJoinBooking(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	id := r.PathValue("id")

	var req joinRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	ident, err := req.identityPayload.validate()
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	target, err := deps.Bookings.GetByID(r.Context(), id)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	if err := deps.Engine.EvaluateJoin(r.Context(), target, ident); err != nil {
		countRejection(err)
		apiutil.WriteError(w, err)
		return
	}

	// The conditional update re-checks joinable state, so a concurrent
	// joiner loses cleanly.
	if err := deps.Bookings.Join(r.Context(), id, ident.Normalized(), strings.TrimSpace(req.Comment)); err != nil {
		countRejection(err)
		apiutil.WriteError(w, err)
		return
	}

	metrics.BookingsJoined.Inc()
	logger.Info().Str("booking_id", id).Msg("Half-booking joined")
	notifyBookerJoined(r, target, ident, strings.TrimSpace(req.Comment))
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// notifyBookerJoined emails the original booker that their half-booking found
// a partner. Gated on the notification rule and the address left on the
// booking; the join itself never waits on delivery.
func notifyBookerJoined(r *http.Request, target *booking.Booking, partner booking.Identity, partnerComment string) {
	logger := log.Ctx(r.Context())
	rs, err := deps.Rules.Load(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load booking rules for join notification")
		return
	}
	if !rs.EmailNotifications {
		return
	}
	email.SendJoinNotification(*logger, deps.Sender, target.BookerEmail, email.JoinDetails{
		Vorname:         target.Booker.Vorname,
		Date:            target.Date,
		Court:           target.CourtNumber,
		Hour:            target.StartHour,
		PartnerVorname:  partner.Vorname,
		PartnerNachname: partner.Nachname,
		PartnerComment:  partnerComment,
	})
}

type cancelRequest struct {
	identityPayload
	// ConfirmJoined must be set to cancel a booking that already has a
	// partner.
	ConfirmJoined bool `json:"confirm_joined,omitempty"`
}

// POST /api/v1/bookings/{id}/cancel
func HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	id := r.PathValue("id")

	var req cancelRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	ident, err := req.identityPayload.validate()
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	target, err := deps.Bookings.GetByID(r.Context(), id)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if err := deps.Engine.AuthorizeBooker(target, ident); err != nil {
		countRejection(err)
		apiutil.WriteError(w, err)
		return
	}

	if deps.Engine.CancelRequiresConfirmation(target) && !req.ConfirmJoined {
		partner := ""
		if target.Partner != nil {
			partner = booking.AnonymizeName(target.Partner.Vorname) + " " + booking.AnonymizeName(target.Partner.Nachname)
		}
		apiutil.WriteJSON(w, http.StatusConflict, map[string]string{
			"status":  "confirmation_required",
			"error":   "Ein Mitspieler ist bereits beigetreten. Bitte bestätigen Sie die Stornierung.",
			"partner": partner,
		})
		return
	}

	if err := deps.Bookings.Delete(r.Context(), id); err != nil {
		apiutil.WriteError(w, err)
		return
	}

	metrics.BookingsCancelled.Inc()
	logger.Info().Str("booking_id", id).Bool("was_joined", target.IsJoined).Msg("Booking cancelled")
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type commentRequest struct {
	identityPayload
	Comment string `json:"comment"`
}

// PATCH /api/v1/bookings/{id}/comment
func HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req commentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	ident, err := req.identityPayload.validate()
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	target, err := deps.Bookings.GetByID(r.Context(), id)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if target.Kind != booking.KindHalf {
		apiutil.WriteError(w, apiutil.HandlerError{
			Status:  http.StatusUnprocessableEntity,
			Message: "Nur halbe Buchungen haben einen Kommentar.",
		})
		return
	}
	if err := deps.Engine.AuthorizeBooker(target, ident); err != nil {
		countRejection(err)
		apiutil.WriteError(w, err)
		return
	}

	if err := deps.Bookings.UpdateComment(r.Context(), id, strings.TrimSpace(req.Comment)); err != nil {
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// POST /api/v1/bookings/{id}/info
//
// Full participant names are disclosed only to a verified participant; the
// public grid never carries them.
func HandleBookingInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req identityPayload
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	ident, err := req.validate()
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	target, err := deps.Bookings.GetByID(r.Context(), id)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if err := deps.Engine.AuthorizeParticipant(target, ident); err != nil {
		countRejection(err)
		apiutil.WriteError(w, err)
		return
	}

	payload := map[string]any{
		"id":             target.ID,
		"date":           target.Date,
		"court_number":   target.CourtNumber,
		"start_hour":     target.StartHour,
		"booking_type":   string(target.Kind),
		"booker":         target.Booker,
		"booker_comment": target.BookerComment,
	}
	if target.Partner != nil {
		payload["partner"] = *target.Partner
		payload["partner_comment"] = target.PartnerComment
	}
	if target.DoubleMatchNames != "" {
		payload["double_match_names"] = target.DoubleMatchNames
	}
	apiutil.WriteJSON(w, http.StatusOK, payload)
}

func countRejection(err error) {
	var rej *booking.RejectError
	if errors.As(err, &rej) {
		metrics.BookingsRejected.WithLabelValues(string(rej.Reason)).Inc()
	}
}
