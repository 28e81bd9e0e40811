// internal/api/admin/handlers.go
package admin

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tcgruenwald/platzbuch/internal/api/apiutil"
	"github.com/tcgruenwald/platzbuch/internal/booking"
	"github.com/tcgruenwald/platzbuch/internal/members"
	"github.com/tcgruenwald/platzbuch/internal/metrics"
	"github.com/tcgruenwald/platzbuch/internal/rules"
	"github.com/tcgruenwald/platzbuch/internal/series"
)

// Deps are the collaborators the admin handlers need.
type Deps struct {
	Bookings *booking.Store
	Members  *members.Store
	Rules    *rules.Store
	Series   *series.Generator
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

// GET /api/v1/admin/rules
func HandleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := deps.Rules.List(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list rules")
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"rules": list})
}

type ruleUpdateRequest struct {
	Value string `json:"value"`
}

// PUT /api/v1/admin/rules/{key}
func HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req ruleUpdateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	value, err := apiutil.RequireString(req.Value, "value")
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}

	if err := deps.Rules.Set(r.Context(), key, value); err != nil {
		// Validation failures carry the offending key and value.
		apiutil.WriteError(w, apiutil.HandlerError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Err:     err,
		})
		return
	}

	log.Ctx(r.Context()).Info().Str("rule_key", key).Str("rule_value", value).Msg("Booking rule updated")
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GET /api/v1/admin/members
func HandleListMembers(w http.ResponseWriter, r *http.Request) {
	list, err := deps.Members.List(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list members")
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"members": list})
}

type memberCreateRequest struct {
	Vorname     string `json:"vorname"`
	Nachname    string `json:"nachname"`
	Geburtsjahr int    `json:"geburtsjahr"`
	Email       string `json:"email,omitempty"`
}

// POST /api/v1/admin/members
func HandleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberCreateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	vorname, err := apiutil.RequireString(req.Vorname, "vorname")
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	nachname, err := apiutil.RequireString(req.Nachname, "nachname")
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if err := apiutil.RequireBirthYear(req.Geburtsjahr, "geburtsjahr"); err != nil {
		apiutil.WriteError(w, err)
		return
	}

	m := members.Member{
		Vorname:     vorname,
		Nachname:    nachname,
		Geburtsjahr: req.Geburtsjahr,
		Email:       strings.TrimSpace(req.Email),
	}
	if err := deps.Members.Create(r.Context(), &m); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to create member")
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, m)
}

// DELETE /api/v1/admin/members/{id}
func HandleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := deps.Members.Delete(r.Context(), id); err != nil {
		if err == members.ErrNotFound {
			apiutil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Mitglied nicht gefunden."})
			return
		}
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/v1/admin/series/preview
//
// Expands the spec and reports conflicts without writing anything, so the
// admin can inspect the outcome first.
func HandlePreviewSeries(w http.ResponseWriter, r *http.Request) {
	var spec series.Spec
	if err := apiutil.DecodeJSON(r, &spec); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	candidates, err := deps.Series.Expand(spec)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	conflicts, err := deps.Series.Conflicts(r.Context(), candidates)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(candidates),
		"conflicts": conflicts,
	})
}

// POST /api/v1/admin/series
func HandleCreateSeries(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var spec series.Spec
	if err := apiutil.DecodeJSON(r, &spec); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	candidates, err := deps.Series.Expand(spec)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	conflicts, err := deps.Series.Conflicts(r.Context(), candidates)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if len(conflicts) > 0 {
		apiutil.WriteJSON(w, http.StatusConflict, map[string]any{
			"error":     "Mitgliederbuchungen stehen der Serie im Weg.",
			"conflicts": conflicts,
		})
		return
	}

	if err := deps.Series.Commit(r.Context(), candidates, nil); err != nil {
		logger.Error().Err(err).Msg("Failed to commit series")
		apiutil.WriteError(w, err)
		return
	}

	metrics.SeriesCommitted.Inc()
	logger.Info().
		Str("parent_id", candidates[0].RecurrenceParentID).
		Int("count", len(candidates)).
		Msg("Special booking series created")
	apiutil.WriteJSON(w, http.StatusCreated, map[string]any{
		"recurrence_parent_id": candidates[0].RecurrenceParentID,
		"count":                len(candidates),
	})
}

// PUT /api/v1/admin/series/{id}
//
// Replaces the whole series: the old rows and the new ones swap in a single
// transaction.
func HandleReplaceSeries(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	parentID := r.PathValue("id")

	var spec series.Spec
	if err := apiutil.DecodeJSON(r, &spec); err != nil {
		apiutil.WriteError(w, apiutil.FieldError{Field: "body", Reason: "is not valid JSON"})
		return
	}

	candidates, conflicts, err := deps.Series.Replace(r.Context(), parentID, spec)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if len(conflicts) > 0 {
		apiutil.WriteJSON(w, http.StatusConflict, map[string]any{
			"error":     "Mitgliederbuchungen stehen der Serie im Weg.",
			"conflicts": conflicts,
		})
		return
	}

	metrics.SeriesCommitted.Inc()
	logger.Info().
		Str("old_parent_id", parentID).
		Str("parent_id", candidates[0].RecurrenceParentID).
		Int("count", len(candidates)).
		Msg("Special booking series replaced")
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"recurrence_parent_id": candidates[0].RecurrenceParentID,
		"count":                len(candidates),
	})
}

// GET /api/v1/admin/series
func HandleListSeries(w http.ResponseWriter, r *http.Request) {
	list, err := deps.Series.List(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list series")
		apiutil.WriteError(w, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"series": list})
}

// DELETE /api/v1/admin/series/{id}
func HandleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	parentID := r.PathValue("id")

	deleted, err := deps.Series.Delete(r.Context(), parentID)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	log.Ctx(r.Context()).Info().Str("parent_id", parentID).Int64("deleted", deleted).Msg("Series deleted")
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "deleted",
		"deleted": deleted,
	})
}

// DELETE /api/v1/admin/bookings/{id}
//
// Removes a single booking regardless of owner. The response flags series
// membership so the UI can offer deleting the rest of the series.
func HandleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	target, err := deps.Bookings.GetByID(r.Context(), id)
	if err != nil {
		apiutil.WriteError(w, err)
		return
	}
	if err := deps.Bookings.Delete(r.Context(), id); err != nil {
		apiutil.WriteError(w, err)
		return
	}

	log.Ctx(r.Context()).Info().
		Str("booking_id", id).
		Bool("in_series", target.InSeries()).
		Msg("Booking deleted by admin")
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":               "deleted",
		"in_series":            target.InSeries(),
		"recurrence_parent_id": target.RecurrenceParentID,
	})
}
