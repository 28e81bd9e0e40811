package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tcgruenwald/platzbuch/internal/booking"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// RejectStatus maps a rule rejection to its HTTP status. Identity failures
// are 403, slot contention is 409 so clients know a retry with another slot
// makes sense, everything else is a plain 422 rule refusal.
func RejectStatus(reason booking.RejectReason) int {
	switch reason {
	case booking.ReasonNotAMember, booking.ReasonIdentityMismatch:
		return http.StatusForbidden
	case booking.ReasonSlotTaken, booking.ReasonSlotConflict, booking.ReasonPartialSeries:
		return http.StatusConflict
	case booking.ReasonInvalidSpec:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// WriteError renders any handler failure as a JSON error payload. Rejections
// carry their reason code; unexpected errors collapse to a generic 500.
func WriteError(w http.ResponseWriter, err error) {
	var rej *booking.RejectError
	if errors.As(err, &rej) {
		WriteJSON(w, RejectStatus(rej.Reason), map[string]string{
			"error":  rej.Message,
			"reason": string(rej.Reason),
		})
		return
	}
	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": fieldErr.Error()})
		return
	}
	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		WriteJSON(w, handlerErr.Status, map[string]string{"error": handlerErr.Message})
		return
	}
	if errors.Is(err, booking.ErrNotFound) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "Buchung nicht gefunden."})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Interner Fehler."})
}
