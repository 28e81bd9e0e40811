package booking

import "fmt"

// RejectReason classifies why a booking request was refused.
type RejectReason string

const (
	ReasonNotAMember           RejectReason = "not_a_member"
	ReasonOutsideBookingWindow RejectReason = "outside_booking_window"
	ReasonCoreTimeLimit        RejectReason = "core_time_limit_exceeded"
	ReasonSlotTaken            RejectReason = "slot_taken"
	ReasonSlotConflict         RejectReason = "slot_conflict"
	ReasonIdentityMismatch     RejectReason = "identity_mismatch"
	ReasonCannotJoinOwn        RejectReason = "cannot_join_own_booking"
	ReasonNotJoinable          RejectReason = "not_joinable"
	ReasonInvalidSpec          RejectReason = "invalid_spec"
	ReasonPartialSeries        RejectReason = "partial_series_failure"
)

// RejectError is a terminal, human-readable refusal of a request. Rule
// rejections are never retried; ReasonSlotConflict is the one condition the
// user may immediately retry against a different slot.
type RejectError struct {
	Reason  RejectReason
	Message string
	Err     error
}

func (e *RejectError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Reason)
}

func (e *RejectError) Unwrap() error { return e.Err }

// Rejectf builds a RejectError with a formatted message.
func Rejectf(reason RejectReason, format string, args ...any) *RejectError {
	return &RejectError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrSlotConflict is the authoritative write-time outcome when the store's
// uniqueness constraint fires: someone else just booked the slot.
var ErrSlotConflict = &RejectError{
	Reason:  ReasonSlotConflict,
	Message: "Der Platz wurde soeben anderweitig gebucht.",
}

// ErrNotFound is returned when a booking id does not resolve.
var ErrNotFound = fmt.Errorf("booking not found")
