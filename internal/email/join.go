package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// JoinDetails describes a half-booking that a partner has completed.
type JoinDetails struct {
	Vorname         string
	Date            string
	Court           int
	Hour            int
	PartnerVorname  string
	PartnerNachname string
	PartnerComment  string
}

// BuildJoinEmail renders the notification sent to the booker when a partner
// joins their half-booking.
func BuildJoinEmail(d JoinDetails) (subject, body string) {
	subject = "Ihre Halbbuchung wurde vervollständigt"
	body = fmt.Sprintf(
		"Hallo %s,\n\n"+
			"Ihre Halbbuchung wurde vervollständigt!\n\n"+
			"Datum: %s\n"+
			"Uhrzeit: %d:00 Uhr\n"+
			"Platz: %d\n\n"+
			"Mitspieler: %s %s\n",
		d.Vorname, d.Date, d.Hour, d.Court, d.PartnerVorname, d.PartnerNachname,
	)
	if d.PartnerComment != "" {
		body += fmt.Sprintf("Kommentar: %s\n", d.PartnerComment)
	}
	body += "\nIhr Tennisclub"
	return subject, body
}

// SendJoinNotification delivers the join email in the background. The join
// itself already committed; delivery failures are logged, never surfaced.
func SendJoinNotification(logger zerolog.Logger, sender Sender, recipient string, d JoinDetails) {
	if sender == nil || recipient == "" {
		return
	}
	subject, body := BuildJoinEmail(d)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.Send(ctx, recipient, subject, body); err != nil {
			logger.Error().
				Err(err).
				Str("recipient", recipient).
				Str("date", d.Date).
				Msg("Failed to send join notification")
		}
	}()
}
