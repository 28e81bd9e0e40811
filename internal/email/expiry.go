package email

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const sendTimeout = 10 * time.Second

// ExpiryDetails describes a half-booking removed by the expiry sweep.
type ExpiryDetails struct {
	Vorname string
	Date    string
	Court   int
	Hour    int
}

// BuildExpiryEmail renders the notification sent when an unjoined
// half-booking is removed.
func BuildExpiryEmail(d ExpiryDetails) (subject, body string) {
	subject = "Ihre halbe Platzbuchung ist abgelaufen"
	body = fmt.Sprintf(
		"Hallo %s,\n\n"+
			"leider hat sich für Ihre halbe Buchung am %s um %d:00 Uhr auf Platz %d "+
			"kein Mitspieler gefunden. Die Buchung wurde daher freigegeben.\n\n"+
			"Der Platz steht nun wieder allen Mitgliedern zur Verfügung.\n\n"+
			"Ihr Tennisclub",
		d.Vorname, d.Date, d.Hour, d.Court,
	)
	return subject, body
}

// SendExpiryNotification delivers the expiry email in the background. Delivery
// failures are logged, never surfaced: the sweep already removed the booking
// and must not depend on the mail provider.
func SendExpiryNotification(logger zerolog.Logger, sender Sender, recipient string, d ExpiryDetails) {
	if sender == nil || recipient == "" {
		return
	}
	subject, body := BuildExpiryEmail(d)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := sender.Send(ctx, recipient, subject, body); err != nil {
			logger.Error().
				Err(err).
				Str("recipient", recipient).
				Str("date", d.Date).
				Msg("Failed to send expiry notification")
		}
	}()
}
