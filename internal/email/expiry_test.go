package email

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildExpiryEmail(t *testing.T) {
	subject, body := BuildExpiryEmail(ExpiryDetails{
		Vorname: "Anna",
		Date:    "2024-06-15",
		Court:   3,
		Hour:    18,
	})
	if subject == "" {
		t.Error("empty subject")
	}
	for _, want := range []string{"Anna", "2024-06-15", "18:00", "Platz 3"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestSendExpiryNotificationSkipsWithoutSenderOrRecipient(t *testing.T) {
	// Must not panic or spawn anything.
	SendExpiryNotification(zerolog.Nop(), nil, "anna@example.com", ExpiryDetails{})
	SendExpiryNotification(zerolog.Nop(), &SESClient{}, "", ExpiryDetails{})
}
