package email

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildJoinEmail(t *testing.T) {
	subject, body := BuildJoinEmail(JoinDetails{
		Vorname:         "Anna",
		Date:            "2024-06-15",
		Court:           3,
		Hour:            18,
		PartnerVorname:  "Ben",
		PartnerNachname: "Weber",
		PartnerComment:  "Bin dabei",
	})
	if subject == "" {
		t.Error("empty subject")
	}
	for _, want := range []string{"Anna", "2024-06-15", "18:00", "Platz: 3", "Ben Weber", "Bin dabei"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBuildJoinEmailWithoutComment(t *testing.T) {
	_, body := BuildJoinEmail(JoinDetails{
		Vorname: "Anna", Date: "2024-06-15", Court: 3, Hour: 18,
		PartnerVorname: "Ben", PartnerNachname: "Weber",
	})
	if strings.Contains(body, "Kommentar") {
		t.Errorf("body carries an empty comment line:\n%s", body)
	}
}

func TestSendJoinNotificationSkipsWithoutSenderOrRecipient(t *testing.T) {
	// Must not panic or spawn anything.
	SendJoinNotification(zerolog.Nop(), nil, "anna@example.com", JoinDetails{})
	SendJoinNotification(zerolog.Nop(), &SESClient{}, "", JoinDetails{})
}
