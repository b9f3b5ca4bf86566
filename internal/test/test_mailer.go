package test

import (
	"testing"

	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/mailer"
	"github/chapool/go-custody/internal/mailer/transport"
)

// NewTestMailer returns a mailer with ops recipients that records mails in the returned mock.
func NewTestMailer(t *testing.T) (*mailer.Mailer, *transport.MockMailTransport) {
	t.Helper()

	mock := transport.NewMock()
	return mailer.New(config.Mailer{
		DefaultSender: "custody-test@example.com",
		OpsRecipients: []string{"ops@example.com"},
	}, mock), mock
}
