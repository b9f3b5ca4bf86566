package transport

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github/chapool/go-custody/internal/config"
)

type SMTPMailTransport struct {
	config config.Mailer
	addr   string
	auth   smtp.Auth
}

func NewSMTP(config config.Mailer) *SMTPMailTransport {
	s := &SMTPMailTransport{
		config: config,
		addr:   fmt.Sprintf("%s:%d", config.SMTPHost, config.SMTPPort),
	}

	// mailhog and local relays run without auth
	if config.SMTPUsername != "" {
		s.auth = smtp.PlainAuth("", config.SMTPUsername, config.SMTPPassword, config.SMTPHost)
	}

	return s
}

func (m *SMTPMailTransport) Send(mail *email.Email) error {
	return mail.Send(m.addr, m.auth)
}
