package mailer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/jordan-wright/email"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/config"
	"github/chapool/go-custody/internal/mailer/transport"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrNoRecipients = errors.New("no ops recipients configured")

var anomalyTemplate = template.Must(template.New("anomaly").Parse(`Custody anomaly: {{.Title}}

{{range .Fields}}{{.Key}}: {{.Value}}
{{end}}
{{.Message}}
`))

// Field is one line of an ops mail.
type Field struct {
	Key   string
	Value string
}

// Anomaly is an event ops has to look at manually.
type Anomaly struct {
	Kind    string
	Message string
	Fields  []Field
}

// Title is the human readable kind, "reorg_after_sweep" becomes "Reorg After Sweep".
func (a Anomaly) Title() string {
	return cases.Title(language.English).String(a.words())
}

func (a Anomaly) words() string {
	return strings.ReplaceAll(a.Kind, "_", " ")
}

type Mailer struct {
	Config    config.Mailer
	Transport transport.MailTransporter
}

func New(config config.Mailer, transport transport.MailTransporter) *Mailer {
	return &Mailer{
		Config:    config,
		Transport: transport,
	}
}

// SendOpsAnomaly mails a to every configured ops recipient.
func (m *Mailer) SendOpsAnomaly(ctx context.Context, a Anomaly) error {
	if len(m.Config.OpsRecipients) == 0 {
		return ErrNoRecipients
	}

	var buf bytes.Buffer
	if err := anomalyTemplate.Execute(&buf, a); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to execute anomaly template")
		return errors.Wrap(err, "failed to render anomaly mail")
	}

	e := email.NewEmail()
	e.From = m.Config.DefaultSender
	e.To = m.Config.OpsRecipients
	e.Subject = fmt.Sprintf("[custody] %s", a.words())
	e.Text = buf.Bytes()

	if err := m.Transport.Send(e); err != nil {
		return errors.Wrap(err, "failed to send anomaly mail")
	}

	return nil
}
