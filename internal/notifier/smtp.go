package notifier

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"

	"helpdesk/internal/models"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// SMTPNotifier delivers notifications as HTML mail through an SMTP relay.
type SMTPNotifier struct {
	config    models.MailerConfiguration
	templates *template.Template
}

func NewSMTPNotifier(config models.MailerConfiguration) *SMTPNotifier {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		zap.L().Fatal("Failed to parse mail templates", zap.Error(err))
	}
	return &SMTPNotifier{config: config, templates: templates}
}

func (s *SMTPNotifier) NotifyFromTemplate(
	to string,
	subject string,
	templateName string,
	data any,
) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.config.Sender); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body.String())

	opts := []mail.Option{mail.WithPort(s.config.Port)}
	if s.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
		)
	}
	if s.config.EnableTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.config.SkipVerifyTLS {
		opts = append(opts, mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}

	client, err := mail.NewClient(s.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err = client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	zap.L().Info("Notification sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("template", templateName),
	)

	return nil
}
