// Package notify delivers one-time codes to users out of band.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugh/taskhub/pkg/config"
	mail "github.com/xhit/go-simple-mail/v2"
)

const codeSubject = "Your verification code"

type Mailer interface {
	SendCode(ctx context.Context, to, code string) error
}

// SMTPMailer opens a connection per message. Codes are rare enough that
// holding a keep-alive connection open is not worth it.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendCode(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	email := buildCodeMessage(m.cfg.From, to, code)
	if email.Error != nil {
		return fmt.Errorf("composing message: %w", email.Error)
	}

	server := mail.NewSMTPClient()
	server.Host = m.cfg.Host
	server.Port = m.cfg.Port
	server.Username = m.cfg.User
	server.Password = m.cfg.Password
	server.Encryption = mail.EncryptionSTARTTLS
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second
	if m.cfg.User == "" {
		server.Authentication = mail.AuthNone
		server.Encryption = mail.EncryptionNone
	}

	client, err := server.Connect()
	if err != nil {
		return fmt.Errorf("connecting to smtp %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	defer client.Close()

	if err := email.Send(client); err != nil {
		return fmt.Errorf("sending code: %w", err)
	}
	return nil
}

func buildCodeMessage(from, to, code string) *mail.Email {
	body := fmt.Sprintf(
		"<p>Your verification code is <strong>%s</strong>.</p><p>It expires shortly; if you did not sign up, ignore this message.</p>",
		code,
	)

	email := mail.NewMSG()
	email.SetFrom(from).AddTo(to).SetSubject(codeSubject).SetBody(mail.TextHTML, body)
	email.AddAlternative(mail.TextPlain, "Your verification code is "+code+".")
	return email
}

// LogMailer writes codes to the log instead of sending them. Used when SMTP
// is disabled, typically in development.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendCode(_ context.Context, to, code string) error {
	m.log.Info("verification code issued", "to", to)
	m.log.Debug("verification code", "to", to, "code", code)
	return nil
}

// NewMailer picks the SMTP mailer when enabled and the log mailer otherwise.
func NewMailer(cfg config.SMTPConfig, log *slog.Logger) Mailer {
	if cfg.Enabled {
		return NewSMTPMailer(cfg)
	}
	return NewLogMailer(log)
}
