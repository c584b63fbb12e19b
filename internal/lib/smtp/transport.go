package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/config"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Transport подключается к SMTP-серверу.
type Transport struct {
	cfg config.Mail
	log *slog.Logger
}

type smtpClientWrapper struct {
	client *smtp.Client
}

func (w *smtpClientWrapper) Mail(from string) error       { return w.client.Mail(from) }
func (w *smtpClientWrapper) Rcpt(to string) error         { return w.client.Rcpt(to) }
func (w *smtpClientWrapper) Data() (io.WriteCloser, error) { return w.client.Data() }
func (w *smtpClientWrapper) Quit() error                  { return w.client.Quit() }
func (w *smtpClientWrapper) Close() error                 { return w.client.Close() }

// NewTransport создаёт Transport.
func NewTransport(cfg config.Mail, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Connect открывает соединение, включает STARTTLS и проходит PLAIN-аутентификацию.
func (t *Transport) Connect() (Client, error) {
	const op = "smtp.Connect"
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)

	conn, err := net.DialTimeout("tcp", addr, t.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}
	if t.cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: new client: %w", op, err)
	}

	fail := func(err error) (Client, error) {
		if closeErr := client.Close(); closeErr != nil {
			t.log.Warn("failed to close smtp client", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fail(errors.New("server does not support STARTTLS"))
	}
	if err = client.StartTLS(&tls.Config{ServerName: t.cfg.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
		return fail(fmt.Errorf("starttls: %w", err))
	}
	if err = client.Auth(smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)); err != nil {
		return fail(fmt.Errorf("auth: %w", err))
	}
	return &smtpClientWrapper{client: client}, nil
}

// Mailer отправляет письма через Dialer.
type Mailer struct {
	dialer Dialer
	from   string
	log    *slog.Logger
}

// NewMailer создаёт Mailer. from используется в MAIL FROM и заголовке From.
func NewMailer(dialer Dialer, from string, log *slog.Logger) *Mailer {
	return &Mailer{dialer: dialer, from: from, log: log}
}

// Send отправляет одно текстовое письмо.
func (m *Mailer) Send(ctx context.Context, email models.Email) error {
	const op = "smtp.Send"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	client, err := m.dialer.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = client.Close() }()

	if err = client.Mail(m.from); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err = client.Rcpt(email.To); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err = wc.Write([]byte(buildMessage(m.from, email))); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("%s: close data: %w", op, err)
	}
	if err = client.Quit(); err != nil {
		m.log.Warn("smtp quit failed", sl.Err(err))
	}
	return nil
}

func buildMessage(from string, email models.Email) string {
	return strings.Join([]string{
		"From: " + from,
		"To: " + email.To,
		"Subject: " + email.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		email.Body,
	}, "\r\n")
}
