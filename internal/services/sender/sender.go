// Package sender отправляет письма по заданиям из очереди уведомлений.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Mailer транспорт отправки письма (HTTP API провайдера или SMTP).
type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

// Service формирует и отправляет письма.
type Service struct {
	mailer   Mailer
	log      *slog.Logger
	siteName string
}

// New создаёт Service.
func New(log *slog.Logger, mailer Mailer, siteName string) *Service {
	if siteName == "" {
		siteName = "VPN"
	}
	return &Service{mailer: mailer, log: log, siteName: siteName}
}

// PaymentHandler возвращает обработчик сообщений очереди notification.payment.
func (s *Service) PaymentHandler(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		return s.SendPaymentConfirmation(ctx, body)
	}
}

// SendPaymentConfirmation отправляет письмо об успешной оплате.
// Сообщение без адреса пропускается без ошибки, чтобы не гонять его по повторам.
func (s *Service) SendPaymentConfirmation(ctx context.Context, body []byte) error {
	const op = "sender.SendPaymentConfirmation"
	log := s.log.With(slog.String("op", op))

	var msg models.PaymentNotification
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: unmarshal: %w", op, err)
	}
	if strings.TrimSpace(msg.Email) == "" {
		log.Warn("message without email skipped", slog.String("payment_id", msg.PaymentID))
		return nil
	}

	email := models.Email{
		To:      msg.Email,
		Subject: fmt.Sprintf("%s: оплата получена", s.siteName),
		Body:    paymentBody(msg),
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		log.Error("failed to send email", slog.String("to", msg.Email), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("email sent", slog.String("to", msg.Email), slog.String("payment_id", msg.PaymentID))
	return nil
}

func paymentBody(msg models.PaymentNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Здравствуйте, %s!\n\n", msg.Username)
	fmt.Fprintf(&b, "Оплата %s %s по тарифу «%s» (%d дн.) получена.\n", msg.Amount, msg.Currency, msg.PlanName, msg.PlanDays)
	if msg.ExpireAt != nil {
		fmt.Fprintf(&b, "Доступ к VPN активен до %s (UTC).\n", msg.ExpireAt.UTC().Format("02.01.2006 15:04"))
	} else {
		b.WriteString("Доступ будет активирован в ближайшее время.\n")
	}
	fmt.Fprintf(&b, "\nНомер платежа: %s\n", msg.PaymentID)
	return b.String()
}
