package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/clients/yookassa"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/metrics"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Outcome результат обработки уведомления.
type Outcome string

const (
	// OutcomeIgnored событие не относится к успешной оплате.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRejected шлюз не подтвердил оплату.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDuplicate платёж уже был обработан ранее.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeProcessed платёж переведён в succeeded, шаги выдачи выполнены.
	OutcomeProcessed Outcome = "processed"
)

// WebhookResult итог обработки уведомления.
type WebhookResult struct {
	Outcome   Outcome `json:"outcome"`
	PaymentID string  `json:"payment_id,omitempty"`
	Fulfilment
}

// HandleNotification проверяет подпись и разбирает тело уведомления ЮKassa.
// Подпись проверяется только при заданном WebhookSecret.
func (s *Service) HandleNotification(ctx context.Context, body []byte, header http.Header) (*WebhookResult, error) {
	const op = "payment.HandleNotification"

	if s.settings.WebhookSecret != "" && !yookassa.VerifySignature(s.settings.WebhookSecret, body, header) {
		metrics.WebhookEvents.WithLabelValues("bad_signature").Inc()
		return nil, fmt.Errorf("%s: invalid signature: %w", op, models.ErrUnauthorized)
	}

	var n yookassa.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%s: decode notification: %v: %w", op, err, models.ErrValidation)
	}
	return s.ProcessWebhook(ctx, n)
}

// ProcessWebhook обрабатывает уведомление об оплате.
//
// Содержимое уведомления не считается доверенным: платёж перечитывается из
// ЮKassa и должен быть succeeded и paid. Локальная запись переводится
// pending -> succeeded условным UPDATE, поэтому повторное уведомление не
// приводит к повторной выдаче. Ошибка возвращается только если проверку в
// шлюзе или смену статуса выполнить не удалось: тогда шлюз должен повторить
// доставку.
func (s *Service) ProcessWebhook(ctx context.Context, n yookassa.Notification) (*WebhookResult, error) {
	const op = "payment.ProcessWebhook"
	log := s.log.With(slog.String("op", op), slog.String("event", n.Event), slog.String("payment_id", n.Object.ID))

	if n.Event != yookassa.EventPaymentSucceeded {
		log.Info("notification ignored")
		metrics.WebhookEvents.WithLabelValues(string(OutcomeIgnored)).Inc()
		return &WebhookResult{Outcome: OutcomeIgnored, PaymentID: n.Object.ID}, nil
	}
	if n.Object.ID == "" {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		return nil, fmt.Errorf("%s: payment id is empty: %w", op, models.ErrValidation)
	}

	remote, err := s.gateway.GetPayment(ctx, n.Object.ID)
	if err != nil {
		log.Error("failed to verify payment", sl.Err(err))
		metrics.WebhookEvents.WithLabelValues("verify_failed").Inc()
		return nil, fmt.Errorf("%s: verify: %w", op, err)
	}
	if remote.Status != yookassa.StatusSucceeded || !remote.Paid {
		log.Warn("payment not confirmed by gateway",
			slog.String("remote_status", remote.Status),
			slog.Bool("paid", remote.Paid),
		)
		metrics.WebhookEvents.WithLabelValues(string(OutcomeRejected)).Inc()
		return &WebhookResult{Outcome: OutcomeRejected, PaymentID: remote.ID}, nil
	}

	local, err := s.ensureLocal(ctx, remote)
	if err != nil {
		log.Error("failed to load local payment", sl.Err(err))
		metrics.WebhookEvents.WithLabelValues("store_failed").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	changed, err := s.repo.MarkPaymentSucceeded(ctx, remote.ID)
	if err != nil {
		log.Error("failed to mark payment succeeded", sl.Err(err))
		metrics.WebhookEvents.WithLabelValues("store_failed").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		log.Info("payment already processed")
		metrics.WebhookEvents.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return &WebhookResult{Outcome: OutcomeDuplicate, PaymentID: remote.ID}, nil
	}

	res := &WebhookResult{Outcome: OutcomeProcessed, PaymentID: remote.ID, Fulfilment: s.fulfil(ctx, local)}
	log.Info("payment processed", slog.Int("failed_steps", len(res.Errors)))
	metrics.WebhookEvents.WithLabelValues(string(OutcomeProcessed)).Inc()
	return res, nil
}

// ensureLocal возвращает локальную запись платежа. Если записи нет (платёж
// создан в обход API), она восстанавливается из метаданных шлюза.
func (s *Service) ensureLocal(ctx context.Context, remote *yookassa.Payment) (*models.Payment, error) {
	local, err := s.repo.GetPayment(ctx, remote.ID)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	p := paymentFromRemote(remote)
	if p.Username == "" {
		return nil, fmt.Errorf("payment %s has no username in metadata: %w", remote.ID, models.ErrValidation)
	}
	if _, err := s.repo.CreatePayment(ctx, p); err != nil && !errors.Is(err, models.ErrConflict) {
		return nil, err
	}
	s.log.Warn("local payment restored from gateway metadata",
		slog.String("payment_id", remote.ID),
		slog.String("username", p.Username),
	)
	return &p, nil
}

func paymentFromRemote(remote *yookassa.Payment) models.Payment {
	md := remote.Metadata
	p := models.Payment{
		PaymentID:    remote.ID,
		Username:     md["username"],
		Email:        md["email"],
		Amount:       remote.Amount.Value,
		Currency:     remote.Amount.Currency,
		Status:       models.PaymentStatusPending,
		PlanName:     md["plan_name"],
		Source:       models.PaymentSourceYooKassa,
		ReferralCode: md["referral_code"],
	}
	if id, err := strconv.ParseInt(md["plan_id"], 10, 64); err == nil && id > 0 {
		p.PlanID = &id
	}
	if days, err := strconv.Atoi(md["plan_days"]); err == nil {
		p.PlanDays = days
	}
	return p
}

// MarkSucceeded ручное подтверждение платежа администратором. Шаги выдачи
// выполняются так же, как при уведомлении; повторный вызов ничего не делает.
func (s *Service) MarkSucceeded(ctx context.Context, paymentID string) (*WebhookResult, error) {
	const op = "payment.MarkSucceeded"

	local, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	changed, err := s.repo.MarkPaymentSucceeded(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		return &WebhookResult{Outcome: OutcomeDuplicate, PaymentID: paymentID}, nil
	}
	s.log.Info("payment marked succeeded manually", slog.String("op", op), slog.String("payment_id", paymentID))
	return &WebhookResult{Outcome: OutcomeProcessed, PaymentID: paymentID, Fulfilment: s.fulfil(ctx, local)}, nil
}

// TelegramPurchase оплата через Telegram Payments.
type TelegramPurchase struct {
	ChargeID string
	Username string
	PlanID   int64
	// TotalAmount в минимальных единицах валюты (копейках).
	TotalAmount int
	Currency    string
}

// RecordTelegramPurchase сохраняет оплату из Telegram и выдаёт доступ.
// Telegram подтверждает оплату сам, поэтому запись сразу переводится в succeeded.
func (s *Service) RecordTelegramPurchase(ctx context.Context, tp TelegramPurchase) (*WebhookResult, error) {
	const op = "payment.RecordTelegramPurchase"
	if tp.ChargeID == "" || tp.Username == "" {
		return nil, fmt.Errorf("%s: charge id and username are required: %w", op, models.ErrValidation)
	}

	plan, err := s.plans.Get(ctx, tp.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	planID := plan.ID
	p := models.Payment{
		PaymentID: tp.ChargeID,
		Username:  tp.Username,
		Amount:    formatMinorUnits(tp.TotalAmount),
		Currency:  tp.Currency,
		Status:    models.PaymentStatusPending,
		PlanID:    &planID,
		PlanName:  plan.Name,
		PlanDays:  plan.Days,
		Source:    models.PaymentSourceTelegram,
	}
	if _, err := s.repo.CreatePayment(ctx, p); err != nil && !errors.Is(err, models.ErrConflict) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	changed, err := s.repo.MarkPaymentSucceeded(ctx, tp.ChargeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		return &WebhookResult{Outcome: OutcomeDuplicate, PaymentID: tp.ChargeID}, nil
	}
	s.log.Info("telegram purchase recorded",
		slog.String("op", op),
		slog.String("charge_id", tp.ChargeID),
		slog.String("username", tp.Username),
		slog.Int64("plan_id", plan.ID),
	)
	return &WebhookResult{Outcome: OutcomeProcessed, PaymentID: tp.ChargeID, Fulfilment: s.fulfil(ctx, &p)}, nil
}

func formatMinorUnits(v int) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

// ExpireAtOrZero удобство для логов и ответов бота.
func (r *WebhookResult) ExpireAtOrZero() time.Time {
	if r == nil || r.ExpireAt == nil {
		return time.Time{}
	}
	return *r.ExpireAt
}
