// Package payment создаёт платежи ЮKassa и обрабатывает уведомления об оплате.
//
// После подтверждённой оплаты выполняются шаги выдачи: продление доступа в
// панели VPN, активация реферального приглашения и постановка письма в очередь.
// Каждый шаг выполняется по возможности: сбой одного шага логируется и не
// отменяет остальные, а статус платежа уже зафиксирован.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/clients/yookassa"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Repository хранилище платежей.
type Repository interface {
	CreatePayment(ctx context.Context, p models.Payment) (int64, error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	MarkPaymentSucceeded(ctx context.Context, paymentID string) (bool, error)
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	DeletePaymentsByUsername(ctx context.Context, username string) (int64, error)
}

// PlanRepository чтение тарифов.
type PlanRepository interface {
	Get(ctx context.Context, id int64) (*models.Plan, error)
}

// Gateway платёжный шлюз.
type Gateway interface {
	CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest, idempotenceKey string) (*yookassa.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*yookassa.Payment, error)
}

// Provisioner выдача доступа к VPN.
type Provisioner interface {
	Provision(ctx context.Context, username string, plan models.ProvisionPlan) (time.Time, error)
}

// ReferralActivator активация приглашения после оплаты.
type ReferralActivator interface {
	ActivateForPayment(ctx context.Context, referred, code string) (bool, error)
}

// Publisher очередь заданий на отправку писем.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Settings параметры платежей.
type Settings struct {
	Currency      string
	ReturnURL     string
	WebhookSecret string
	RoutingKey    string
}

// Service платежи.
type Service struct {
	log       *slog.Logger
	repo      Repository
	plans     PlanRepository
	gateway   Gateway
	vpn       Provisioner
	referrals ReferralActivator
	publisher Publisher
	settings  Settings
}

// New создаёт Service. publisher может быть nil: письма тогда не отправляются.
func New(
	log *slog.Logger,
	repo Repository,
	plans PlanRepository,
	gateway Gateway,
	vpn Provisioner,
	referrals ReferralActivator,
	publisher Publisher,
	settings Settings,
) *Service {
	if settings.Currency == "" {
		settings.Currency = "RUB"
	}
	if settings.RoutingKey == "" {
		settings.RoutingKey = "payment"
	}
	return &Service{
		log:       log,
		repo:      repo,
		plans:     plans,
		gateway:   gateway,
		vpn:       vpn,
		referrals: referrals,
		publisher: publisher,
		settings:  settings,
	}
}

// CreateRequest запрос покупки тарифа на сайте.
type CreateRequest struct {
	Username     string
	Email        string
	PlanID       int64
	ReferralCode string
}

// CreateResult созданный платёж.
type CreateResult struct {
	PaymentID       string `json:"payment_id"`
	ConfirmationURL string `json:"confirmation_url"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

// CreatePayment создаёт платёж в ЮKassa с redirect-подтверждением и сохраняет его в статусе pending.
func (s *Service) CreatePayment(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	const op = "payment.CreatePayment"
	if req.Username == "" || req.PlanID <= 0 {
		return nil, fmt.Errorf("%s: username and plan_id are required: %w", op, models.ErrValidation)
	}

	plan, err := s.plans.Get(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%s: plan %d is not available: %w", op, plan.ID, models.ErrValidation)
	}

	metadata := map[string]string{
		"username":  req.Username,
		"email":     req.Email,
		"plan_id":   strconv.FormatInt(plan.ID, 10),
		"plan_name": plan.Name,
		"plan_days": strconv.Itoa(plan.Days),
	}
	referralCode := strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if referralCode != "" {
		metadata["referral_code"] = referralCode
	}

	remote, err := s.gateway.CreatePayment(ctx, yookassa.CreatePaymentRequest{
		Amount:       yookassa.Amount{Value: plan.Price, Currency: s.settings.Currency},
		Confirmation: yookassa.Confirmation{Type: "redirect", ReturnURL: s.settings.ReturnURL},
		Capture:      true,
		Description:  fmt.Sprintf("VPN %s, %d дн.", plan.Name, plan.Days),
		Metadata:     metadata,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	planID := plan.ID
	if _, err = s.repo.CreatePayment(ctx, models.Payment{
		PaymentID:    remote.ID,
		Username:     req.Username,
		Email:        req.Email,
		Amount:       plan.Price,
		Currency:     s.settings.Currency,
		Status:       models.PaymentStatusPending,
		PlanID:       &planID,
		PlanName:     plan.Name,
		PlanDays:     plan.Days,
		Source:       models.PaymentSourceYooKassa,
		ReferralCode: referralCode,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("payment created",
		slog.String("op", op),
		slog.String("payment_id", remote.ID),
		slog.String("username", req.Username),
		slog.Int64("plan_id", plan.ID),
	)
	return &CreateResult{
		PaymentID:       remote.ID,
		ConfirmationURL: remote.ConfirmationURL(),
		Amount:          plan.Price,
		Currency:        s.settings.Currency,
	}, nil
}

// Status возвращает локальную запись платежа.
func (s *Service) Status(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("payment.Status: %w", err)
	}
	return p, nil
}

// List возвращает платежи по фильтру.
func (s *Service) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	payments, err := s.repo.ListPayments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("payment.List: %w", err)
	}
	return payments, nil
}

// DeleteHistory удаляет историю платежей пользователя.
func (s *Service) DeleteHistory(ctx context.Context, username string) (int64, error) {
	const op = "payment.DeleteHistory"
	if username == "" {
		return 0, fmt.Errorf("%s: username is required: %w", op, models.ErrValidation)
	}
	n, err := s.repo.DeletePaymentsByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Fulfilment итог шагов выдачи после оплаты.
type Fulfilment struct {
	ExpireAt         *time.Time `json:"expire_at,omitempty"`
	ReferralCredited bool       `json:"referral_credited"`
	Errors           []string   `json:"errors,omitempty"`
}

// fulfil выполняет шаги выдачи для оплаченного платежа. Ошибки шагов
// собираются в результат и не прерывают последующие шаги.
func (s *Service) fulfil(ctx context.Context, p *models.Payment) Fulfilment {
	const op = "payment.fulfil"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", p.PaymentID), slog.String("username", p.Username))
	var res Fulfilment

	expireAt, err := s.vpn.Provision(ctx, p.Username, s.provisionPlan(ctx, p))
	if err != nil {
		log.Error("vpn provisioning failed", sl.Err(err))
		res.Errors = append(res.Errors, "provision: "+err.Error())
	} else {
		res.ExpireAt = &expireAt
		log.Info("vpn access provisioned", slog.Time("expire_at", expireAt))
	}

	if s.referrals != nil {
		credited, err := s.referrals.ActivateForPayment(ctx, p.Username, p.ReferralCode)
		res.ReferralCredited = credited
		if err != nil {
			log.Error("referral activation failed", sl.Err(err))
			res.Errors = append(res.Errors, "referral: "+err.Error())
		}
	}

	if s.publisher != nil && p.Email != "" {
		msg := models.PaymentNotification{
			PaymentID: p.PaymentID,
			Username:  p.Username,
			Email:     p.Email,
			PlanName:  p.PlanName,
			PlanDays:  p.PlanDays,
			Amount:    p.Amount,
			Currency:  p.Currency,
			ExpireAt:  res.ExpireAt,
		}
		if err := s.publisher.Publish(ctx, s.settings.RoutingKey, msg); err != nil {
			log.Error("failed to enqueue payment email", sl.Err(err))
			res.Errors = append(res.Errors, "email: "+err.Error())
		}
	}
	return res
}

func (s *Service) provisionPlan(ctx context.Context, p *models.Payment) models.ProvisionPlan {
	plan := models.ProvisionPlan{Days: p.PlanDays}
	if p.PlanID == nil {
		return plan
	}
	stored, err := s.plans.Get(ctx, *p.PlanID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.log.Warn("plan lookup failed, using defaults", slog.Int64("plan_id", *p.PlanID), sl.Err(err))
		}
		return plan
	}
	plan.TrafficLimitGB = stored.TrafficLimitGB
	plan.SquadUUID = stored.SquadUUID
	return plan
}
