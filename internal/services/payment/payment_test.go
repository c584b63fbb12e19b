package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-storefront/internal/clients/yookassa"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memPayments хранилище платежей в памяти с той же семантикой перехода статуса.
type memPayments struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func newMemPayments(seed ...models.Payment) *memPayments {
	m := &memPayments{payments: map[string]models.Payment{}}
	for _, p := range seed {
		m.payments[p.PaymentID] = p
	}
	return m
}

func (m *memPayments) CreatePayment(_ context.Context, p models.Payment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.PaymentID]; ok {
		return 0, models.ErrConflict
	}
	m.payments[p.PaymentID] = p
	return int64(len(m.payments)), nil
}

func (m *memPayments) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (m *memPayments) MarkPaymentSucceeded(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return false, nil
	}
	p.Status = models.PaymentStatusSucceeded
	m.payments[id] = p
	return true, nil
}

func (m *memPayments) ListPayments(_ context.Context, f models.PaymentFilter) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, p := range m.payments {
		if f.Username != "" && p.Username != f.Username {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memPayments) DeletePaymentsByUsername(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, p := range m.payments {
		if p.Username == username {
			delete(m.payments, id)
			n++
		}
	}
	return n, nil
}

type planStub map[int64]models.Plan

func (s planStub) Get(_ context.Context, id int64) (*models.Plan, error) {
	p, ok := s[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest, key string) (*yookassa.Payment, error) {
	args := m.Called(ctx, req, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*yookassa.Payment), args.Error(1)
}

func (m *GatewayMock) GetPayment(ctx context.Context, id string) (*yookassa.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*yookassa.Payment), args.Error(1)
}

type ProvisionerMock struct {
	mock.Mock
}

func (m *ProvisionerMock) Provision(ctx context.Context, username string, plan models.ProvisionPlan) (time.Time, error) {
	args := m.Called(ctx, username, plan)
	return args.Get(0).(time.Time), args.Error(1)
}

type ReferralMock struct {
	mock.Mock
}

func (m *ReferralMock) ActivateForPayment(ctx context.Context, referred, code string) (bool, error) {
	args := m.Called(ctx, referred, code)
	return args.Bool(0), args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

var (
	basicPlan  = models.Plan{ID: 1, Name: "Месяц", Price: "199.00", Days: 30, TrafficLimitGB: 100, IsActive: true}
	hiddenPlan = models.Plan{ID: 2, Name: "Архив", Price: "99.00", Days: 7, IsActive: false}
	expireAt   = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
)

type deps struct {
	repo      *memPayments
	gateway   *GatewayMock
	vpn       *ProvisionerMock
	referrals *ReferralMock
	publisher *PublisherMock
}

func newService(t *testing.T, repo *memPayments, settings Settings) (*Service, deps) {
	t.Helper()
	d := deps{
		repo:      repo,
		gateway:   new(GatewayMock),
		vpn:       new(ProvisionerMock),
		referrals: new(ReferralMock),
		publisher: new(PublisherMock),
	}
	plans := planStub{basicPlan.ID: basicPlan, hiddenPlan.ID: hiddenPlan}
	svc := New(newNoopLogger(), repo, plans, d.gateway, d.vpn, d.referrals, d.publisher, settings)
	return svc, d
}

func pendingPayment(id string) models.Payment {
	planID := basicPlan.ID
	return models.Payment{
		PaymentID:    id,
		Username:     "alice",
		Email:        "alice@example.com",
		Amount:       "199.00",
		Currency:     "RUB",
		Status:       models.PaymentStatusPending,
		PlanID:       &planID,
		PlanName:     basicPlan.Name,
		PlanDays:     basicPlan.Days,
		Source:       models.PaymentSourceYooKassa,
		ReferralCode: "2BD806C9",
	}
}

func succeededRemote(id string) *yookassa.Payment {
	return &yookassa.Payment{
		ID:     id,
		Status: yookassa.StatusSucceeded,
		Paid:   true,
		Amount: yookassa.Amount{Value: "199.00", Currency: "RUB"},
	}
}

func notification(event, id string) yookassa.Notification {
	return yookassa.Notification{Type: "notification", Event: event, Object: yookassa.Payment{ID: id}}
}

func TestCreatePayment(t *testing.T) {
	repo := newMemPayments()
	svc, d := newService(t, repo, Settings{ReturnURL: "https://vpn.example.com/thanks"})

	d.gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req yookassa.CreatePaymentRequest) bool {
		return req.Amount.Value == "199.00" &&
			req.Amount.Currency == "RUB" &&
			req.Capture &&
			req.Confirmation.Type == "redirect" &&
			req.Confirmation.ReturnURL == "https://vpn.example.com/thanks" &&
			req.Metadata["username"] == "alice" &&
			req.Metadata["plan_id"] == "1" &&
			req.Metadata["plan_days"] == "30" &&
			req.Metadata["referral_code"] == "ABCD1234"
	}), "").Return(&yookassa.Payment{
		ID:           "pay-1",
		Status:       yookassa.StatusPending,
		Confirmation: &yookassa.Confirmation{Type: "redirect", ConfirmationURL: "https://yoomoney.ru/checkout/pay-1"},
	}, nil)

	res, err := svc.CreatePayment(context.Background(), CreateRequest{
		Username:     "alice",
		Email:        "alice@example.com",
		PlanID:       1,
		ReferralCode: " abcd1234 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", res.PaymentID)
	assert.Equal(t, "https://yoomoney.ru/checkout/pay-1", res.ConfirmationURL)
	assert.Equal(t, "199.00", res.Amount)

	stored, err := repo.GetPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Equal(t, 30, stored.PlanDays)
	assert.Equal(t, "ABCD1234", stored.ReferralCode)
	d.gateway.AssertExpectations(t)
}

func TestCreatePayment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{name: "empty username", req: CreateRequest{PlanID: 1}, wantErr: models.ErrValidation},
		{name: "missing plan", req: CreateRequest{Username: "alice"}, wantErr: models.ErrValidation},
		{name: "unknown plan", req: CreateRequest{Username: "alice", PlanID: 42}, wantErr: models.ErrNotFound},
		{name: "inactive plan", req: CreateRequest{Username: "alice", PlanID: 2}, wantErr: models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newService(t, newMemPayments(), Settings{})
			_, err := svc.CreatePayment(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			d.gateway.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProcessWebhook_ProcessesOnce(t *testing.T) {
	repo := newMemPayments(pendingPayment("pay-1"))
	svc, d := newService(t, repo, Settings{})
	ctx := context.Background()

	d.gateway.On("GetPayment", mock.Anything, "pay-1").Return(succeededRemote("pay-1"), nil)
	d.vpn.On("Provision", mock.Anything, "alice", models.ProvisionPlan{Days: 30, TrafficLimitGB: 100}).
		Return(expireAt, nil).Once()
	d.referrals.On("ActivateForPayment", mock.Anything, "alice", "2BD806C9").Return(true, nil).Once()
	d.publisher.On("Publish", mock.Anything, "payment", mock.MatchedBy(func(n models.PaymentNotification) bool {
		return n.PaymentID == "pay-1" && n.Email == "alice@example.com" && n.ExpireAt != nil && n.ExpireAt.Equal(expireAt)
	})).Return(nil).Once()

	first, err := svc.ProcessWebhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, first.Outcome)
	assert.True(t, first.ReferralCredited)
	assert.Empty(t, first.Errors)
	assert.Equal(t, expireAt, first.ExpireAtOrZero())

	second, err := svc.ProcessWebhook(ctx, notification(yookassa.EventPaymentSucceeded, "pay-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)

	stored, _ := repo.GetPayment(ctx, "pay-1")
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Status)
	d.vpn.AssertNumberOfCalls(t, "Provision", 1)
	d.publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestProcessWebhook_IgnoresOtherEvents(t *testing.T) {
	svc, d := newService(t, newMemPayments(pendingPayment("pay-1")), Settings{})

	for _, event := range []string{"payment.waiting_for_capture", "payment.canceled", "refund.succeeded"} {
		res, err := svc.ProcessWebhook(context.Background(), notification(event, "pay-1"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome, event)
	}
	d.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestProcessWebhook_RejectsUnconfirmed(t *testing.T) {
	tests := []struct {
		name   string
		remote *yookassa.Payment
	}{
		{name: "still pending", remote: &yookassa.Payment{ID: "pay-1", Status: yookassa.StatusPending}},
		{name: "succeeded but unpaid", remote: &yookassa.Payment{ID: "pay-1", Status: yookassa.StatusSucceeded}},
		{name: "canceled", remote: &yookassa.Payment{ID: "pay-1", Status: yookassa.StatusCanceled, Paid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemPayments(pendingPayment("pay-1"))
			svc, d := newService(t, repo, Settings{})
			d.gateway.On("GetPayment", mock.Anything, "pay-1").Return(tt.remote, nil)

			res, err := svc.ProcessWebhook(context.Background(), notification(yookassa.EventPaymentSucceeded, "pay-1"))
			require.NoError(t, err)
			assert.Equal(t, OutcomeRejected, res.Outcome)

			stored, _ := repo.GetPayment(context.Background(), "pay-1")
			assert.Equal(t, models.PaymentStatusPending, stored.Status)
			d.vpn.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProcessWebhook_VerifyFailureIsRetryable(t *testing.T) {
	repo := newMemPayments(pendingPayment("pay-1"))
	svc, d := newService(t, repo, Settings{})
	d.gateway.On("GetPayment", mock.Anything, "pay-1").Return(nil, models.ErrUpstreamTimeout)

	_, err := svc.ProcessWebhook(context.Background(), notification(yookassa.EventPaymentSucceeded, "pay-1"))
	assert.ErrorIs(t, err, models.ErrUpstreamTimeout)

	stored, _ := repo.GetPayment(context.Background(), "pay-1")
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestProcessWebhook_StepFailuresAreBestEffort(t *testing.T) {
	repo := newMemPayments(pendingPayment("pay-1"))
	svc, d := newService(t, repo, Settings{})

	d.gateway.On("GetPayment", mock.Anything, "pay-1").Return(succeededRemote("pay-1"), nil)
	d.vpn.On("Provision", mock.Anything, "alice", mock.Anything).Return(time.Time{}, errors.New("panel down"))
	d.referrals.On("ActivateForPayment", mock.Anything, "alice", "2BD806C9").Return(false, nil)
	d.publisher.On("Publish", mock.Anything, "payment", mock.MatchedBy(func(n models.PaymentNotification) bool {
		return n.ExpireAt == nil
	})).Return(errors.New("broker down"))

	res, err := svc.ProcessWebhook(context.Background(), notification(yookassa.EventPaymentSucceeded, "pay-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Nil(t, res.ExpireAt)
	assert.Len(t, res.Errors, 2)

	stored, _ := repo.GetPayment(context.Background(), "pay-1")
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Status)
	d.referrals.AssertExpectations(t)
}

func TestProcessWebhook_RestoresMissingPayment(t *testing.T) {
	repo := newMemPayments()
	svc, d := newService(t, repo, Settings{})

	remote := succeededRemote("pay-9")
	remote.Metadata = map[string]string{
		"username":  "bob",
		"plan_id":   "1",
		"plan_name": "Месяц",
		"plan_days": "30",
	}
	d.gateway.On("GetPayment", mock.Anything, "pay-9").Return(remote, nil)
	d.vpn.On("Provision", mock.Anything, "bob", models.ProvisionPlan{Days: 30, TrafficLimitGB: 100}).Return(expireAt, nil)
	d.referrals.On("ActivateForPayment", mock.Anything, "bob", "").Return(false, nil)

	res, err := svc.ProcessWebhook(context.Background(), notification(yookassa.EventPaymentSucceeded, "pay-9"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	stored, err := repo.GetPayment(context.Background(), "pay-9")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Status)
	assert.Equal(t, "bob", stored.Username)
	d.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessWebhook_MissingPaymentWithoutUsername(t *testing.T) {
	svc, d := newService(t, newMemPayments(), Settings{})
	d.gateway.On("GetPayment", mock.Anything, "pay-9").Return(succeededRemote("pay-9"), nil)

	_, err := svc.ProcessWebhook(context.Background(), notification(yookassa.EventPaymentSucceeded, "pay-9"))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestHandleNotification(t *testing.T) {
	body := []byte(`{"type":"notification","event":"payment.canceled","object":{"id":"pay-1","status":"canceled"}}`)

	t.Run("bad signature", func(t *testing.T) {
		svc, _ := newService(t, newMemPayments(), Settings{WebhookSecret: "whsec"})
		header := http.Header{}
		header.Set("Content-Yoomoney-Signature", "deadbeef")
		_, err := svc.HandleNotification(context.Background(), body, header)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("valid signature", func(t *testing.T) {
		svc, _ := newService(t, newMemPayments(), Settings{WebhookSecret: "whsec"})
		header := http.Header{}
		header.Set("Content-Yoomoney-Signature", yookassa.Sign("whsec", body))
		res, err := svc.HandleNotification(context.Background(), body, header)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
	})

	t.Run("no secret configured", func(t *testing.T) {
		svc, _ := newService(t, newMemPayments(), Settings{})
		res, err := svc.HandleNotification(context.Background(), body, http.Header{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, res.Outcome)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc, _ := newService(t, newMemPayments(), Settings{})
		_, err := svc.HandleNotification(context.Background(), []byte("{"), http.Header{})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestMarkSucceeded(t *testing.T) {
	repo := newMemPayments(pendingPayment("pay-1"))
	svc, d := newService(t, repo, Settings{})
	d.vpn.On("Provision", mock.Anything, "alice", mock.Anything).Return(expireAt, nil).Once()
	d.referrals.On("ActivateForPayment", mock.Anything, "alice", "2BD806C9").Return(false, nil)
	d.publisher.On("Publish", mock.Anything, "payment", mock.Anything).Return(nil)

	res, err := svc.MarkSucceeded(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	res, err = svc.MarkSucceeded(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	_, err = svc.MarkSucceeded(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	d.gateway.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestRecordTelegramPurchase(t *testing.T) {
	repo := newMemPayments()
	svc, d := newService(t, repo, Settings{})
	d.vpn.On("Provision", mock.Anything, "tg_42", models.ProvisionPlan{Days: 30, TrafficLimitGB: 100}).Return(expireAt, nil).Once()
	d.referrals.On("ActivateForPayment", mock.Anything, "tg_42", "").Return(false, nil)

	purchase := TelegramPurchase{ChargeID: "tg-charge-1", Username: "tg_42", PlanID: 1, TotalAmount: 19900, Currency: "RUB"}
	res, err := svc.RecordTelegramPurchase(context.Background(), purchase)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, expireAt, res.ExpireAtOrZero())

	stored, err := repo.GetPayment(context.Background(), "tg-charge-1")
	require.NoError(t, err)
	assert.Equal(t, "199.00", stored.Amount)
	assert.Equal(t, models.PaymentSourceTelegram, stored.Source)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Status)

	res, err = svc.RecordTelegramPurchase(context.Background(), purchase)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	d.vpn.AssertNumberOfCalls(t, "Provision", 1)
}

func TestDeleteHistory(t *testing.T) {
	repo := newMemPayments(pendingPayment("pay-1"), pendingPayment("pay-2"))
	svc, _ := newService(t, repo, Settings{})

	n, err := svc.DeleteHistory(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.DeleteHistory(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "199.00", formatMinorUnits(19900))
	assert.Equal(t, "0.05", formatMinorUnits(5))
	assert.Equal(t, "10.50", formatMinorUnits(1050))
}
