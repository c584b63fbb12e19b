package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
	paymentservice "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
)

type APIMock struct {
	mock.Mock
}

func (m *APIMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func (m *APIMock) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return &tgbotapi.APIResponse{Ok: true}, args.Error(0)
}

func (m *APIMock) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.Called(config).Get(0).(tgbotapi.UpdatesChannel)
}

func (m *APIMock) StopReceivingUpdates() {
	m.Called()
}

type PlansMock struct {
	mock.Mock
}

func (m *PlansMock) ListActive(ctx context.Context) ([]models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Plan), args.Error(1)
}

func (m *PlansMock) Get(ctx context.Context, id int64) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

type PurchasesMock struct {
	mock.Mock
}

func (m *PurchasesMock) RecordTelegramPurchase(ctx context.Context, tp paymentservice.TelegramPurchase) (*paymentservice.WebhookResult, error) {
	args := m.Called(ctx, tp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentservice.WebhookResult), args.Error(1)
}

var (
	monthPlan    = &models.Plan{ID: 1, Name: "Месяц", Price: "199.00", Days: 30, IsActive: true}
	archivedPlan = &models.Plan{ID: 2, Name: "Архив", Price: "99.00", Days: 7}
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot() (*Bot, *APIMock, *PlansMock, *PurchasesMock) {
	api, plans, purchases := new(APIMock), new(PlansMock), new(PurchasesMock)
	b := New(newNoopLogger(), api, plans, purchases, Settings{ProviderToken: "provider"})
	return b, api, plans, purchases
}

func command(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42},
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}},
	}}
}

func messageText(c tgbotapi.Chattable) string {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		return m.Text
	}
	return ""
}

func TestBot_StartListsPlans(t *testing.T) {
	b, api, plans, _ := newTestBot()
	plans.On("ListActive", mock.Anything).Return([]models.Plan{*monthPlan}, nil).Once()
	api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		m, ok := c.(tgbotapi.MessageConfig)
		if !ok {
			return false
		}
		kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		return ok && len(kb.InlineKeyboard) == 1 &&
			kb.InlineKeyboard[0][0].CallbackData != nil &&
			*kb.InlineKeyboard[0][0].CallbackData == "buy:1"
	})).Return(nil).Once()

	b.HandleUpdate(context.Background(), command(42, "/start"))

	api.AssertExpectations(t)
	plans.AssertExpectations(t)
}

func TestBot_PlansErrors(t *testing.T) {
	tests := []struct {
		name      string
		plans     []models.Plan
		err       error
		replyPart string
	}{
		{name: "storage failure", err: errors.New("db down"), replyPart: "Не удалось загрузить"},
		{name: "empty catalog", plans: []models.Plan{}, replyPart: "нет доступных"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, plans, _ := newTestBot()
			plans.On("ListActive", mock.Anything).Return(tt.plans, tt.err).Once()
			api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
				return strings.Contains(messageText(c), tt.replyPart)
			})).Return(nil).Once()

			b.HandleUpdate(context.Background(), command(42, "/plans"))

			api.AssertExpectations(t)
		})
	}
}

func TestBot_BuyCallback(t *testing.T) {
	t.Run("sends invoice", func(t *testing.T) {
		b, api, plans, _ := newTestBot()
		plans.On("Get", mock.Anything, int64(1)).Return(monthPlan, nil).Once()
		api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			inv, ok := c.(tgbotapi.InvoiceConfig)
			return ok && inv.Payload == "plan:1" &&
				inv.Currency == "RUB" &&
				inv.ProviderToken == "provider" &&
				len(inv.Prices) == 1 && inv.Prices[0].Amount == 19900
		})).Return(nil).Once()
		api.On("Request", tgbotapi.NewCallback("cb-1", "Счёт выставлен")).Return(nil).Once()

		b.HandleUpdate(context.Background(), callback("buy:1"))

		api.AssertExpectations(t)
	})

	t.Run("inactive plan", func(t *testing.T) {
		b, api, plans, _ := newTestBot()
		plans.On("Get", mock.Anything, int64(2)).Return(archivedPlan, nil).Once()
		api.On("Request", tgbotapi.NewCallback("cb-1", "Тариф недоступен")).Return(nil).Once()

		b.HandleUpdate(context.Background(), callback("buy:2"))

		api.AssertExpectations(t)
		api.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("malformed data", func(t *testing.T) {
		b, api, _, _ := newTestBot()
		api.On("Request", tgbotapi.NewCallback("cb-1", "Неизвестный тариф")).Return(nil).Once()

		b.HandleUpdate(context.Background(), callback("buy:abc"))

		api.AssertExpectations(t)
	})
}

func TestBot_PreCheckout(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		total      int
		setupMocks func(p *PlansMock)
		wantOK     bool
	}{
		{
			name:    "plan exists and amount matches",
			payload: "plan:1",
			total:   19900,
			setupMocks: func(p *PlansMock) {
				p.On("Get", mock.Anything, int64(1)).Return(monthPlan, nil).Once()
			},
			wantOK: true,
		},
		{
			name:    "amount mismatch",
			payload: "plan:1",
			total:   100,
			setupMocks: func(p *PlansMock) {
				p.On("Get", mock.Anything, int64(1)).Return(monthPlan, nil).Once()
			},
		},
		{
			name:    "plan deleted",
			payload: "plan:9",
			total:   19900,
			setupMocks: func(p *PlansMock) {
				p.On("Get", mock.Anything, int64(9)).Return(nil, models.ErrNotFound).Once()
			},
		},
		{
			name:       "foreign payload",
			payload:    "something",
			total:      19900,
			setupMocks: func(p *PlansMock) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, plans, _ := newTestBot()
			tt.setupMocks(plans)
			api.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
				pc, ok := c.(tgbotapi.PreCheckoutConfig)
				return ok && pc.PreCheckoutQueryID == "pcq-1" && pc.OK == tt.wantOK
			})).Return(nil).Once()

			b.HandleUpdate(context.Background(), tgbotapi.Update{PreCheckoutQuery: &tgbotapi.PreCheckoutQuery{
				ID:             "pcq-1",
				From:           &tgbotapi.User{ID: 42},
				Currency:       "RUB",
				TotalAmount:    tt.total,
				InvoicePayload: tt.payload,
			}})

			api.AssertExpectations(t)
			plans.AssertExpectations(t)
		})
	}
}

func TestBot_SuccessfulPayment(t *testing.T) {
	expireAt := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)
	paid := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{ID: 42},
		SuccessfulPayment: &tgbotapi.SuccessfulPayment{
			Currency:                "RUB",
			TotalAmount:             19900,
			InvoicePayload:          "plan:1",
			TelegramPaymentChargeID: "tg-charge-1",
		},
	}}
	purchase := paymentservice.TelegramPurchase{
		ChargeID:    "tg-charge-1",
		Username:    "tg_42",
		PlanID:      1,
		TotalAmount: 19900,
		Currency:    "RUB",
	}

	tests := []struct {
		name      string
		result    *paymentservice.WebhookResult
		err       error
		replyPart string
	}{
		{
			name: "replies with expiry",
			result: &paymentservice.WebhookResult{
				Outcome:    paymentservice.OutcomeProcessed,
				Fulfilment: paymentservice.Fulfilment{ExpireAt: &expireAt},
			},
			replyPart: "01.05.2025 10:30",
		},
		{
			name: "provisioning failed",
			result: &paymentservice.WebhookResult{
				Outcome:    paymentservice.OutcomeProcessed,
				Fulfilment: paymentservice.Fulfilment{Errors: []string{"provision: panel down"}},
			},
			replyPart: "ближайшее время",
		},
		{
			name:      "record failed",
			err:       errors.New("db down"),
			replyPart: "после проверки",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, api, _, purchases := newTestBot()
			purchases.On("RecordTelegramPurchase", mock.Anything, purchase).Return(tt.result, tt.err).Once()
			api.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
				return strings.Contains(messageText(c), tt.replyPart)
			})).Return(nil).Once()

			b.HandleUpdate(context.Background(), paid)

			purchases.AssertExpectations(t)
			api.AssertExpectations(t)
		})
	}
}

func TestBot_RunStopsOnCancel(t *testing.T) {
	b, api, _, _ := newTestBot()
	updates := make(chan tgbotapi.Update)
	api.On("GetUpdatesChan", mock.Anything).Return(tgbotapi.UpdatesChannel(updates)).Once()
	api.On("StopReceivingUpdates").Return().Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	api.AssertExpectations(t)
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		price   string
		want    int
		wantErr bool
	}{
		{price: "199.00", want: 19900},
		{price: "0.29", want: 29},
		{price: " 350 ", want: 35000},
		{price: "0", wantErr: true},
		{price: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got, err := minorUnits(tt.price)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "tg_42", Username(&tgbotapi.User{ID: 42}))
	assert.Empty(t, Username(nil))
}
