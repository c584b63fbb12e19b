// Package bot витрина в Telegram: список тарифов, счёт через Telegram Payments
// и выдача доступа после оплаты.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
	paymentservice "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
)

const (
	buyPrefix     = "buy:"
	payloadPrefix = "plan:"
)

// API часть *tgbotapi.BotAPI, которой пользуется бот.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Plans каталог тарифов.
type Plans interface {
	ListActive(ctx context.Context) ([]models.Plan, error)
	Get(ctx context.Context, id int64) (*models.Plan, error)
}

// Purchases учёт оплат из Telegram.
type Purchases interface {
	RecordTelegramPurchase(ctx context.Context, tp paymentservice.TelegramPurchase) (*paymentservice.WebhookResult, error)
}

// Settings параметры счетов.
type Settings struct {
	ProviderToken string
	Currency      string
	PollTimeout   int
}

// Bot обработчик обновлений Telegram.
type Bot struct {
	api       API
	log       *slog.Logger
	plans     Plans
	purchases Purchases
	settings  Settings
}

// New создаёт Bot.
func New(log *slog.Logger, api API, plans Plans, purchases Purchases, settings Settings) *Bot {
	if settings.Currency == "" {
		settings.Currency = "RUB"
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = 60
	}
	return &Bot{api: api, log: log, plans: plans, purchases: purchases, settings: settings}
}

// Run читает обновления long polling до отмены ctx.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.settings.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate разбирает одно обновление.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(ctx, update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		b.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "plans":
		b.sendPlans(ctx, msg.Chat.ID)
	default:
		b.reply(msg.Chat.ID, "Неизвестная команда. Список тарифов: /plans")
	}
}

func (b *Bot) sendPlans(ctx context.Context, chatID int64) {
	const op = "bot.sendPlans"

	plans, err := b.plans.ListActive(ctx)
	if err != nil {
		b.log.Error("failed to list plans", slog.String("op", op), sl.Err(err))
		b.reply(chatID, "Не удалось загрузить тарифы, попробуйте позже.")
		return
	}
	if len(plans) == 0 {
		b.reply(chatID, "Сейчас нет доступных тарифов.")
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		label := fmt.Sprintf("%s: %d дн. за %s %s", p.Name, p.Days, p.Price, b.settings.Currency)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, buyPrefix+strconv.FormatInt(p.ID, 10)),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "Выберите тариф:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send plans", slog.String("op", op), sl.Err(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	const op = "bot.handleCallback"
	log := b.log.With(slog.String("op", op), slog.Int64("user_id", q.From.ID))

	if !strings.HasPrefix(q.Data, buyPrefix) || q.Message == nil {
		b.answerCallback(q.ID, "")
		return
	}
	planID, err := strconv.ParseInt(strings.TrimPrefix(q.Data, buyPrefix), 10, 64)
	if err != nil {
		b.answerCallback(q.ID, "Неизвестный тариф")
		return
	}
	plan, err := b.activePlan(ctx, planID)
	if err != nil {
		log.Warn("plan unavailable", slog.Int64("plan_id", planID), sl.Err(err))
		b.answerCallback(q.ID, "Тариф недоступен")
		return
	}

	invoice, err := b.invoice(q.Message.Chat.ID, plan)
	if err != nil {
		log.Error("failed to build invoice", slog.Int64("plan_id", planID), sl.Err(err))
		b.answerCallback(q.ID, "Не удалось выставить счёт")
		return
	}
	if _, err := b.api.Send(invoice); err != nil {
		log.Error("failed to send invoice", sl.Err(err))
		b.answerCallback(q.ID, "Не удалось выставить счёт")
		return
	}
	b.answerCallback(q.ID, "Счёт выставлен")
}

func (b *Bot) invoice(chatID int64, plan *models.Plan) (tgbotapi.InvoiceConfig, error) {
	amount, err := minorUnits(plan.Price)
	if err != nil {
		return tgbotapi.InvoiceConfig{}, err
	}
	inv := tgbotapi.NewInvoice(
		chatID,
		plan.Name,
		fmt.Sprintf("Доступ к VPN на %d дн.", plan.Days),
		payloadPrefix+strconv.FormatInt(plan.ID, 10),
		b.settings.ProviderToken,
		"",
		b.settings.Currency,
		[]tgbotapi.LabeledPrice{{Label: plan.Name, Amount: amount}},
	)
	inv.SuggestedTipAmounts = []int{}
	return inv, nil
}

// handlePreCheckout подтверждает оплату, только если тариф существует, активен
// и сумма совпадает с его ценой.
func (b *Bot) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	const op = "bot.handlePreCheckout"

	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}
	if err := b.checkPayload(ctx, q.InvoicePayload, q.TotalAmount); err != nil {
		b.log.Warn("pre-checkout rejected", slog.String("op", op), slog.String("payload", q.InvoicePayload), sl.Err(err))
		answer.OK = false
		answer.ErrorMessage = "Тариф больше недоступен, выберите другой: /plans"
	}
	if _, err := b.api.Request(answer); err != nil {
		b.log.Error("failed to answer pre-checkout", slog.String("op", op), sl.Err(err))
	}
}

func (b *Bot) checkPayload(ctx context.Context, payload string, total int) error {
	planID, err := parsePayload(payload)
	if err != nil {
		return err
	}
	plan, err := b.activePlan(ctx, planID)
	if err != nil {
		return err
	}
	amount, err := minorUnits(plan.Price)
	if err != nil {
		return err
	}
	if amount != total {
		return fmt.Errorf("amount %d does not match plan price %d: %w", total, amount, models.ErrValidation)
	}
	return nil
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	const op = "bot.handleSuccessfulPayment"
	sp := msg.SuccessfulPayment
	log := b.log.With(slog.String("op", op), slog.String("charge_id", sp.TelegramPaymentChargeID))

	planID, err := parsePayload(sp.InvoicePayload)
	if err != nil {
		log.Error("unexpected invoice payload", slog.String("payload", sp.InvoicePayload), sl.Err(err))
		b.reply(msg.Chat.ID, "Оплата получена, но тариф не распознан. Напишите в поддержку.")
		return
	}

	res, err := b.purchases.RecordTelegramPurchase(ctx, paymentservice.TelegramPurchase{
		ChargeID:    sp.TelegramPaymentChargeID,
		Username:    Username(msg.From),
		PlanID:      planID,
		TotalAmount: sp.TotalAmount,
		Currency:    sp.Currency,
	})
	if err != nil {
		log.Error("failed to record purchase", sl.Err(err))
		b.reply(msg.Chat.ID, "Оплата получена, доступ будет выдан после проверки. Напишите в поддержку, если этого не произошло.")
		return
	}
	if len(res.Errors) > 0 {
		log.Warn("purchase recorded with errors", slog.Any("errors", res.Errors))
	}

	expireAt := res.ExpireAtOrZero()
	if expireAt.IsZero() {
		b.reply(msg.Chat.ID, "Оплата получена. Доступ будет активирован в ближайшее время.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Оплата получена. Доступ активен до %s (UTC).", expireAt.UTC().Format("02.01.2006 15:04")))
}

func (b *Bot) activePlan(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := b.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("plan %d is inactive: %w", id, models.ErrNotFound)
	}
	return plan, nil
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("failed to send message", slog.Int64("chat_id", chatID), sl.Err(err))
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("failed to answer callback", sl.Err(err))
	}
}

// Username имя пользователя витрины для аккаунта Telegram.
func Username(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	return "tg_" + strconv.FormatInt(u.ID, 10)
}

func parsePayload(payload string) (int64, error) {
	if !strings.HasPrefix(payload, payloadPrefix) {
		return 0, fmt.Errorf("payload %q: %w", payload, models.ErrValidation)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, payloadPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("payload %q: %w", payload, models.ErrValidation)
	}
	return id, nil
}

// minorUnits переводит цену "199.00" в копейки.
func minorUnits(price string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", price, models.ErrValidation)
	}
	if v <= 0 {
		return 0, fmt.Errorf("price %q must be positive: %w", price, models.ErrValidation)
	}
	return int(math.Round(v * 100)), nil
}
