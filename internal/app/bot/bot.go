// Package bot собирает витрину в Telegram поверх того же хранилища и сервиса платежей, что и API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-storefront/internal/bot"
	"github.com/magabrotheeeer/vpn-storefront/internal/clients/remnawave"
	"github.com/magabrotheeeer/vpn-storefront/internal/clients/yookassa"
	"github.com/magabrotheeeer/vpn-storefront/internal/config"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	paymentservice "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
	referralservice "github.com/magabrotheeeer/vpn-storefront/internal/services/referral"
	vpnservice "github.com/magabrotheeeer/vpn-storefront/internal/services/vpn"
	"github.com/magabrotheeeer/vpn-storefront/internal/storage/repository"
)

type App struct {
	bot    *bot.Bot
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	pub    *rabbitmq.Publisher
}

// waitForDB ждёт, пока API применит миграции: бот схему не создаёт.
func waitForDB(ctx context.Context, db *repository.Storage) error {
	var err error
	for range 10 {
		if err = repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	secrets, err := db.SecretsMap(ctx)
	if err != nil {
		logger.Warn("failed to load secrets from storage", sl.Err(err))
	} else {
		cfg.ApplySecrets(secrets)
	}
	if cfg.Telegram.BotToken == "" {
		_ = db.Close()
		return nil, errors.New("telegram bot token is not set")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("authorized on account", slog.String("username", api.Self.UserName))

	app := &App{logger: logger, db: db}

	var publisher paymentservice.Publisher
	if conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay); err != nil {
		logger.Warn("rabbitmq unavailable, payment emails disabled", sl.Err(err))
	} else if ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues()); err != nil {
		logger.Warn("rabbitmq channel setup failed, payment emails disabled", sl.Err(err))
		_ = conn.Close()
	} else {
		app.conn = conn
		app.pub = rabbitmq.NewPublisher(ch)
		publisher = app.pub
	}

	panel := remnawave.NewClient(cfg.VPNPanel.BaseURL, cfg.VPNPanel.Token, cfg.VPNPanel.Timeout, cfg.VPNPanel.PageSize)
	vpn := vpnservice.New(logger, panel, db, vpnservice.Defaults{
		SquadUUID:      cfg.VPNPanel.DefaultSquad,
		TrafficLimitGB: cfg.VPNPanel.TrafficLimitGB,
	})
	referrals := referralservice.New(logger, db, vpn, cfg.Referral.BonusDays)
	gateway := yookassa.NewClient(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey, cfg.YooKassa.APIURL, cfg.YooKassa.Timeout)
	payments := paymentservice.New(logger, db, db.Plans(), gateway, vpn, referrals, publisher, paymentservice.Settings{
		Currency:   cfg.Telegram.Currency,
		RoutingKey: rabbitmq.PaymentRoutingKey,
	})

	app.bot = bot.New(logger, api, db.Plans(), payments, bot.Settings{
		ProviderToken: cfg.Telegram.ProviderToken,
		Currency:      cfg.Telegram.Currency,
		PollTimeout:   cfg.Telegram.PollTimeout,
	})
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	err := a.bot.Run(ctx)
	a.logger.Info("bot shutting down gracefully")

	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close postgres", sl.Err(err))
	}
	return err
}
