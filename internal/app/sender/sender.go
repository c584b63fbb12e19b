// Package sender собирает потребителя очереди писем об оплате.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-storefront/internal/config"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/mailapi"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/vpn-storefront/internal/services/sender"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(logger, NewMailer(cfg.Mail, logger), cfg.Mail.SiteName),
		logger:        logger,
	}, nil
}

// NewMailer выбирает транспорт писем по mail.provider.
func NewMailer(cfg config.Mail, logger *slog.Logger) senderservice.Mailer {
	if cfg.Provider == "smtp" {
		return smtp.NewMailer(smtp.NewTransport(cfg, logger), cfg.From, logger)
	}
	return mailapi.NewClient(cfg.APIURL, cfg.APIKey, cfg.From, cfg.Timeout)
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.PaymentQueue, a.senderService.PaymentHandler(ctx))
	if err != nil {
		a.logger.Error("failed to start payment queue consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
