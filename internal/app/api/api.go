// Package api собирает HTTP API витрины: хранилище, клиенты внешних сервисов,
// доменные сервисы и маршруты.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-storefront/internal/cache"
	"github.com/magabrotheeeer/vpn-storefront/internal/clients/remnawave"
	"github.com/magabrotheeeer/vpn-storefront/internal/clients/yookassa"
	"github.com/magabrotheeeer/vpn-storefront/internal/config"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/migrations"
	"github.com/magabrotheeeer/vpn-storefront/internal/services/auth"
	"github.com/magabrotheeeer/vpn-storefront/internal/services/bruteforce"
	paymentservice "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
	referralservice "github.com/magabrotheeeer/vpn-storefront/internal/services/referral"
	"github.com/magabrotheeeer/vpn-storefront/internal/services/scheduler"
	vpnservice "github.com/magabrotheeeer/vpn-storefront/internal/services/vpn"
	"github.com/magabrotheeeer/vpn-storefront/internal/storage/repository"
)

// App HTTP-сервер и ресурсы, которые надо закрыть при остановке.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	pub    *rabbitmq.Publisher
	jobs   *scheduler.SchedulerService
}

// Services доменные сервисы, нужные маршрутам.
type Services struct {
	Storage  *repository.Storage
	Cache    *cache.Cache
	Payments *paymentservice.Service
	VPN      *vpnservice.Service
	Referral *referralservice.Service
	Auth     *auth.Service
}

// New поднимает зависимости. RabbitMQ необязателен: без брокера письма
// об оплате не отправляются, остальное работает.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	secrets, err := db.SecretsMap(ctx)
	if err != nil {
		logger.Warn("failed to load secrets from storage", sl.Err(err))
	} else if applied := cfg.ApplySecrets(secrets); len(applied) > 0 {
		logger.Info("secrets applied from storage", slog.Any("keys", applied))
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{logger: logger, db: db, cache: cacheRedis}

	var publisher paymentservice.Publisher
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		logger.Warn("rabbitmq unavailable, payment emails disabled", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			logger.Warn("rabbitmq channel setup failed, payment emails disabled", sl.Err(err))
			_ = conn.Close()
		} else {
			app.conn = conn
			app.pub = rabbitmq.NewPublisher(ch)
			publisher = app.pub
		}
	}

	panel := remnawave.NewClient(cfg.VPNPanel.BaseURL, cfg.VPNPanel.Token, cfg.VPNPanel.Timeout, cfg.VPNPanel.PageSize)
	vpn := vpnservice.New(logger, panel, db, vpnservice.Defaults{
		SquadUUID:      cfg.VPNPanel.DefaultSquad,
		TrafficLimitGB: cfg.VPNPanel.TrafficLimitGB,
	})
	referrals := referralservice.New(logger, db, vpn, cfg.Referral.BonusDays)

	gateway := yookassa.NewClient(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey, cfg.YooKassa.APIURL, cfg.YooKassa.Timeout)
	payments := paymentservice.New(logger, db, db.Plans(), gateway, vpn, referrals, publisher, paymentservice.Settings{
		Currency:      cfg.YooKassa.Currency,
		ReturnURL:     cfg.YooKassa.ReturnURL,
		WebhookSecret: cfg.YooKassa.WebhookSecret,
		RoutingKey:    rabbitmq.PaymentRoutingKey,
	})

	guard := bruteforce.New(logger, db, bruteforce.Settings{
		Window:    cfg.BruteForce.Window,
		Threshold: cfg.BruteForce.Threshold,
		Retention: cfg.BruteForce.Retention,
	})
	sessionSecret := cfg.Admin.SessionSecret
	if sessionSecret == "" {
		logger.Warn("admin session secret is empty, falling back to admin secret")
		sessionSecret = cfg.Admin.Secret
	}
	authService := auth.New(logger, guard, cacheRedis, jwt.NewJWTMaker(sessionSecret, cfg.Admin.SessionTTL), auth.Credentials{
		PasswordHash: cfg.Admin.PasswordHash,
		Password:     cfg.Admin.Secret,
	})

	app.jobs = scheduler.NewSchedulerService(logger,
		scheduler.Job{
			Name:     "vpn_uuid_resync",
			Interval: cfg.VPNPanel.ResyncInterval,
			Run: func(ctx context.Context) error {
				_, err := vpn.Resync(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "login_attempts_purge",
			Interval: time.Hour,
			Run: func(ctx context.Context) error {
				_, err := db.PurgeLoginAttempts(ctx, time.Now().Add(-cfg.BruteForce.Retention))
				return err
			},
		},
	)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, Services{
		Storage:  db,
		Cache:    cacheRedis,
		Payments: payments,
		VPN:      vpn,
		Referral: referrals,
		Auth:     authService,
	})

	app.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	jobsCtx, stopJobs := context.WithCancel(ctx)
	jobsDone := make(chan struct{})
	go func() {
		a.jobs.Start(jobsCtx)
		close(jobsDone)
	}()
	// Фоновые задачи останавливаются до закрытия хранилища.
	shutdown := func() {
		stopJobs()
		<-jobsDone
		a.close()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		shutdown()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		shutdown()
		return err
	}
}

func (a *App) close() {
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
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close postgres", sl.Err(err))
	}
}
