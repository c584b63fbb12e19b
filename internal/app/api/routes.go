package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/vpn-storefront/docs"
	"github.com/magabrotheeeer/vpn-storefront/internal/config"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/admin/crud"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/adminauth"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/catalog"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/health"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/payment/paymentadmin"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/payment/paymentcreate"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/payment/paymentstatus"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/referral"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/settings"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/handlers/vpnadmin"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-storefront/internal/metrics"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services) {
	// Глобальные middleware
	r.Use(
		middlewarectx.TrustedRealIP(logger, cfg.HTTPServer.TrustedProxies),
		middlewarectx.CORS(cfg.HTTPServer.AllowedOrigin),
		metrics.Middleware,
		middleware.RequestID,
		middleware.Logger,
		middlewarectx.Recoverer(logger),
	)

	db := svc.Storage
	limiter := middlewarectx.NewIPRateLimiter(2, 10, 10*time.Minute)
	referrals := referral.New(logger, svc.Referral)

	r.Route("/api/v1", func(r chi.Router) {
		// Витрина
		r.Get("/plans", catalog.List[models.Plan](logger, "plans", db.Plans().ListActive))
		r.Get("/locations", catalog.List[models.Location](logger, "locations", db.Locations().ListActive))
		r.Get("/news", catalog.List[models.News](logger, "news", db.News().ListPublished))
		r.Get("/reviews", catalog.List[models.Review](logger, "reviews", db.Reviews().ListApproved))
		r.Get("/tracking-codes", catalog.List[models.TrackingCode](logger, "tracking-codes", db.TrackingCodes().ListEnabled))
		r.Get("/settings", catalog.List[models.Setting](logger, "settings", func(ctx context.Context) ([]models.Setting, error) {
			return db.ListSettings(ctx, true)
		}))

		r.Get("/payments/{id}", paymentstatus.New(logger, svc.Payments).ServeHTTP)
		r.Get("/referrals/stats", referrals.Stats)

		// Webhook без ограничения частоты: YooKassa повторяет доставку сама
		r.Post("/payments/webhook", paymentwebhook.New(logger, svc.Payments).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Post("/reviews", catalog.NewSubmitReview(logger, db.Reviews()).ServeHTTP)
			r.Post("/payments", paymentcreate.New(logger, svc.Payments).ServeHTTP)
			r.Post("/referrals/code", referrals.Code)
			r.Post("/referrals/register", referrals.Register)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(middlewarectx.RateLimitMiddleware(logger, limiter)).
				Post("/auth", adminauth.New(logger, svc.Auth).ServeHTTP)

			// Общий ключ или токен сессии
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminAuth(logger, cfg.Admin.Secret, svc.Auth))
				registerAdmin(r, logger, svc, referrals)
			})
		})
	})

	r.Handle("/health", health.New(logger, map[string]health.Check{
		"postgres": db.DB.PingContext,
		"redis": func(ctx context.Context) error {
			return svc.Cache.Db.Ping(ctx).Err()
		},
	}))
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

func registerAdmin(r chi.Router, logger *slog.Logger, svc Services, referrals *referral.Handler) {
	db := svc.Storage

	r.Mount("/plans", crud.New[models.Plan](logger, "plans", db.Plans()).Routes())
	r.Mount("/locations", crud.New[models.Location](logger, "locations", db.Locations()).Routes())
	r.Mount("/news", crud.New[models.News](logger, "news", db.News()).Routes())
	r.Mount("/reviews", crud.New[models.Review](logger, "reviews", db.Reviews()).Routes())
	r.Mount("/tracking-codes", crud.New[models.TrackingCode](logger, "tracking-codes", db.TrackingCodes()).Routes())

	kv := settings.New(logger, db)
	r.Mount("/settings", kv.SettingsRoutes())
	r.Mount("/secrets", kv.SecretsRoutes())

	payments := paymentadmin.New(logger, svc.Payments)
	r.Get("/payments", payments.List)
	r.Delete("/payments", payments.Delete)
	r.Post("/payments/{id}/succeed", payments.Succeed)

	vpn := vpnadmin.New(logger, svc.VPN, svc.Payments)
	r.Get("/vpn/users", vpn.List)
	r.Put("/vpn/users", vpn.Upsert)
	r.Get("/vpn/users/{username}", vpn.Get)
	r.Post("/vpn/users/{username}/extend", vpn.Extend)
	r.Delete("/vpn/users/{username}", vpn.Delete)
	r.Post("/vpn/resync", vpn.Resync)
	r.Get("/vpn/uuids", vpn.UUIDs)

	r.Post("/referrals/activate", referrals.Activate)
}
