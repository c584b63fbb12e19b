// Package metrics счётчики Prometheus, отдаваемые на /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests число обработанных запросов по маршруту и коду ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration время обработки запроса.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// WebhookEvents результаты обработки уведомлений ЮKassa.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment notifications by outcome.",
	}, []string{"outcome"})

	// PanelCalls вызовы панели VPN по операции и результату.
	PanelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpn_panel_calls_total",
		Help: "VPN panel operations by result.",
	}, []string{"op", "result"})

	// UUIDCache попадания и промахи локального кеша UUID.
	UUIDCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpn_uuid_cache_total",
		Help: "UUID cache lookups by result.",
	}, []string{"result"})

	// LoginBlocked попытки входа, отклонённые защитой от перебора.
	LoginBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "login_blocked_total",
		Help: "Login attempts rejected by the brute-force guard.",
	}, []string{"login_type"})

	// ReferralActivations начисления реферальных бонусов.
	ReferralActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referral_activations_total",
		Help: "Referral activations that credited bonus days.",
	})
)

// Result приводит ошибку к метке результата.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware считает запросы по шаблону маршрута chi, чтобы не плодить метки по id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
