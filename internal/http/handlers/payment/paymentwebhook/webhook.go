// Package paymentwebhook принимает уведомления ЮKassa об изменении статуса платежа.
//
// Ответ 200 означает, что уведомление принято и повторная доставка не нужна.
// Ошибка проверки платежа в шлюзе или сохранения статуса отдаётся кодом 5xx,
// чтобы ЮKassa повторила уведомление; сбои последующих шагов (выдача VPN,
// реферальный бонус, письмо) на код ответа не влияют.
package paymentwebhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	paymentsvc "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
)

const maxBodySize = 1 << 20

// Service обработка уведомления.
type Service interface {
	HandleNotification(ctx context.Context, body []byte, header http.Header) (*paymentsvc.WebhookResult, error)
}

// Handler обработчик POST /payments/webhook.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Уведомление ЮKassa
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректное тело"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 502 {object} response.ErrorResponse "Шлюз недоступен, уведомление будет повторено"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read body", sl.Err(err))
		response.Abort(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.HandleNotification(r.Context(), body, r.Header)
	if err != nil {
		log.Error("notification not accepted", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	if len(res.Errors) > 0 {
		log.Warn("payment processed with failed steps",
			slog.String("payment_id", res.PaymentID),
			slog.Any("errors", res.Errors),
		)
	}
	render.JSON(w, r, response.OKWithData(res))
}
