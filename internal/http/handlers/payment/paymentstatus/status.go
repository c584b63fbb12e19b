// Package paymentstatus HTTP-обработчик статуса платежа.
package paymentstatus

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Service чтение платежа.
type Service interface {
	Status(ctx context.Context, paymentID string) (*models.Payment, error)
}

// Status публичное представление платежа, без e-mail.
type Status struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	PlanName  string `json:"plan_name"`
	PlanDays  int    `json:"plan_days"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

// Handler обработчик GET /payments/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Статус платежа
// @Tags Payments
// @Produce json
// @Param id path string true "ID платежа"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /payments/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if id == "" {
		response.Abort(w, r, http.StatusBadRequest, "payment id is required")
		return
	}
	p, err := h.service.Status(r.Context(), id)
	if err != nil {
		log.Warn("failed to read payment", slog.String("payment_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(Status{
		PaymentID: p.PaymentID,
		Status:    p.Status,
		PlanName:  p.PlanName,
		PlanDays:  p.PlanDays,
		Amount:    p.Amount,
		Currency:  p.Currency,
	}))
}
