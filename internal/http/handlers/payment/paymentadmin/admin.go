// Package paymentadmin административные операции с платежами.
package paymentadmin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
	paymentsvc "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
)

// Service операции над платежами.
type Service interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	DeleteHistory(ctx context.Context, username string) (int64, error)
	MarkSucceeded(ctx context.Context, paymentID string) (*paymentsvc.WebhookResult, error)
}

// Handler обработчики /admin/payments.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список платежей
// @Tags Admin
// @Produce json
// @Param username query string false "Пользователь"
// @Param status query string false "Статус"
// @Param limit query int false "Лимит (по умолчанию 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Router /admin/payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.payments.list")

	q := r.URL.Query()
	filter := models.PaymentFilter{
		Username: q.Get("username"),
		Status:   q.Get("status"),
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			response.Abort(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			response.Abort(w, r, http.StatusBadRequest, "invalid offset")
			return
		}
	}

	payments, err := h.service.List(r.Context(), filter)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	render.JSON(w, r, response.OKWithData(payments))
}

// Delete удаляет историю платежей пользователя (?username=).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.payments.delete")

	username := r.URL.Query().Get("username")
	if username == "" {
		response.Abort(w, r, http.StatusBadRequest, "username is required")
		return
	}
	n, err := h.service.DeleteHistory(r.Context(), username)
	if err != nil {
		log.Error("failed to delete payments", slog.String("username", username), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("payment history deleted", slog.String("username", username), slog.Int64("deleted", n))
	render.JSON(w, r, response.OKWithData(map[string]any{"deleted": n}))
}

// Succeed вручную подтверждает платёж и запускает выдачу.
func (h *Handler) Succeed(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.payments.succeed")

	id := chi.URLParam(r, "id")
	res, err := h.service.MarkSucceeded(r.Context(), id)
	if err != nil {
		log.Error("failed to mark payment", slog.String("payment_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(res))
}
