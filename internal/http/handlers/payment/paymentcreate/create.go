// Package paymentcreate HTTP-обработчик создания платежа за тариф.
package paymentcreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	paymentsvc "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
)

// Service создание платежа.
type Service interface {
	CreatePayment(ctx context.Context, req paymentsvc.CreateRequest) (*paymentsvc.CreateResult, error)
}

// Request тело запроса на покупку.
type Request struct {
	Username     string `json:"username" validate:"required,max=64"`
	Email        string `json:"email" validate:"omitempty,email"`
	PlanID       int64  `json:"plan_id" validate:"required,gt=0"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=16"`
}

// Handler обработчик POST /payments.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Создать платёж
// @Description Создаёт платёж в ЮKassa и возвращает ссылку на страницу оплаты.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Покупка тарифа"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Router /payments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Abort(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.CreatePayment(r.Context(), paymentsvc.CreateRequest{
		Username:     req.Username,
		Email:        req.Email,
		PlanID:       req.PlanID,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(res))
}
