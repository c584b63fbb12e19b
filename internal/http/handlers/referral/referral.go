// Package referral HTTP-обработчики реферальной программы.
package referral

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
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Service реферальный журнал.
type Service interface {
	GetOrCreateCode(ctx context.Context, referrer string) (string, error)
	RegisterReferred(ctx context.Context, code, referred string) error
	Activate(ctx context.Context, referrer, referred string) (bool, error)
	GetStats(ctx context.Context, referrer string) (models.ReferralStats, error)
}

// CodeRequest запрос кода приглашения.
type CodeRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

// RegisterRequest регистрация приглашённого.
type RegisterRequest struct {
	Code     string `json:"code" validate:"required,max=16"`
	Username string `json:"username" validate:"required,max=64"`
}

// ActivateRequest ручная активация приглашения.
type ActivateRequest struct {
	Referrer string `json:"referrer" validate:"required"`
	Referred string `json:"referred" validate:"required"`
}

// Handler обработчики /referrals.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// decode читает и валидирует тело запроса. При ошибке ответ уже записан.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Abort(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return false
	}
	return true
}

// Code godoc
// @Summary Получить код приглашения
// @Tags Referrals
// @Accept json
// @Produce json
// @Param request body CodeRequest true "Реферер"
// @Success 200 {object} response.Response
// @Router /referrals/code [post]
func (h *Handler) Code(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referral.code")

	var req CodeRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	code, err := h.service.GetOrCreateCode(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		log.Error("failed to get referral code", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]string{"code": code}))
}

// Register godoc
// @Summary Зарегистрироваться по коду
// @Tags Referrals
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Код и имя пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Неизвестный код"
// @Failure 409 {object} response.ErrorResponse "Пользователь уже приглашён"
// @Router /referrals/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referral.register")

	var req RegisterRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if err := h.service.RegisterReferred(r.Context(), req.Code, strings.TrimSpace(req.Username)); err != nil {
		log.Warn("referral registration rejected", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]string{"status": models.ReferralStatusPending}))
}

// Stats статистика реферера (?username=).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.referral.stats")

	username := r.URL.Query().Get("username")
	if username == "" {
		response.Abort(w, r, http.StatusBadRequest, "username is required")
		return
	}
	stats, err := h.service.GetStats(r.Context(), username)
	if err != nil {
		log.Error("failed to get stats", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(stats))
}

// Activate ручная активация приглашения администратором.
// Ошибки продления отдаются вместе с признаком начисления.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.referral.activate")

	var req ActivateRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	credited, err := h.service.Activate(r.Context(), req.Referrer, req.Referred)
	if err != nil && !credited {
		log.Error("activation failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	data := map[string]any{"credited": credited}
	if err != nil {
		log.Warn("activation credited with extension errors", sl.Err(err))
		data["errors"] = err.Error()
	}
	render.JSON(w, r, response.OKWithData(data))
}
