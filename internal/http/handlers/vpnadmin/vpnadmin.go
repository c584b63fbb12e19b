// Package vpnadmin административные обработчики учётных записей VPN.
package vpnadmin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/expiry"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Service шлюз панели VPN.
type Service interface {
	List(ctx context.Context) ([]models.VPNUser, error)
	Get(ctx context.Context, username string) (*models.VPNUser, error)
	CreateOrUpdate(ctx context.Context, username string, expireAt time.Time, plan models.ProvisionPlan) (*models.VPNUser, error)
	Extend(ctx context.Context, username string, days int) (time.Time, error)
	Delete(ctx context.Context, username string) error
	Resync(ctx context.Context) (int, error)
	CachedUUIDs(ctx context.Context) ([]models.UserUUID, error)
}

// PaymentHistory удаление истории платежей при удалении пользователя.
type PaymentHistory interface {
	DeleteHistory(ctx context.Context, username string) (int64, error)
}

// UpsertRequest создание или обновление пользователя.
// Срок задаётся либо expire_at, либо days от текущего момента.
type UpsertRequest struct {
	Username       string     `json:"username" validate:"required,max=64"`
	ExpireAt       *time.Time `json:"expire_at"`
	Days           int        `json:"days" validate:"gte=0"`
	TrafficLimitGB int64      `json:"traffic_limit_gb" validate:"gte=0"`
	SquadUUID      string     `json:"squad_uuid" validate:"omitempty,uuid"`
}

// ExtendRequest продление доступа.
type ExtendRequest struct {
	Days int `json:"days" validate:"required,gt=0"`
}

// Handler обработчики /admin/vpn.
type Handler struct {
	log      *slog.Logger
	vpn      Service
	payments PaymentHistory
	validate *validator.Validate
	now      func() time.Time
}

// New создаёт Handler.
func New(log *slog.Logger, vpn Service, payments PaymentHistory) *Handler {
	return &Handler{
		log:      log,
		vpn:      vpn,
		payments: payments,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

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

// List все пользователи панели.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.list")

	users, err := h.vpn.List(r.Context())
	if err != nil {
		log.Error("failed to list vpn users", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if users == nil {
		users = []models.VPNUser{}
	}
	render.JSON(w, r, response.OKWithData(users))
}

// Get пользователь по имени.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.get")

	username := chi.URLParam(r, "username")
	user, err := h.vpn.Get(r.Context(), username)
	if err != nil {
		log.Warn("failed to get vpn user", slog.String("username", username), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(user))
}

// Upsert godoc
// @Summary Создать или обновить пользователя VPN
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body UpsertRequest true "Пользователь"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /admin/vpn/users [put]
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.upsert")

	var req UpsertRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	var expireAt time.Time
	switch {
	case req.ExpireAt != nil:
		expireAt = req.ExpireAt.UTC()
	case req.Days > 0:
		expireAt = h.now().UTC().Add(time.Duration(req.Days) * 24 * time.Hour)
	default:
		response.Abort(w, r, http.StatusBadRequest, "expire_at or days is required")
		return
	}

	user, err := h.vpn.CreateOrUpdate(r.Context(), strings.TrimSpace(req.Username), expireAt, models.ProvisionPlan{
		Days:           req.Days,
		TrafficLimitGB: req.TrafficLimitGB,
		SquadUUID:      req.SquadUUID,
	})
	if err != nil {
		log.Error("failed to upsert vpn user", slog.String("username", req.Username), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(user))
}

// Extend продлевает доступ на days дней от текущего срока.
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.extend")

	username := chi.URLParam(r, "username")
	var req ExtendRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	expireAt, err := h.vpn.Extend(r.Context(), username, req.Days)
	if err != nil {
		log.Error("failed to extend", slog.String("username", username), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"username":       username,
		"expire_at":      expireAt,
		"expire_at_unix": expiry.FormatUnix(expireAt),
	}))
}

// StepResult результат одного шага удаления.
type StepResult struct {
	OK      bool   `json:"ok"`
	Deleted *int64 `json:"deleted,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Delete удаляет пользователя из панели. С purge_payments=true также удаляет
// историю платежей; шаги выполняются независимо, при частичном успехе
// отдаётся 207 с результатом каждого шага.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.delete")

	username := chi.URLParam(r, "username")
	purge := r.URL.Query().Get("purge_payments") == "true"

	vpnErr := h.vpn.Delete(r.Context(), username)
	if vpnErr != nil {
		log.Error("failed to delete vpn user", slog.String("username", username), sl.Err(vpnErr))
	}
	if !purge {
		if vpnErr != nil {
			response.Fail(w, r, vpnErr)
			return
		}
		render.JSON(w, r, response.OKWithData(map[string]any{"vpn": StepResult{OK: true}}))
		return
	}

	results := map[string]StepResult{"vpn": {OK: true}}
	if vpnErr != nil {
		results["vpn"] = StepResult{Error: vpnErr.Error()}
	}
	n, payErr := h.payments.DeleteHistory(r.Context(), username)
	if payErr != nil {
		log.Error("failed to purge payments", slog.String("username", username), sl.Err(payErr))
		results["payments"] = StepResult{Error: payErr.Error()}
	} else {
		results["payments"] = StepResult{OK: true, Deleted: &n}
	}

	switch {
	case vpnErr == nil && payErr == nil:
		render.JSON(w, r, response.OKWithData(results))
	case vpnErr != nil && payErr != nil:
		render.Status(r, response.StatusFor(vpnErr))
		render.JSON(w, r, response.Response{Status: response.StatusError, Error: vpnErr.Error(), Data: results})
	default:
		render.Status(r, http.StatusMultiStatus)
		render.JSON(w, r, response.OKWithData(results))
	}
}

// Resync перечитывает всех пользователей панели в локальный кеш UUID.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.resync")

	n, err := h.vpn.Resync(r.Context())
	if err != nil {
		log.Error("resync failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	data := map[string]int{"synced": n}
	if cached, err := h.vpn.CachedUUIDs(r.Context()); err != nil {
		log.Warn("failed to count cached uuids", sl.Err(err))
	} else {
		data["cached"] = len(cached)
	}
	log.Info("uuid cache resynced", slog.Int("users", n))
	render.JSON(w, r, response.OKWithData(data))
}

// UUIDs содержимое локального кеша UUID.
func (h *Handler) UUIDs(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.vpn.uuids")

	uuids, err := h.vpn.CachedUUIDs(r.Context())
	if err != nil {
		log.Error("failed to list cached uuids", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if uuids == nil {
		uuids = []models.UserUUID{}
	}
	render.JSON(w, r, response.OKWithData(uuids))
}
