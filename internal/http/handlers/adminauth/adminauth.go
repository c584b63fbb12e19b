// Package adminauth обработчик входа в админку: login, validate, logout.
package adminauth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/middlewarectx"
	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/jwt"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Действия запроса.
const (
	ActionLogin    = "login"
	ActionValidate = "validate"
	ActionLogout   = "logout"
)

// Service сессии администратора.
type Service interface {
	Login(ctx context.Context, ip, password string) (models.AdminSession, error)
	Validate(ctx context.Context, token string) (*jwt.SessionClaims, error)
	Logout(ctx context.Context, token string) error
}

// Request тело запроса. Токен может прийти и в заголовке X-Admin-Token.
type Request struct {
	Action   string `json:"action"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Handler обработчик POST /admin/auth.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Вход администратора
// @Description action=login выдаёт токен сессии, validate проверяет его, logout завершает сессию.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body Request true "Действие"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверный пароль или токен"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Router /admin/auth [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.auth"
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
	if req.Token == "" {
		req.Token = r.Header.Get(middlewarectx.HeaderAdminToken)
	}

	switch req.Action {
	case ActionLogin:
		ip := middlewarectx.ClientIP(r)
		session, err := h.service.Login(r.Context(), ip, req.Password)
		if err != nil {
			log.Warn("admin login failed", slog.String("ip", ip), sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.OKWithData(session))

	case ActionValidate:
		claims, err := h.service.Validate(r.Context(), req.Token)
		if err != nil {
			response.Fail(w, r, err)
			return
		}
		data := map[string]any{"valid": true}
		if claims.ExpiresAt != nil {
			data["expires_at"] = claims.ExpiresAt.Time
		}
		render.JSON(w, r, response.OKWithData(data))

	case ActionLogout:
		if err := h.service.Logout(r.Context(), req.Token); err != nil {
			response.Fail(w, r, err)
			return
		}
		render.JSON(w, r, response.OK())

	default:
		response.Abort(w, r, http.StatusBadRequest, "unknown action")
	}
}
