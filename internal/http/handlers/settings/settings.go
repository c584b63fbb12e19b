// Package settings административные обработчики настроек сайта и секретов.
// Значения секретов наружу не отдаются, только маска.
package settings

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

// Repository хранилище настроек и секретов.
type Repository interface {
	ListSettings(ctx context.Context, publicOnly bool) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, st models.Setting) error
	DeleteSetting(ctx context.Context, key string) error
	ListSecrets(ctx context.Context) ([]models.Secret, error)
	UpsertSecret(ctx context.Context, sc models.Secret) error
	DeleteSecret(ctx context.Context, key string) error
}

// Handler обработчики /admin/settings и /admin/secrets.
type Handler struct {
	log      *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{log: log, repo: repo, validate: validator.New()}
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

// SettingsRoutes GET /, PUT /, DELETE /{key}.
func (h *Handler) SettingsRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListSettings)
	r.Put("/", h.UpsertSetting)
	r.Delete("/{key}", h.DeleteSetting)
	return r
}

// SecretsRoutes GET /, PUT /, DELETE /{key}.
func (h *Handler) SecretsRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListSecrets)
	r.Put("/", h.UpsertSecret)
	r.Delete("/{key}", h.DeleteSecret)
	return r
}

// ListSettings все настройки, включая непубличные.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.settings.list")

	items, err := h.repo.ListSettings(r.Context(), false)
	if err != nil {
		log.Error("failed to list settings", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if items == nil {
		items = []models.Setting{}
	}
	render.JSON(w, r, response.OKWithData(items))
}

// UpsertSetting создаёт или заменяет настройку.
func (h *Handler) UpsertSetting(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.settings.upsert")

	var st models.Setting
	if !h.decode(w, r, log, &st) {
		return
	}
	if err := h.repo.UpsertSetting(r.Context(), st); err != nil {
		log.Error("failed to save setting", slog.String("key", st.Key), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]string{"key": st.Key}))
}

// DeleteSetting удаляет настройку.
func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.settings.delete")

	key := chi.URLParam(r, "key")
	if err := h.repo.DeleteSetting(r.Context(), key); err != nil {
		log.Error("failed to delete setting", slog.String("key", key), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]string{"deleted": key}))
}

// ListSecrets ключи секретов с замаскированными значениями.
func (h *Handler) ListSecrets(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.secrets.list")

	items, err := h.repo.ListSecrets(r.Context())
	if err != nil {
		log.Error("failed to list secrets", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	masked := make([]models.Secret, 0, len(items))
	for _, sc := range items {
		sc.Value = Mask(sc.Value)
		masked = append(masked, sc)
	}
	render.JSON(w, r, response.OKWithData(masked))
}

// UpsertSecret сохраняет секрет. Новое значение применяется при следующем запуске API.
func (h *Handler) UpsertSecret(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.secrets.upsert")

	var sc models.Secret
	if !h.decode(w, r, log, &sc) {
		return
	}
	sc.Key = strings.ToUpper(strings.TrimSpace(sc.Key))
	if err := h.repo.UpsertSecret(r.Context(), sc); err != nil {
		log.Error("failed to save secret", slog.String("key", sc.Key), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("secret updated", slog.String("key", sc.Key))
	render.JSON(w, r, response.OKWithData(map[string]string{"key": sc.Key, "value": Mask(sc.Value)}))
}

// DeleteSecret удаляет секрет.
func (h *Handler) DeleteSecret(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.admin.secrets.delete")

	key := chi.URLParam(r, "key")
	if err := h.repo.DeleteSecret(r.Context(), key); err != nil {
		log.Error("failed to delete secret", slog.String("key", key), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]string{"deleted": key}))
}

// Mask оставляет последние 4 символа значения длиннее 8 символов, остальное скрывает.
func Mask(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
