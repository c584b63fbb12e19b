// Package crud реализует типовые административные HTTP-обработчики
// list/get/create/update/delete для сущностей каталога (тарифы, локации,
// новости, отзывы, коды счётчиков).
package crud

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-storefront/internal/http/response"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/sl"
)

// Repository хранилище сущности T.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Create(ctx context.Context, item T) (int64, error)
	Update(ctx context.Context, id int64, item T) error
	Delete(ctx context.Context, id int64) error
}

// Handler обработчики CRUD для одной сущности.
type Handler[T any] struct {
	log      *slog.Logger
	name     string
	repo     Repository[T]
	validate *validator.Validate
}

// New создаёт Handler. name используется в логах ("plans", "news", ...).
func New[T any](log *slog.Logger, name string, repo Repository[T]) *Handler[T] {
	return &Handler[T]{
		log:      log,
		name:     name,
		repo:     repo,
		validate: validator.New(),
	}
}

// Routes монтируемый роутер: GET /, POST /, GET /{id}, PUT /{id}, DELETE /{id}.
func (h *Handler[T]) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Handler[T]) logger(r *http.Request, action string) *slog.Logger {
	return h.log.With(
		slog.String("op", "handlers.admin."+h.name+"."+action),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List возвращает все записи.
func (h *Handler[T]) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "list")

	items, err := h.repo.List(r.Context())
	if err != nil {
		log.Error("failed to list", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	render.JSON(w, r, response.OKWithData(items))
}

// Get возвращает запись по id.
func (h *Handler[T]) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "get")

	id, ok := parseID(w, r)
	if !ok {
		return
	}
	item, err := h.repo.Get(r.Context(), id)
	if err != nil {
		log.Error("failed to get", slog.Int64("id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(item))
}

// Create создаёт запись и возвращает её id.
func (h *Handler[T]) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "create")

	item, ok := h.decode(w, r, log)
	if !ok {
		return
	}
	id, err := h.repo.Create(r.Context(), item)
	if err != nil {
		log.Error("failed to create", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("created", slog.Int64("id", id))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{"id": id}))
}

// Update заменяет запись по id.
func (h *Handler[T]) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "update")

	id, ok := parseID(w, r)
	if !ok {
		return
	}
	item, ok := h.decode(w, r, log)
	if !ok {
		return
	}
	if err := h.repo.Update(r.Context(), id, item); err != nil {
		log.Error("failed to update", slog.Int64("id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("updated", slog.Int64("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{"id": id}))
}

// Delete удаляет запись по id.
func (h *Handler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "delete")

	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		log.Error("failed to delete", slog.Int64("id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("deleted", slog.Int64("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{"deleted": id}))
}

func (h *Handler[T]) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger) (T, bool) {
	var item T
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Abort(w, r, http.StatusBadRequest, "invalid request body")
		return item, false
	}
	if err := h.validate.Struct(item); err != nil {
		log.Warn("validation failed", sl.Err(err))
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			response.Abort(w, r, http.StatusBadRequest, err.Error())
			return item, false
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
		return item, false
	}
	return item, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Abort(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
