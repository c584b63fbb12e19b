// Package catalog публичные обработчики витрины: тарифы, локации, новости,
// отзывы, публичные настройки и коды счётчиков.
package catalog

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

// List возвращает обработчик, отдающий результат fetch как массив.
func List[T any](log *slog.Logger, name string, fetch func(ctx context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := "handlers.catalog." + name
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		items, err := fetch(r.Context())
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
}

// ReviewCreator сохранение отзыва.
type ReviewCreator interface {
	Create(ctx context.Context, v models.Review) (int64, error)
}

// ReviewSubmitRequest отзыв с сайта.
type ReviewSubmitRequest struct {
	Author string `json:"author" validate:"required,max=100"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Text   string `json:"text" validate:"required,max=2000"`
}

// SubmitReview обработчик публичной отправки отзыва.
type SubmitReview struct {
	log      *slog.Logger
	reviews  ReviewCreator
	validate *validator.Validate
}

// NewSubmitReview создаёт SubmitReview.
func NewSubmitReview(log *slog.Logger, reviews ReviewCreator) *SubmitReview {
	return &SubmitReview{log: log, reviews: reviews, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Оставить отзыв
// @Description Отзыв сохраняется неодобренным и появится на сайте после модерации.
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body ReviewSubmitRequest true "Отзыв"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /reviews [post]
func (h *SubmitReview) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.SubmitReview"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req ReviewSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Abort(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Author = strings.TrimSpace(req.Author)
	req.Text = strings.TrimSpace(req.Text)
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	id, err := h.reviews.Create(r.Context(), models.Review{
		Author:   req.Author,
		Rating:   req.Rating,
		Text:     req.Text,
		Approved: false,
	})
	if err != nil {
		log.Error("failed to save review", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("review submitted", slog.Int64("id", id))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{"id": id, "approved": false}))
}
