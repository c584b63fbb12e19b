package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

type ReviewCreatorMock struct {
	mock.Mock
}

func (m *ReviewCreatorMock) Create(ctx context.Context, v models.Review) (int64, error) {
	args := m.Called(ctx, v)
	return args.Get(0).(int64), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestList(t *testing.T) {
	t.Run("items", func(t *testing.T) {
		h := List(newNoopLogger(), "plans", func(context.Context) ([]models.Plan, error) {
			return []models.Plan{{ID: 1, Name: "Год"}}, nil
		})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"Год"`)
	})

	t.Run("empty", func(t *testing.T) {
		h := List(newNoopLogger(), "news", func(context.Context) ([]models.News, error) { return nil, nil })
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/news", nil))
		assert.JSONEq(t, `{"status":"OK","data":[]}`, w.Body.String())
	})

	t.Run("error", func(t *testing.T) {
		h := List(newNoopLogger(), "news", func(context.Context) ([]models.News, error) {
			return nil, errors.New("db down")
		})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/news", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "db down")
	})
}

func TestSubmitReview(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(m *ReviewCreatorMock)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "stored unapproved",
			body: `{"author":" Ivan ","rating":5,"text":"Всё работает"}`,
			setupMocks: func(m *ReviewCreatorMock) {
				m.On("Create", mock.Anything, models.Review{Author: "Ivan", Rating: 5, Text: "Всё работает"}).
					Return(int64(10), nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"approved":false`,
		},
		{
			name:           "rating out of range",
			body:           `{"author":"Ivan","rating":6,"text":"x","approved":true}`,
			setupMocks:     func(m *ReviewCreatorMock) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `field Rating`,
		},
		{
			name:           "malformed",
			body:           `nope`,
			setupMocks:     func(m *ReviewCreatorMock) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(ReviewCreatorMock)
			tt.setupMocks(repo)

			w := httptest.NewRecorder()
			NewSubmitReview(newNoopLogger(), repo).ServeHTTP(w,
				httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			repo.AssertExpectations(t)
		})
	}
}
