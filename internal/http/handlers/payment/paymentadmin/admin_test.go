package paymentadmin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
	paymentsvc "github.com/magabrotheeeer/vpn-storefront/internal/services/payment"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, f models.PaymentFilter) ([]models.Payment, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *MockService) DeleteHistory(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockService) MarkSucceeded(ctx context.Context, id string) (*paymentsvc.WebhookResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsvc.WebhookResult), args.Error(1)
}

func router(svc Service) http.Handler {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Get("/admin/payments", h.List)
	r.Delete("/admin/payments", h.Delete)
	r.Post("/admin/payments/{id}/succeed", h.Succeed)
	return r
}

func TestAdminPayments(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		url            string
		setupMocks     func(m *MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "list with filter",
			method: http.MethodGet,
			url:    "/admin/payments?username=alice&status=succeeded&limit=10&offset=5",
			setupMocks: func(m *MockService) {
				m.On("List", mock.Anything, models.PaymentFilter{Username: "alice", Status: "succeeded", Limit: 10, Offset: 5}).
					Return([]models.Payment{{PaymentID: "pay-1"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"payment_id":"pay-1"`,
		},
		{
			name:           "list bad limit",
			method:         http.MethodGet,
			url:            "/admin/payments?limit=x",
			setupMocks:     func(m *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "delete",
			method: http.MethodDelete,
			url:    "/admin/payments?username=alice",
			setupMocks: func(m *MockService) {
				m.On("DeleteHistory", mock.Anything, "alice").Return(int64(3), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"deleted":3`,
		},
		{
			name:           "delete without username",
			method:         http.MethodDelete,
			url:            "/admin/payments",
			setupMocks:     func(m *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "succeed",
			method: http.MethodPost,
			url:    "/admin/payments/pay-1/succeed",
			setupMocks: func(m *MockService) {
				m.On("MarkSucceeded", mock.Anything, "pay-1").
					Return(&paymentsvc.WebhookResult{Outcome: paymentsvc.OutcomeProcessed, PaymentID: "pay-1"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"outcome":"processed"`,
		},
		{
			name:   "succeed unknown",
			method: http.MethodPost,
			url:    "/admin/payments/nope/succeed",
			setupMocks: func(m *MockService) {
				m.On("MarkSucceeded", mock.Anything, "nope").Return(nil, models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMocks(svc)

			w := httptest.NewRecorder()
			router(svc).ServeHTTP(w, httptest.NewRequest(tt.method, tt.url, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
