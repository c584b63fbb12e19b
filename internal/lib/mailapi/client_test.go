package mailapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/upstream"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

func TestClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "shop@example.com", time.Second)
	err := c.Send(context.Background(), models.Email{To: "bob@example.com", Subject: "Hi", Body: "Text"})
	require.NoError(t, err)

	assert.Equal(t, sendRequest{From: "shop@example.com", To: []string{"bob@example.com"}, Subject: "Hi", Text: "Text"}, got)
}

func TestClient_Send_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid recipient"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "k", "f", time.Second).Send(context.Background(), models.Email{To: "x"})
	require.Error(t, err)
	status, ok := upstream.StatusOf(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestClient_Send_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "k", "f", 50*time.Millisecond).Send(context.Background(), models.Email{To: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstreamTimeout)
}
