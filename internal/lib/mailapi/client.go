// Package mailapi отправляет письма через REST API почтового провайдера.
package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/upstream"
	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

const service = "mailapi"

// Client клиент REST API отправки писем с Bearer-авторизацией.
type Client struct {
	apiURL     string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewClient создаёт Client.
func NewClient(apiURL, apiKey, from string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send отправляет письмо.
func (c *Client) Send(ctx context.Context, email models.Email) error {
	const op = "mailapi.Send"
	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, upstream.TransportError(service, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w", op, upstream.ResponseError(service, resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
