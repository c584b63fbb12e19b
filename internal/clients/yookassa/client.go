// Package yookassa клиент платёжного API ЮKassa.
package yookassa

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-storefront/internal/lib/upstream"
)

const service = "yookassa"

// Client клиент ЮKassa с Basic-авторизацией shopID:secretKey.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент ЮKassa
func NewClient(shopID, secretKey, apiURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = "https://api.yookassa.ru/v3"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreatePayment создаёт платёж. idempotenceKey защищает от двойного списания
// при повторе запроса; пустой ключ заменяется случайным UUID.
func (c *Client) CreatePayment(ctx context.Context, params CreatePaymentRequest, idempotenceKey string) (*Payment, error) {
	const op = "yookassa.CreatePayment"

	req, err := c.newRequest(ctx, http.MethodPost, "/payments", params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if idempotenceKey == "" {
		idempotenceKey = uuid.NewString()
	}
	req.Header.Set("Idempotence-Key", idempotenceKey)

	var p Payment
	if err = c.do(req, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// GetPayment перечитывает платёж по идентификатору.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	const op = "yookassa.GetPayment"

	req, err := c.newRequest(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var p Payment
	if err = c.do(req, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream.TransportError(service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return upstream.ResponseError(service, resp)
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ConfirmationURL адрес страницы оплаты для redirect-подтверждения.
func (p *Payment) ConfirmationURL() string {
	if p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}

// VerifySignature проверяет HMAC-SHA256 подпись тела уведомления.
// Подпись ищется в заголовке Authorization ("HMAC <hex>" или "HMAC-SHA256 <hex>")
// и в Content-Yoomoney-Signature.
func VerifySignature(secret string, body []byte, header http.Header) bool {
	if secret == "" {
		return false
	}
	var signatures []string
	if auth := header.Get("Authorization"); auth != "" {
		if scheme, sig, ok := strings.Cut(auth, " "); ok && (scheme == "HMAC" || scheme == "HMAC-SHA256") {
			signatures = append(signatures, strings.TrimSpace(sig))
		}
	}
	if sig := header.Get("Content-Yoomoney-Signature"); sig != "" {
		signatures = append(signatures, sig)
	}

	calc := Sign(secret, body)
	for _, sig := range signatures {
		if hmac.Equal([]byte(strings.ToLower(sig)), []byte(calc)) {
			return true
		}
	}
	return false
}

// Sign вычисляет подпись тела в формате VerifySignature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
