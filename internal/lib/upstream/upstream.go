// Package upstream приводит ошибки обращений к внешним HTTP API к общей таксономии.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/vpn-storefront/internal/models"
)

const maxErrorBody = 4 << 10

// TransportError оборачивает ошибку http.Client.Do. Таймаут (по дедлайну контекста
// или клиента) превращается в models.ErrUpstreamTimeout: вызов мог дойти до
// удалённой стороны, и перед повтором состояние нужно перечитать.
func TransportError(service string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w: %v", service, models.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%s: %w", service, err)
}

// ResponseError читает тело ответа с кодом не 2xx и возвращает *models.UpstreamError.
// Из JSON-тела извлекаются поля errorCode/code и message/description, если они есть.
func ResponseError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &models.UpstreamError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}

	var parsed struct {
		ErrorCode   string `json:"errorCode"`
		Code        string `json:"code"`
		Message     string `json:"message"`
		Description string `json:"description"`
		Detail      string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Code = firstNonEmpty(parsed.ErrorCode, parsed.Code)
		if msg := firstNonEmpty(parsed.Message, parsed.Description, parsed.Detail); msg != "" {
			e.Message = msg
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// StatusOf возвращает HTTP-код внешнего API, если err его содержит.
func StatusOf(err error) (int, bool) {
	var ue *models.UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode, true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
