package models

import (
	"errors"
	"fmt"
)

// Ошибки доменного уровня. Обработчики сопоставляют их с HTTP-статусами.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("too many attempts")
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// UpstreamError описывает ответ внешнего API с кодом, отличным от 2xx.
type UpstreamError struct {
	Service    string
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: status %d: %s (%s)", e.Service, e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Message)
}
