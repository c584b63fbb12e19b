package models

import "time"

// Типы входа, учитываемые защитой от перебора.
const (
	LoginTypeAdmin = "admin"
)

// LoginAttempt попытка входа.
type LoginAttempt struct {
	IPAddress   string    `json:"ip_address"`
	Username    string    `json:"username"`
	Success     bool      `json:"success"`
	LoginType   string    `json:"login_type"`
	AttemptTime time.Time `json:"attempt_time"`
}

// AdminSession выданная сессия администратора.
type AdminSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
