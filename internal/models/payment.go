package models

import "time"

// Статусы платежа. Переход возможен только pending -> succeeded или pending -> canceled.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusCanceled  = "canceled"
)

// Источники платежа.
const (
	PaymentSourceYooKassa = "yookassa"
	PaymentSourceTelegram = "telegram"
)

// Payment запись о платеже.
type Payment struct {
	ID           int64     `json:"id"`
	PaymentID    string    `json:"payment_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	PlanID       *int64    `json:"plan_id,omitempty"`
	PlanName     string    `json:"plan_name"`
	PlanDays     int       `json:"plan_days"`
	Source       string    `json:"source"`
	ReferralCode string    `json:"referral_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PaymentFilter параметры выборки платежей.
type PaymentFilter struct {
	Username string
	Status   string
	Limit    int
	Offset   int
}

// PaymentNotification задание на отправку письма после успешной оплаты.
type PaymentNotification struct {
	PaymentID string     `json:"payment_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	PlanName  string     `json:"plan_name"`
	PlanDays  int        `json:"plan_days"`
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
	ExpireAt  *time.Time `json:"expire_at,omitempty"`
}

// Email письмо для отправки.
type Email struct {
	To      string
	Subject string
	Body    string
}
