package models

import "time"

// Статусы реферальной записи.
const (
	ReferralStatusPending   = "pending"
	ReferralStatusActivated = "activated"
)

// Referral строка реферального журнала. ReferredUsername пуст у строки,
// которая только хранит код реферера.
type Referral struct {
	ID               int64      `json:"id"`
	ReferrerUsername string     `json:"referrer_username"`
	ReferralCode     string     `json:"referral_code"`
	ReferredUsername *string    `json:"referred_username,omitempty"`
	BonusDays        int        `json:"bonus_days"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
}

// ReferralStats агрегат по рефереру.
type ReferralStats struct {
	Activated      int `json:"activated"`
	Pending        int `json:"pending"`
	TotalBonusDays int `json:"total_bonus_days"`
}
