package models

import "time"

// VPNUser учётная запись во внешней панели VPN.
type VPNUser struct {
	UUID              string     `json:"uuid"`
	Username          string     `json:"username"`
	Status            string     `json:"status,omitempty"`
	ExpireAt          *time.Time `json:"expire_at,omitempty"`
	TrafficLimitBytes int64      `json:"traffic_limit_bytes"`
	UsedTrafficBytes  int64      `json:"used_traffic_bytes"`
	SubscriptionURL   string     `json:"subscription_url,omitempty"`
}

// ProvisionPlan параметры выдачи доступа.
type ProvisionPlan struct {
	Days           int
	TrafficLimitGB int64
	SquadUUID      string
}

// UserUUID локальный кеш соответствия username -> uuid.
type UserUUID struct {
	Username  string    `json:"username"`
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"created_at"`
}
