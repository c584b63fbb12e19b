package models

import "time"

// Plan тарифный план.
type Plan struct {
	ID             int64  `json:"id"`
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	Price          string `json:"price" validate:"required,numeric"`
	Days           int    `json:"days" validate:"required,gt=0"`
	TrafficLimitGB int64  `json:"traffic_limit_gb" validate:"gte=0"`
	SquadUUID      string `json:"squad_uuid" validate:"omitempty,uuid"`
	IsActive       bool   `json:"is_active"`
	SortOrder      int    `json:"sort_order"`
}

// Location сервер/регион, показываемый на сайте.
type Location struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required"`
	CountryCode string `json:"country_code" validate:"omitempty,len=2,alpha"`
	Flag        string `json:"flag"`
	IsActive    bool   `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

// News новость.
type News struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}

// Review отзыв клиента. Публичные отзывы создаются неодобренными.
type Review struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author" validate:"required,max=100"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Text      string    `json:"text" validate:"required,max=2000"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackingCode фрагмент счётчика аналитики.
type TrackingCode struct {
	ID        int64  `json:"id"`
	Name      string `json:"name" validate:"required"`
	Placement string `json:"placement" validate:"required,oneof=head body"`
	Code      string `json:"code" validate:"required"`
	Enabled   bool   `json:"enabled"`
}

// Setting настройка сайта.
type Setting struct {
	Key       string    `json:"key" validate:"required,max=100"`
	Value     string    `json:"value"`
	Public    bool      `json:"public"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Secret секрет, переопределяющий значение из окружения.
type Secret struct {
	Key       string    `json:"key" validate:"required,max=100"`
	Value     string    `json:"value" validate:"required"`
	UpdatedAt time.Time `json:"updated_at"`
}
