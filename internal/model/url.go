package model

import "time"

// URL is a persisted short URL record.
type URL struct {
	ID            int64      `json:"id"`
	Alias         string     `json:"alias"`
	ShortURL      string     `json:"short_url"`
	TargetURL     string     `json:"url"`
	OwnerID       string     `json:"user_id"`
	IsCustomAlias bool       `json:"custom_alias"`
	ClickCount    uint64     `json:"clicks"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// URLFilter narrows list and count queries. Zero fields are ignored.
type URLFilter struct {
	OwnerID       string
	CreatedFrom   time.Time // inclusive
	CreatedBefore time.Time // exclusive
	IsCustomAlias *bool
}

// CreateURLRequest is the API request body
type CreateURLRequest struct {
	URL         string `json:"url" validate:"required,max=2048"`
	CustomAlias string `json:"custom_alias,omitempty" validate:"omitempty,alphanum,min=3,max=20"`
}

// ListURLsQuery is the query string of GET /url
type ListURLsQuery struct {
	Skip   int   `validate:"gte=0"`
	Limit  int   `validate:"gte=0,lte=100"`
	Custom *bool `validate:"-"`
}
