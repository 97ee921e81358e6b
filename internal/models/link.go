package models

import (
	"fmt"
	"time"
)

// URLRecord хранимая запись короткой ссылки вместе с историей кликов
type URLRecord struct {
	ID          string       `json:"id"`
	OriginalURL string       `json:"originalUrl"`
	ShortCode   string       `json:"shortcode"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiryDate  time.Time    `json:"expiryDate"`
	Clicks      []ClickEvent `json:"clicks"`
}

// IsExpired reports whether the record is past its expiry at the given moment.
func (r *URLRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiryDate)
}

// TimeLeft возвращает человекочитаемый остаток времени жизни ссылки
func (r *URLRecord) TimeLeft(now time.Time) string {
	diff := r.ExpiryDate.Sub(now)
	if diff <= 0 {
		return "Expired"
	}

	minutes := int(diff / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%dm left", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh %dm left", hours, minutes%60)
	}

	return fmt.Sprintf("%dd %dh left", hours/24, hours%24)
}

type CreateLinkInput struct {
	OriginalURL string  `json:"url" binding:"required"`
	Validity    *int    `json:"validity,omitempty"` // минуты
	ShortCode   *string `json:"shortcode,omitempty"`
}

type LinkStats struct {
	ShortCode   string       `json:"shortcode"`
	OriginalURL string       `json:"original_url"`
	ShortURL    string       `json:"short_url"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiryDate  time.Time    `json:"expiry_date"`
	Expired     bool         `json:"expired"`
	Status      string       `json:"status"`
	TotalClicks int          `json:"total_clicks"`
	Clicks      []ClickEvent `json:"clicks"`
}
