package models

import (
	"time"
)

const (
	DirectSource    = "Direct"
	UnknownLocation = "Unknown"
)

type ClickEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}

// ClickMeta данные запроса, из которых собирается ClickEvent
type ClickMeta struct {
	Referrer string
	Location string
}

// NewClickEvent builds a click event, falling back to "Direct" and "Unknown"
// when the request carries no referrer or location.
func NewClickEvent(at time.Time, meta ClickMeta) ClickEvent {
	source := meta.Referrer
	if source == "" {
		source = DirectSource
	}

	location := meta.Location
	if location == "" {
		location = UnknownLocation
	}

	return ClickEvent{
		Timestamp: at,
		Source:    source,
		Location:  location,
	}
}
