package models

import (
	"time"
)

// CurrentConditions is the most recent observation for a location.
// Numeric fields keep the precision supplied by the upstream API.
type CurrentConditions struct {
	Temperature     float64   `json:"temperature"` // in Celsius
	Description     string    `json:"description"` // short text description
	Icon            string    `json:"iconId"`      // upstream icon code
	IconURL         string    `json:"iconUrl,omitempty"`
	HumidityPercent int       `json:"humidityPercent"`
	WindSpeed       float64   `json:"windSpeed"` // in m/s
	FeelsLike       float64   `json:"feelsLike"` // in Celsius
	ObservedAt      time.Time `json:"observedAt"`
}
