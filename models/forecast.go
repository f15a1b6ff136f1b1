package models

import (
	"time"
)

const iconBaseURL = "https://openweathermap.org/img/wn/"

// ForecastRecord is a single raw forecast entry as returned upstream
type ForecastRecord struct {
	Timestamp   int64   `json:"timestampUtc"` // unix seconds
	Temperature float64 `json:"temperature"`  // in Celsius
	Description string  `json:"description"`
	Icon        string  `json:"iconId"`
}

// Time returns the record's instant
func (r ForecastRecord) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// ForecastSeries is an ordered run of forecast records for one location.
// Records ascend by timestamp at the upstream's fixed 3-hour cadence.
type ForecastSeries struct {
	Location  string           `json:"location"`
	UTCOffset int              `json:"utcOffset"` // seconds east of UTC for the forecast city
	Records   []ForecastRecord `json:"records"`
	Fetched   time.Time        `json:"fetched"`
}

// DisplayPoint is a labelled summary point derived from a ForecastRecord
type DisplayPoint struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Icon        string  `json:"iconId"`
	IconURL     string  `json:"iconUrl,omitempty"`
}

// HourlyPoint is one entry of the next-24-hours outlook
type HourlyPoint = DisplayPoint

// DailyPoint is one entry of the multi-day outlook
type DailyPoint = DisplayPoint

// IconURL returns the image URL for an upstream icon code, or "" when unset
func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return iconBaseURL + icon + ".png"
}
