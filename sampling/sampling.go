// Package sampling reduces a raw 3-hour forecast series to the handful of
// summary points the dashboard displays. All functions are pure: they never
// modify their input and always return a new slice.
package sampling

import (
	"strings"
	"time"

	"weather-dashboard/models"
)

const (
	// HourlyHorizon bounds the hourly outlook
	HourlyHorizon = 24 * time.Hour
	// HourlyPoints is the display budget of the hourly outlook
	HourlyPoints = 5
	// RecordsPerDay is the number of records one day spans at a 3-hour cadence
	RecordsPerDay = 8
)

const (
	hourLabelLayout  = "03:04 PM"
	headerDateLayout = "January 2, 2006"
)

// WithinHorizon keeps the records stamped no later than now+24h.
// Records before now are kept as well.
func WithinHorizon(records []models.ForecastRecord, now time.Time) []models.ForecastRecord {
	horizon := now.Add(HourlyHorizon).Unix()
	out := make([]models.ForecastRecord, 0, len(records))
	for _, r := range records {
		if r.Timestamp <= horizon {
			out = append(out, r)
		}
	}
	return out
}

// NextHours down-samples the next 24 hours of records to at most
// HourlyPoints evenly strided points, labelled with the clock time in loc.
func NextHours(records []models.ForecastRecord, now time.Time, loc *time.Location) []models.HourlyPoint {
	filtered := WithinHorizon(records, now)
	step := max(1, len(filtered)/HourlyPoints)

	points := make([]models.HourlyPoint, 0, min(len(filtered), HourlyPoints))
	for i := 0; i < len(filtered) && len(points) < HourlyPoints; i += step {
		r := filtered[i]
		points = append(points, toPoint(r, HourLabel(r.Time(), loc)))
	}
	return points
}

// NextDays picks one representative record per day (indices 0, 8, 16, ...),
// labelled with the weekday name in loc
func NextDays(records []models.ForecastRecord, loc *time.Location) []models.DailyPoint {
	points := make([]models.DailyPoint, 0, (len(records)+RecordsPerDay-1)/RecordsPerDay)
	for i := 0; i < len(records); i += RecordsPerDay {
		r := records[i]
		points = append(points, toPoint(r, DayLabel(r.Time(), loc)))
	}
	return points
}

// HourLabel formats t as a 12-hour clock time with a lower-case marker, e.g. "03:00 pm"
func HourLabel(t time.Time, loc *time.Location) string {
	return strings.ToLower(t.In(zone(loc)).Format(hourLabelLayout))
}

// DayLabel returns the full weekday name of t in loc
func DayLabel(t time.Time, loc *time.Location) string {
	return t.In(zone(loc)).Weekday().String()
}

// HeaderLine formats the dashboard's date line, e.g.
// "October 19, 2026 | Monday | 09:30 am"
func HeaderLine(now time.Time, loc *time.Location) string {
	t := now.In(zone(loc))
	return t.Format(headerDateLayout) + " | " + t.Weekday().String() + " | " + HourLabel(t, loc)
}

func toPoint(r models.ForecastRecord, label string) models.DisplayPoint {
	return models.DisplayPoint{
		Label:       label,
		Temperature: r.Temperature,
		Description: r.Description,
		Icon:        r.Icon,
		IconURL:     models.IconURL(r.Icon),
	}
}

func zone(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
