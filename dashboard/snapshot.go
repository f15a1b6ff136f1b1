package dashboard

import (
	"time"

	"weather-dashboard/models"
)

// Status is the dashboard's refresh state
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Snapshot is an immutable view of the dashboard. A new Snapshot replaces the
// previous one at every committed stage; values held by a Snapshot must not
// be modified by readers.
//
// Loading gates the whole page until the first location+conditions stage
// settles. Later cycles leave it cleared.
type Snapshot struct {
	CycleID   string                    `json:"cycleId,omitempty"`
	Status    Status                    `json:"status"`
	Loading   bool                      `json:"loading"`
	Location  *models.Location          `json:"location,omitempty"`
	Current   *models.CurrentConditions `json:"current,omitempty"`
	Hourly    []models.HourlyPoint      `json:"hourly,omitempty"`
	Daily     []models.DailyPoint       `json:"daily,omitempty"`
	UTCOffset int                       `json:"utcOffset"` // forecast city offset in seconds, 0 until known
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// HasForecast reports whether the forecast stage populated the snapshot
func (s Snapshot) HasForecast() bool {
	return s.Hourly != nil || s.Daily != nil
}
