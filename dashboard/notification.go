package dashboard

import (
	"fmt"
	"time"
)

// NotificationKind identifies one of the user-facing failure messages
type NotificationKind string

const (
	LocationNotFound NotificationKind = "location_not_found"
	CityNotFound     NotificationKind = "city_not_found"
)

// Notification is a fire-and-forget message for the presentation layer
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	CycleID string           `json:"cycleId,omitempty"`
	At      time.Time        `json:"at"`
}

// Notifier receives notifications. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

func locationNotFound() (NotificationKind, string) {
	return LocationNotFound, "Location not found. Please try again."
}

func cityNotFound(city string) (NotificationKind, string) {
	return CityNotFound, fmt.Sprintf("City not found: %s. Please enter a valid city name.", city)
}
