package datasource

import (
	"context"

	"weather-dashboard/models"
)

// Geocoder resolves free-text place names and coordinates into locations
type Geocoder interface {
	// FindByName returns the first match for a city name, or *NotFoundError
	FindByName(ctx context.Context, name string) (models.Location, error)

	// ReverseLookup names the place at the given coordinates.
	// An unnamed place resolves to models.UnknownLocationName rather than failing.
	ReverseLookup(ctx context.Context, coords models.Coordinates) (models.Location, error)

	Name() string
}

// ConditionsSource fetches the most recent observation for a position
type ConditionsSource interface {
	CurrentConditions(ctx context.Context, coords models.Coordinates) (models.CurrentConditions, error)
	Name() string
}

// ForecastSource fetches the raw 3-hour forecast series for a position
type ForecastSource interface {
	ForecastSeries(ctx context.Context, coords models.Coordinates) (models.ForecastSeries, error)
	Name() string
}

// Upstream is a weather API that serves all three lookups
type Upstream interface {
	Geocoder
	ConditionsSource
	ForecastSource
}
