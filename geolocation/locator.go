// Package geolocation supplies the user's position when a client asks the
// server to "use my location" without sending coordinates of its own.
package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"

	"github.com/go-resty/resty/v2"
)

// Locator determines the current position or fails with
// *datasource.LocationPermissionError
type Locator interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// StaticLocator always reports a configured position
type StaticLocator struct {
	coords *models.Coordinates
}

// NewStaticLocator creates a locator for the given position. A nil latitude
// or longitude yields a locator that reports the position as unavailable.
func NewStaticLocator(lat, lon *float64) *StaticLocator {
	if lat == nil || lon == nil {
		return &StaticLocator{}
	}
	return &StaticLocator{coords: &models.Coordinates{Latitude: *lat, Longitude: *lon}}
}

// Locate returns the configured position
func (s *StaticLocator) Locate(_ context.Context) (models.Coordinates, error) {
	if s.coords == nil {
		return models.Coordinates{}, &datasource.LocationPermissionError{
			Code:    datasource.PositionUnavailable,
			Message: "no default position configured",
		}
	}
	return *s.coords, nil
}

// IPLocator estimates the position from the server's public IP address
// using an ip-api.com compatible service
type IPLocator struct {
	client *resty.Client
}

// NewIPLocator creates an IP based locator
func NewIPLocator(baseURL string, timeout time.Duration) *IPLocator {
	return &IPLocator{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(timeout),
	}
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Locate queries the lookup service for the caller's approximate position
func (l *IPLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParam("fields", "status,message,lat,lon").
		Get("/json")
	if err != nil {
		if isTimeout(err) {
			return models.Coordinates{}, &datasource.LocationPermissionError{Code: datasource.PositionTimeout, Message: err.Error()}
		}
		return models.Coordinates{}, &datasource.LocationPermissionError{Code: datasource.PositionUnavailable, Message: err.Error()}
	}
	if !resp.IsSuccess() {
		return models.Coordinates{}, &datasource.LocationPermissionError{
			Code:    datasource.PositionUnavailable,
			Message: fmt.Sprintf("ip lookup returned %s", resp.Status()),
		}
	}

	var body ipLookupResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return models.Coordinates{}, &datasource.LocationPermissionError{
			Code:    datasource.PositionUnavailable,
			Message: fmt.Sprintf("parse ip lookup response: %v", err),
		}
	}
	if body.Status != "success" {
		return models.Coordinates{}, &datasource.LocationPermissionError{Code: datasource.PositionUnavailable, Message: body.Message}
	}

	return models.Coordinates{Latitude: body.Lat, Longitude: body.Lon}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
