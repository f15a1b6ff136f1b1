package datasource

import (
	"fmt"
)

// PositionErrorCode mirrors the numeric codes a geolocation provider reports
type PositionErrorCode int

const (
	PermissionDenied    PositionErrorCode = 1
	PositionUnavailable PositionErrorCode = 2
	PositionTimeout     PositionErrorCode = 3
)

func (c PositionErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission denied"
	case PositionUnavailable:
		return "position unavailable"
	case PositionTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// LocationPermissionError means the user's position could not be determined
type LocationPermissionError struct {
	Code    PositionErrorCode
	Message string
}

// NewLocationPermissionError builds the error from a raw provider code.
// Codes outside the known set are reported as PositionUnavailable.
func NewLocationPermissionError(code int, message string) *LocationPermissionError {
	c := PositionErrorCode(code)
	switch c {
	case PermissionDenied, PositionUnavailable, PositionTimeout:
	default:
		c = PositionUnavailable
	}
	return &LocationPermissionError{Code: c, Message: message}
}

func (e *LocationPermissionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geolocation failed: %s", e.Code)
	}
	return fmt.Sprintf("geolocation failed: %s: %s", e.Code, e.Message)
}

// NotFoundError means a lookup returned no results
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no location found for %q", e.Query)
}

// UpstreamError wraps a network or malformed-response failure from the weather API
type UpstreamError struct {
	Op         string // upstream operation, e.g. "current", "forecast"
	StatusCode int    // HTTP status when the API answered, 0 otherwise
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
