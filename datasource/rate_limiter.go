package datasource

import (
	"context"
	"fmt"

	"weather-dashboard/models"

	"golang.org/x/time/rate"
)

// RateLimitedUpstream wraps an Upstream with one token bucket per operation
type RateLimitedUpstream struct {
	upstream          Upstream
	lookupLimiter     *rate.Limiter
	conditionsLimiter *rate.Limiter
	forecastLimiter   *rate.Limiter
	name              string
}

// NewRateLimitedUpstream creates a rate limited upstream.
// rps is the maximum requests per second allowed per operation
// (can be fractional for less than 1 request per second)
// burst is the maximum burst size allowed
func NewRateLimitedUpstream(upstream Upstream, rps float64, burst int) *RateLimitedUpstream {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedUpstream{
		upstream:          upstream,
		lookupLimiter:     rate.NewLimiter(rate.Limit(rps), burst),
		conditionsLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		forecastLimiter:   rate.NewLimiter(rate.Limit(rps), burst),
		name:              fmt.Sprintf("%s [Rate Limited]", upstream.Name()),
	}
}

// FindByName implements Geocoder with rate limiting
func (r *RateLimitedUpstream) FindByName(ctx context.Context, name string) (models.Location, error) {
	if err := r.lookupLimiter.Wait(ctx); err != nil {
		return models.Location{}, &UpstreamError{Op: "find", Err: fmt.Errorf("rate limit wait canceled: %w", err)}
	}
	return r.upstream.FindByName(ctx, name)
}

// ReverseLookup implements Geocoder with rate limiting
func (r *RateLimitedUpstream) ReverseLookup(ctx context.Context, coords models.Coordinates) (models.Location, error) {
	if err := r.lookupLimiter.Wait(ctx); err != nil {
		return models.Location{}, &UpstreamError{Op: "reverse", Err: fmt.Errorf("rate limit wait canceled: %w", err)}
	}
	return r.upstream.ReverseLookup(ctx, coords)
}

// CurrentConditions implements ConditionsSource with rate limiting
func (r *RateLimitedUpstream) CurrentConditions(ctx context.Context, coords models.Coordinates) (models.CurrentConditions, error) {
	if err := r.conditionsLimiter.Wait(ctx); err != nil {
		return models.CurrentConditions{}, &UpstreamError{Op: "current", Err: fmt.Errorf("rate limit wait canceled: %w", err)}
	}
	return r.upstream.CurrentConditions(ctx, coords)
}

// ForecastSeries implements ForecastSource with rate limiting
func (r *RateLimitedUpstream) ForecastSeries(ctx context.Context, coords models.Coordinates) (models.ForecastSeries, error) {
	if err := r.forecastLimiter.Wait(ctx); err != nil {
		return models.ForecastSeries{}, &UpstreamError{Op: "forecast", Err: fmt.Errorf("rate limit wait canceled: %w", err)}
	}
	return r.upstream.ForecastSeries(ctx, coords)
}

// Name returns the upstream name
func (r *RateLimitedUpstream) Name() string {
	return r.name
}

// Verify that the rate limited type implements the required interfaces
var _ Upstream = (*RateLimitedUpstream)(nil)
