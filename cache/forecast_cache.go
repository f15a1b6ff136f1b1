package cache

import (
	"context"
	"log/slog"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// CachedForecastSource wraps a ForecastSource and adds caching functionality.
// Cached series are shared between callers and must not be modified.
type CachedForecastSource struct {
	source datasource.ForecastSource
	store  *ttlStore[models.ForecastSeries]
	logger *slog.Logger
}

// NewCachedForecastSource creates a new cached wrapper around a forecast source
func NewCachedForecastSource(source datasource.ForecastSource, cacheDuration time.Duration, logger *slog.Logger) *CachedForecastSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedForecastSource{
		source: source,
		store:  newTTLStore[models.ForecastSeries](cacheDuration),
		logger: logger.With("component", "cache"),
	}
}

// Name returns the name of the underlying forecast source with [Cached] suffix
func (c *CachedForecastSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// ForecastSeries fetches the forecast series, using cache when available
func (c *CachedForecastSource) ForecastSeries(ctx context.Context, coords models.Coordinates) (models.ForecastSeries, error) {
	key := coordKey(coords)
	if series, age, ok := c.store.get(key); ok {
		c.logger.Debug("forecast cache hit", "key", key, "source", c.source.Name(), "age", age.Round(time.Second))
		return series, nil
	}

	c.logger.Debug("forecast cache miss", "key", key, "source", c.source.Name())
	series, err := c.source.ForecastSeries(ctx, coords)
	if err != nil {
		return models.ForecastSeries{}, err
	}

	c.store.put(key, series)
	return series, nil
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedForecastSource) CacheStats() (hits, misses int) {
	return c.store.stats()
}

// Ensure CachedForecastSource implements ForecastSource
var _ datasource.ForecastSource = (*CachedForecastSource)(nil)
