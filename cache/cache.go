package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"
)

// entry is a cached value with the time it was stored
type entry[T any] struct {
	data      T
	timestamp time.Time
}

// ttlStore is a coordinate-keyed map whose entries expire after ttl
type ttlStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	hits    int
	misses  int
	now     func() time.Time
}

func newTTLStore[T any](ttl time.Duration) *ttlStore[T] {
	return &ttlStore[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get returns the cached value for key if present and not expired
func (s *ttlStore[T]) get(key string) (T, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[key]
	age := s.now().Sub(e.timestamp)
	if found && age < s.ttl {
		s.hits++
		return e.data, age, true
	}
	s.misses++
	var zero T
	return zero, 0, false
}

func (s *ttlStore[T]) put(key string, data T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{data: data, timestamp: s.now()}
}

func (s *ttlStore[T]) stats() (hits, misses int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses
}

// coordKey rounds coordinates to roughly 10 m so repeated lookups of the same spot share an entry
func coordKey(c models.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// CachedConditionsSource wraps a ConditionsSource and adds caching functionality
type CachedConditionsSource struct {
	source datasource.ConditionsSource
	store  *ttlStore[models.CurrentConditions]
	logger *slog.Logger
}

// NewCachedConditionsSource creates a new cached wrapper around a conditions source
func NewCachedConditionsSource(source datasource.ConditionsSource, cacheDuration time.Duration, logger *slog.Logger) *CachedConditionsSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedConditionsSource{
		source: source,
		store:  newTTLStore[models.CurrentConditions](cacheDuration),
		logger: logger.With("component", "cache"),
	}
}

// Name returns the name of the underlying source with [Cached] suffix
func (c *CachedConditionsSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// CurrentConditions fetches current conditions, using cache when available
func (c *CachedConditionsSource) CurrentConditions(ctx context.Context, coords models.Coordinates) (models.CurrentConditions, error) {
	key := coordKey(coords)
	if data, age, ok := c.store.get(key); ok {
		c.logger.Debug("conditions cache hit", "key", key, "source", c.source.Name(), "age", age.Round(time.Second))
		return data, nil
	}

	c.logger.Debug("conditions cache miss", "key", key, "source", c.source.Name())
	data, err := c.source.CurrentConditions(ctx, coords)
	if err != nil {
		return models.CurrentConditions{}, err
	}

	c.store.put(key, data)
	return data, nil
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedConditionsSource) CacheStats() (hits, misses int) {
	return c.store.stats()
}

// Ensure CachedConditionsSource implements the ConditionsSource interface
var _ datasource.ConditionsSource = (*CachedConditionsSource)(nil)
