package geonames

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/adrian-cg/earthquakes/internal/observability"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedSource wraps an EarthquakeSource with an in-memory expiring LRU cache.
type CachedSource struct {
	inner   domain.EarthquakeSource
	cache   *expirable.LRU[string, []domain.Quake]
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a source.
func NewCachedSource(inner domain.EarthquakeSource, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   expirable.NewLRU[string, []domain.Quake](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

func (c *CachedSource) FetchEarthquakes(ctx context.Context, bbox domain.BoundingBox, maxRows int) ([]domain.Quake, error) {
	key := cacheKey(bbox, maxRows)
	if quakes, ok := c.cache.Get(key); ok {
		c.metrics.GeoNamesCache.WithLabelValues("hit").Inc()
		return slices.Clone(quakes), nil
	}
	c.metrics.GeoNamesCache.WithLabelValues("miss").Inc()

	quakes, err := c.inner.FetchEarthquakes(ctx, bbox, maxRows)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so an empty region is asked again next time.
	if len(quakes) > 0 {
		c.cache.Add(key, slices.Clone(quakes))
	}
	return quakes, nil
}

// Len reports the number of cached responses.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}

func cacheKey(bbox domain.BoundingBox, maxRows int) string {
	return fmt.Sprintf("%.6f|%.6f|%.6f|%.6f|%d", bbox.North, bbox.South, bbox.East, bbox.West, maxRows)
}
