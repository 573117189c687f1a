package domain

import "context"

// EarthquakeSource retrieves earthquake records for a region.
type EarthquakeSource interface {
	// FetchEarthquakes returns the records inside bbox in service order.
	// maxRows <= 0 leaves the cap to the service.
	FetchEarthquakes(ctx context.Context, bbox BoundingBox, maxRows int) ([]Quake, error)
}
