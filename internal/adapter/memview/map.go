package memview

import (
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/adrian-cg/earthquakes/internal/domain"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// MaxZoom is the deepest zoom level the map accepts.
const MaxZoom = 21

// Map is a headless map: it tracks center, zoom, viewport and markers the way
// a browser map widget would, without drawing anything. Safe for concurrent use.
type Map struct {
	mu         sync.Mutex
	center     domain.Point
	zoom       int
	viewport   domain.BoundingBox
	markers    map[domain.MarkerHandle]domain.Marker
	nextHandle domain.MarkerHandle
}

// NewMap creates a map centered on center at zoom.
func NewMap(center domain.Point, zoom int) *Map {
	m := &Map{markers: make(map[domain.MarkerHandle]domain.Marker)}
	m.center = center
	m.zoom = clampZoom(zoom)
	m.viewport = viewportAround(m.center, m.zoom)
	return m
}

// SetCenter moves the map, keeping the zoom level.
func (m *Map) SetCenter(p domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = p
	m.viewport = viewportAround(m.center, m.zoom)
}

// SetZoom changes the zoom level around the current center.
func (m *Map) SetZoom(level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoom = clampZoom(level)
	m.viewport = viewportAround(m.center, m.zoom)
}

// FitToBounds shows exactly b: the viewport becomes b and the center and
// zoom are derived from it.
func (m *Map) FitToBounds(b domain.BoundingBox) {
	rect := rectFromBounds(b)

	m.mu.Lock()
	defer m.mu.Unlock()
	c := rect.Center()
	m.center = domain.Point{Lat: c.Lat.Degrees(), Lng: c.Lng.Degrees()}
	m.zoom = zoomForSpan(rect.Size().Lng.Degrees())
	m.viewport = b
}

// ViewportBounds returns the region currently visible.
func (m *Map) ViewportBounds() domain.BoundingBox {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// AddMarker places a marker and returns its handle.
func (m *Map) AddMarker(marker domain.Marker) domain.MarkerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHandle++
	m.markers[m.nextHandle] = marker
	return m.nextHandle
}

// RemoveMarker deletes a marker. Unknown handles are ignored.
func (m *Map) RemoveMarker(h domain.MarkerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, h)
}

// MapState is a point-in-time copy of the map.
type MapState struct {
	Center   domain.Point       `json:"center"`
	Zoom     int                `json:"zoom"`
	Viewport domain.BoundingBox `json:"viewport"`
	Markers  []domain.Marker    `json:"markers"`
}

// State returns a copy of the map with markers in placement order.
func (m *Map) State() MapState {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := slices.Sorted(maps.Keys(m.markers))
	markers := make([]domain.Marker, 0, len(handles))
	for _, h := range handles {
		markers = append(markers, m.markers[h])
	}
	return MapState{
		Center:   m.center,
		Zoom:     m.zoom,
		Viewport: m.viewport,
		Markers:  markers,
	}
}

// viewportAround returns the window a map of the given zoom shows around
// center: 360/2^zoom degrees wide and 180/2^zoom tall, clamped to the globe.
func viewportAround(center domain.Point, zoom int) domain.BoundingBox {
	scale := math.Exp2(float64(zoom))
	size := s2.LatLngFromDegrees(180/scale, 360/scale)
	rect := s2.RectFromCenterSize(s2.LatLngFromDegrees(center.Lat, center.Lng), size)
	return boundsFromRect(rect)
}

func rectFromBounds(b domain.BoundingBox) s2.Rect {
	return s2.Rect{
		Lat: r1.Interval{Lo: (s1.Angle(b.South) * s1.Degree).Radians(), Hi: (s1.Angle(b.North) * s1.Degree).Radians()},
		Lng: s1.IntervalFromEndpoints((s1.Angle(b.West) * s1.Degree).Radians(), (s1.Angle(b.East) * s1.Degree).Radians()),
	}
}

func boundsFromRect(r s2.Rect) domain.BoundingBox {
	return domain.BoundingBox{
		North: s1.Angle(r.Lat.Hi).Degrees(),
		South: s1.Angle(r.Lat.Lo).Degrees(),
		East:  s1.Angle(r.Lng.Hi).Degrees(),
		West:  s1.Angle(r.Lng.Lo).Degrees(),
	}
}

// zoomForSpan picks the deepest zoom whose window still covers lngSpan degrees.
func zoomForSpan(lngSpan float64) int {
	if lngSpan <= 0 {
		return MaxZoom
	}
	return clampZoom(int(math.Floor(math.Log2(360 / lngSpan))))
}

func clampZoom(z int) int {
	return min(max(z, 0), MaxZoom)
}
