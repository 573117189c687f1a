package domain

import (
	"fmt"
	"time"
)

// BoundingBox is a rectangular region in decimal degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// WorldBounds covers the whole planet.
var WorldBounds = BoundingBox{North: 90, South: -90, East: 180, West: -180}

// Valid reports whether south < north and west < east.
func (b BoundingBox) Valid() bool {
	return b.South < b.North && b.West < b.East
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("N%.4f S%.4f E%.4f W%.4f", b.North, b.South, b.East, b.West)
}

// Point is a WGS-84 latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Quake is a single earthquake record as reported by the service.
// Lat and Lng are nil when the service omitted them.
type Quake struct {
	DateTime  time.Time `json:"datetime"`
	Magnitude float64   `json:"magnitude"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	Depth     float64   `json:"depth,omitempty"`
	EQID      string    `json:"eqid,omitempty"`
	Source    string    `json:"src,omitempty"`
}

// Position returns the epicenter when both coordinates are present.
func (q Quake) Position() (Point, bool) {
	if q.Lat == nil || q.Lng == nil {
		return Point{}, false
	}
	return Point{Lat: *q.Lat, Lng: *q.Lng}, true
}

// Place is the result of a place search. A place picked from free text
// that the search could not resolve has neither a location nor a viewport.
type Place struct {
	Name     string       `json:"name"`
	Location *Point       `json:"location,omitempty"`
	Viewport *BoundingBox `json:"viewport,omitempty"`
}

// HasGeometry reports whether the place can be shown on a map.
func (p Place) HasGeometry() bool {
	return p.Location != nil || p.Viewport != nil
}

// Marker is a labelled map pin. RevealAfter schedules its appearance
// relative to the start of a plot so pins drop in rank order.
type Marker struct {
	Position    Point         `json:"position"`
	Label       string        `json:"label"`
	RevealAfter time.Duration `json:"reveal_after"`
}

// Display kinds.
const (
	DisplaySearch = "search"
	DisplayTopTen = "top_ten"
)

// Display is one completed display cycle: what was fetched and shown.
type Display struct {
	Kind        string      `json:"kind"`
	Bounds      BoundingBox `json:"bounds"`
	Quakes      []Quake     `json:"quakes"`
	DisplayedAt time.Time   `json:"displayed_at"`
}

// MarkerHandle identifies a marker placed on a map.
type MarkerHandle uint64

// Table names a rendered result table.
type Table string

// Result tables.
const (
	TableResults Table = "results"
	TableTopTen  Table = "top-ten"
)
