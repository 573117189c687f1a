// Package memview provides in-memory map, table and notice collaborators for
// the coordinator, and a combined snapshot served by the HTTP API.
package memview

import "github.com/adrian-cg/earthquakes/internal/domain"

// View groups the collaborators that make up one rendered page.
type View struct {
	Map     *Map
	Tables  *Tables
	Notices *Notices
}

// NewView creates a view whose map starts at center and zoom.
func NewView(center domain.Point, zoom int) *View {
	return &View{
		Map:     NewMap(center, zoom),
		Tables:  NewTables(),
		Notices: NewNotices(),
	}
}

// Snapshot is the serialized page state.
type Snapshot struct {
	Map     MapState `json:"map"`
	Results []Row    `json:"results"`
	TopTen  []Row    `json:"top_ten"`
	Notices []Notice `json:"notices"`
}

// Snapshot copies the current page state.
func (v *View) Snapshot() Snapshot {
	return Snapshot{
		Map:     v.Map.State(),
		Results: v.Tables.Rows(domain.TableResults),
		TopTen:  v.Tables.Rows(domain.TableTopTen),
		Notices: v.Notices.List(),
	}
}
