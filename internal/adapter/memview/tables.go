package memview

import (
	"sync"

	"github.com/adrian-cg/earthquakes/internal/domain"
)

// dateLayout matches the long date format shown in the result tables.
const dateLayout = "January 2, 2006"

// Row is one rendered table line.
type Row struct {
	Rank      int      `json:"rank"`
	Date      string   `json:"date"`
	Magnitude float64  `json:"magnitude"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

// Tables holds the rendered rows of every result table. Safe for concurrent use.
type Tables struct {
	mu   sync.Mutex
	rows map[domain.Table][]Row
}

// NewTables creates empty tables.
func NewTables() *Tables {
	return &Tables{rows: make(map[domain.Table][]Row)}
}

// RenderRows replaces all rows of table with quakes in the given order.
func (t *Tables) RenderRows(table domain.Table, quakes []domain.Quake) {
	rows := make([]Row, len(quakes))
	for i, q := range quakes {
		rows[i] = Row{
			Rank:      i + 1,
			Date:      q.DateTime.Format(dateLayout),
			Magnitude: q.Magnitude,
			Lat:       q.Lat,
			Lng:       q.Lng,
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[table] = rows
}

// Rows returns a copy of the rows of table.
func (t *Tables) Rows(table domain.Table) []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Row, len(t.rows[table]))
	copy(out, t.rows[table])
	return out
}
