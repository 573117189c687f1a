package coordinator

import (
	"fmt"

	"github.com/adrian-cg/earthquakes/internal/domain"
)

// Event is a user interaction routed to the coordinator.
type Event interface {
	eventName() string
}

// PlaceSelected is raised when the place search settles on a place.
type PlaceSelected struct {
	Place domain.Place
}

func (PlaceSelected) eventName() string { return "place_selected" }

// TopTenRequested is raised by the "show world" action.
type TopTenRequested struct{}

func (TopTenRequested) eventName() string { return "top_ten_requested" }

// State is the coordinator's interaction state.
type State int32

const (
	Uninitialized State = iota
	MapReady
	AwaitingQuery
	ResultsDisplayed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case MapReady:
		return "map_ready"
	case AwaitingQuery:
		return "awaiting_query"
	case ResultsDisplayed:
		return "results_displayed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
