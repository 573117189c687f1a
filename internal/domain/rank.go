package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// TopTenOrder selects how TopTen combines filtering, truncation and sorting.
type TopTenOrder int

const (
	// OrderFilterTruncateSort filters to the last year, keeps the first n
	// filtered records in service order, then sorts them. A stronger event
	// past the first n filtered records is not considered.
	OrderFilterTruncateSort TopTenOrder = iota
	// OrderFilterSortTruncate filters, sorts, then keeps the first n.
	OrderFilterSortTruncate
)

func (o TopTenOrder) String() string {
	switch o {
	case OrderFilterTruncateSort:
		return "filter-truncate-sort"
	case OrderFilterSortTruncate:
		return "filter-sort-truncate"
	default:
		return fmt.Sprintf("TopTenOrder(%d)", int(o))
	}
}

// ParseTopTenOrder parses the names produced by TopTenOrder.String.
func ParseTopTenOrder(s string) (TopTenOrder, error) {
	switch s {
	case "filter-truncate-sort":
		return OrderFilterTruncateSort, nil
	case "filter-sort-truncate":
		return OrderFilterSortTruncate, nil
	default:
		return 0, fmt.Errorf("unknown top ten order %q", s)
	}
}

// compareQuakes orders by magnitude descending, then datetime descending.
func compareQuakes(a, b Quake) int {
	if c := cmp.Compare(b.Magnitude, a.Magnitude); c != 0 {
		return c
	}
	return b.DateTime.Compare(a.DateTime)
}

// SortByMagnitudeThenRecency returns a sorted copy of quakes. Records equal
// in both magnitude and datetime keep their input order.
func SortByMagnitudeThenRecency(quakes []Quake) []Quake {
	sorted := slices.Clone(quakes)
	slices.SortStableFunc(sorted, compareQuakes)
	return sorted
}

// FilterWithinLastYear keeps records whose calendar date is on or after the
// calendar date one year before ref. Time of day is ignored on both sides.
func FilterWithinLastYear(quakes []Quake, ref time.Time) []Quake {
	cutoff := oneYearBefore(calendarDate(ref))
	kept := make([]Quake, 0, len(quakes))
	for _, q := range quakes {
		if !calendarDate(q.DateTime).Before(cutoff) {
			kept = append(kept, q)
		}
	}
	return kept
}

// TakeTop returns the first n records in input order.
func TakeTop(quakes []Quake, n int) []Quake {
	if n <= 0 {
		return []Quake{}
	}
	if len(quakes) <= n {
		return slices.Clone(quakes)
	}
	return slices.Clone(quakes[:n])
}

// TopTen selects the n strongest records of the last year relative to ref,
// combining the steps as order dictates. The result is always sorted.
func TopTen(quakes []Quake, ref time.Time, n int, order TopTenOrder) []Quake {
	recent := FilterWithinLastYear(quakes, ref)
	if order == OrderFilterSortTruncate {
		return TakeTop(SortByMagnitudeThenRecency(recent), n)
	}
	return SortByMagnitudeThenRecency(TakeTop(recent, n))
}

// calendarDate drops the time of day, keeping the date as written in t's own
// location. The result is expressed in UTC so dates from different zones compare.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// oneYearBefore subtracts a calendar year, clamping Feb 29 to Feb 28.
func oneYearBefore(day time.Time) time.Time {
	y, m, d := day.Date()
	prev := time.Date(y-1, m, d, 0, 0, 0, 0, time.UTC)
	if prev.Day() != d {
		// Day zero of the next month is the last day of month m.
		prev = time.Date(y-1, m+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return prev
}
