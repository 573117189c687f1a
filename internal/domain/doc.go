// Package domain models earthquake records served by the GeoNames
// earthquakes web service and the ranking rules used to display them.
//
// # Data Source
//
// Records come from the GeoNames earthquakesJSON endpoint
// (http://api.geonames.org/earthquakesJSON). A request names a bounding box
// (north, south, east, west in decimal degrees), an optional maxRows cap,
// and the account username that GeoNames meters credits against.
//
// # Wire Conventions
//
// Each element of the "earthquakes" array looks like:
//
//	{"datetime":"2011-03-11 04:46:23","depth":24.4,"lng":142.369,
//	 "src":"us","eqid":"c0001xgp","magnitude":8.8,"lat":38.322}
//
// The datetime carries no zone and is interpreted as UTC. Latitude or
// longitude may be missing; such records are still listed but never get a
// map marker.
//
// # Ranking
//
// Display order is magnitude descending, then datetime descending, stable for
// full ties. See [SortByMagnitudeThenRecency].
//
// The world overview keeps the strongest recent events. Records are first
// restricted to the last calendar year (dates compared at day granularity,
// boundary inclusive), then cut to ten and sorted. Cutting before sorting can
// drop a stronger event that sits past the tenth filtered entry; that is the
// deployed behavior and stays the default. [OrderFilterSortTruncate] selects
// the alternative. See [TopTen].
package domain
