// Package domain models the EcoGrid data-center siting game: candidate sites,
// their derived environmental metrics, the purchase ledger, build catalog and
// the climate simulation series.
//
// # Data Sources
//
// Locations come from two backend endpoints. /alldatacenters lists existing
// data centers and /api/possible-datacenters lists sites that may be bought.
// Neither endpoint has a stable schema: depending on the backend build a site
// may arrive as
//
//	{"id": 3, "name": "Oregon", "latitude": 45.5, "longitude": -122.5}
//	{"ID": 3, "Name": "Oregon", "Latitude": 45.5, "Longitude": -122.5}
//	{"id": 3, "name": "Oregon", "position": {"lat": 45.5, "lng": -122.5}}
//
// [Normalizer] tries those shapes in that order and rejects anything else
// with [ErrMalformedSchema]. Coordinates are decoded as [Number] so a missing
// value can be told apart from a real 0; the [MissingValuePolicy] decides what
// happens to the missing case.
//
// # Enrichment
//
// A selected site is enriched with four scores (climate, renewable, grid,
// risk), a land cost and a handful of descriptive strings. Scores come from a
// [Scorer]; the reference [RandomScorer] samples these ranges:
//
//	climate   [60, 90)
//	renewable [40, 80)
//	grid      [40, 80)
//	risk      [70, 90)
//	land cost [2,000,000, 5,000,000)  existing sites only
//
// Potential sites take their land cost from the backend property record,
// whose price is text such as "$3,250,000". When the property lookup fails
// the site receives fixed neutral metrics (70/60/65/80, land cost 3,000,000)
// and [Enricher.Enrich] reports [ErrEnrichmentDegraded]. A [Location] holds
// all derived fields in one [Enrichment] value, so it is either fully
// enriched or not enriched at all.
//
// # Simulation
//
// The backend simulation returns two yearly temperature series, with and
// without the player's data centers. [Project] aligns them by position (not by
// year) and scales their difference for charting. Series of different length
// are rejected with [ErrSeriesLengthMismatch].
package domain
