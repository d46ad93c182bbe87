package domain

// RecentlyViewedLimit bounds the recently-viewed ring.
const RecentlyViewedLimit = 3

// RecordSelection returns the ring after the selection moves from previous to
// next. The superseded selection goes to the front, duplicates by id are
// dropped, and the ring never holds next itself. The input slice is not
// modified.
func RecordSelection(ring []Location, previous *Location, next Location) []Location {
	if previous == nil || previous.ID == next.ID {
		return clone(ring)
	}

	out := make([]Location, 0, RecentlyViewedLimit)
	out = append(out, *previous)
	for _, loc := range ring {
		if len(out) == RecentlyViewedLimit {
			break
		}
		if loc.ID == previous.ID || loc.ID == next.ID {
			continue
		}
		out = append(out, loc)
	}
	return out
}

func clone(ring []Location) []Location {
	if ring == nil {
		return nil
	}
	out := make([]Location, len(ring))
	copy(out, ring)
	return out
}
