package domain

// Fallback catalogs substituted when a location source is unavailable or
// returns no usable records.
var (
	fallbackExisting = []Location{
		{ID: "existing-1", Name: "Northern Virginia", Coordinates: Coordinates{Latitude: 38.8, Longitude: -77.2}, Origin: OriginExisting},
		{ID: "existing-2", Name: "Oregon", Coordinates: Coordinates{Latitude: 45.5, Longitude: -122.5}, Origin: OriginExisting},
		{ID: "existing-3", Name: "Iceland", Coordinates: Coordinates{Latitude: 64.1, Longitude: -21.9}, Origin: OriginExisting},
		{ID: "existing-4", Name: "Singapore", Coordinates: Coordinates{Latitude: 1.3, Longitude: 103.8}, Origin: OriginExisting},
		{ID: "existing-5", Name: "Northern Sweden", Coordinates: Coordinates{Latitude: 65.6, Longitude: 22.1}, Origin: OriginExisting},
	}

	fallbackPotential = []Location{
		{ID: "potential-1", Coordinates: Coordinates{Latitude: 37.7749, Longitude: -122.4194}, Origin: OriginPotential},
		{ID: "potential-2", Coordinates: Coordinates{Latitude: 52.52, Longitude: 13.405}, Origin: OriginPotential},
		{ID: "potential-3", Coordinates: Coordinates{Latitude: -33.8688, Longitude: 151.2093}, Origin: OriginPotential},
	}
)

// FallbackLocations returns a fresh copy of the fallback catalog for origin.
// Unknown origins have no fallback.
func FallbackLocations(origin Origin) []Location {
	var src []Location
	switch origin {
	case OriginExisting:
		src = fallbackExisting
	case OriginPotential:
		src = fallbackPotential
	default:
		return nil
	}
	out := make([]Location, len(src))
	copy(out, src)
	return out
}
