package domain

import "context"

// PropertyDetails is the backend's property record for a potential site.
// Unknown keys are ignored; every field is optional.
type PropertyDetails struct {
	LocationName      string `json:"location_name"`
	LandPrice         string `json:"land_price"`
	Electricity       string `json:"electricity"`
	Connectivity      string `json:"connectivity"`
	WaterAvailability string `json:"water_availability"`
	TaxIncentives     string `json:"tax_incentives"`
	ZoneType          string `json:"zone_type"`
	Notes             string `json:"notes"`
	EcoScore          Number `json:"eco_score"`
	CarbonImpact      Number `json:"carbon_impact"`
}

// PropertyDetailSource resolves property details by coordinates.
type PropertyDetailSource interface {
	PropertyDetails(ctx context.Context, at Coordinates) (PropertyDetails, error)
}
