package domain

import "time"

// BuiltFacility records a committed build.
type BuiltFacility struct {
	ID       string         `json:"id"`
	Building BuildingOption `json:"building"`
	Location Location       `json:"location"`
	DayBuilt int            `json:"day_built"`
	BuiltAt  time.Time      `json:"built_at"`
}

// FacilityBuiltEvent is the message published for each committed build.
type FacilityBuiltEvent struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	BuildingID   string    `json:"building_id"`
	BuildingName string    `json:"building_name"`
	LocationID   string    `json:"location_id"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	TotalCost    int       `json:"total_cost"`
	BudgetAfter  int       `json:"budget_after"`
	DayBuilt     int       `json:"day_built"`
	BuiltAt      time.Time `json:"built_at"`
}

// NewFacilityBuiltEvent describes f as built by username.
func NewFacilityBuiltEvent(username string, f BuiltFacility, totalCost, budgetAfter int) FacilityBuiltEvent {
	return FacilityBuiltEvent{
		ID:           f.ID,
		Username:     username,
		BuildingID:   f.Building.ID,
		BuildingName: f.Building.Name,
		LocationID:   f.Location.ID,
		LocationName: f.Location.Name,
		Latitude:     f.Location.Latitude,
		Longitude:    f.Location.Longitude,
		TotalCost:    totalCost,
		BudgetAfter:  budgetAfter,
		DayBuilt:     f.DayBuilt,
		BuiltAt:      f.BuiltAt,
	}
}
