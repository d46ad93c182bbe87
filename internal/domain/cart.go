package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultCartCost is charged when an un-enriched location is ledgered.
	DefaultCartCost = 100_000

	defaultCartName  = "Untitled"
	defaultCartNotes = "Data center location"
)

// printer groups thousands the same way regardless of the host locale.
var printer = message.NewPrinter(language.English)

// FormatCurrency renders whole dollars with thousand separators, e.g. "$3,000,000".
func FormatCurrency(dollars int) string {
	return printer.Sprintf("$%d", dollars)
}

// CartEntry is one line of the remote purchase ledger. LandPrice is display
// text; Cost is the amount charged and is never parsed back from LandPrice.
type CartEntry struct {
	Coordinates
	Name        string `json:"name"`
	LandPrice   string `json:"land_price"`
	Electricity string `json:"electricity"`
	Notes       string `json:"notes"`
	Cost        int    `json:"cost,omitempty"`
}

// NewCartEntry builds the ledger line for loc.
func NewCartEntry(loc Location) CartEntry {
	cost := DefaultCartCost
	electricity := DefaultElectricity
	var notes string
	if e := loc.Enrichment; e != nil {
		if e.LandCost > 0 {
			cost = e.LandCost
		}
		electricity = orDefault(e.ElectricityCost, DefaultElectricity)
		notes = e.Description
	}

	return CartEntry{
		Coordinates: loc.Coordinates,
		Name:        orDefault(loc.Name, defaultCartName),
		LandPrice:   FormatCurrency(cost),
		Electricity: electricity,
		Notes:       orDefault(notes, defaultCartNotes),
		Cost:        cost,
	}
}

// CartSnapshot is the locally cached copy of a user's ledger.
type CartSnapshot struct {
	Username        string      `json:"username"`
	Entries         []CartEntry `json:"entries"`
	CarbonFootprint float64     `json:"carbon_footprint"`

	// Degraded is set when the entries could not be read and Entries is empty
	// by substitution rather than because the ledger is empty.
	Degraded bool `json:"degraded,omitempty"`

	// FootprintDegraded is set when CarbonFootprint is a substituted 0.
	FootprintDegraded bool `json:"footprint_degraded,omitempty"`
}
