package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$3,000,000", FormatCurrency(3_000_000))
	assert.Equal(t, "$100,000", FormatCurrency(100_000))
	assert.Equal(t, "$999", FormatCurrency(999))
}

func TestNewCartEntry(t *testing.T) {
	t.Run("enriched location", func(t *testing.T) {
		loc := Location{
			Name:        "Oregon",
			Coordinates: Coordinates{Latitude: 45.5, Longitude: -122.5},
			Enrichment: &Enrichment{
				LandCost:        2_345_678,
				ElectricityCost: "$0.05/kWh",
				Description:     "Hydro powered.",
			},
		}

		assert.Equal(t, CartEntry{
			Coordinates: Coordinates{Latitude: 45.5, Longitude: -122.5},
			Name:        "Oregon",
			LandPrice:   "$2,345,678",
			Electricity: "$0.05/kWh",
			Notes:       "Hydro powered.",
			Cost:        2_345_678,
		}, NewCartEntry(loc))
	})

	t.Run("un-enriched location", func(t *testing.T) {
		got := NewCartEntry(Location{Coordinates: Coordinates{Latitude: 1, Longitude: 2}})

		assert.Equal(t, "Untitled", got.Name)
		assert.Equal(t, DefaultCartCost, got.Cost)
		assert.Equal(t, "$100,000", got.LandPrice)
		assert.Equal(t, DefaultElectricity, got.Electricity)
		assert.Equal(t, "Data center location", got.Notes)
	})
}

func TestCartEntry_JSONShape(t *testing.T) {
	data, err := json.Marshal(CartEntry{
		Coordinates: Coordinates{Latitude: 1.5, Longitude: 2.5},
		Name:        "A",
		LandPrice:   "$1",
		Electricity: "$0.07/kWh",
		Notes:       "n",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"latitude":1.5,"longitude":2.5,"name":"A","land_price":"$1","electricity":"$0.07/kWh","notes":"n"}`, string(data))
}
