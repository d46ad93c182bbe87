package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Origin tags where a Location came from.
type Origin string

const (
	OriginExisting  Origin = "existing"
	OriginPotential Origin = "potential"
	OriginBuilt     Origin = "built"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	switch o {
	case OriginExisting, OriginPotential, OriginBuilt:
		return true
	}
	return false
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is the canonical site record. Its JSON form is the flat
// lower-case upstream shape plus origin and enrichment, so normalizing a
// marshaled Location yields the same Location.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Coordinates
	Origin Origin `json:"origin"`

	// Enrichment is nil until the site has been enriched.
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}

// Enriched reports whether the derived metrics are present.
func (l Location) Enriched() bool {
	return l.Enrichment != nil
}

// LandCost returns the enriched land cost and whether it is known.
func (l Location) LandCost() (int, bool) {
	if l.Enrichment == nil {
		return 0, false
	}
	return l.Enrichment.LandCost, true
}

// Enrichment holds every derived field of a Location. It is set as a whole.
type Enrichment struct {
	Climate   int `json:"climate"`
	Renewable int `json:"renewable"`
	Grid      int `json:"grid"`
	Risk      int `json:"risk"`
	LandCost  int `json:"land_cost"`

	ElectricityCost   string `json:"electricity_cost"`
	Connectivity      string `json:"connectivity"`
	WaterAvailability string `json:"water_availability"`
	TaxIncentives     string `json:"tax_incentives"`
	ZoneType          string `json:"zone_type"`
	Description       string `json:"description"`

	// Degraded is true when fallback metrics were substituted.
	Degraded bool `json:"degraded,omitempty"`
}

// LocationScore is the mean of the four derived scores. An un-enriched
// location scores 0.
func LocationScore(l Location) float64 {
	if l.Enrichment == nil {
		return 0
	}
	e := l.Enrichment
	return float64(e.Climate+e.Renewable+e.Grid+e.Risk) / 4
}

// Number is a decoded numeric field that remembers whether the upstream
// record provided it. JSON null, an absent key and an empty string all decode
// as not Valid. Quoted numbers are accepted.
type Number struct {
	Value float64
	Valid bool
}

// NumberOf returns a valid Number.
func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = Number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", s, err)
		}
		*n = NumberOf(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = NumberOf(v)
	return nil
}

// Or returns the value when valid, otherwise def.
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}
