package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Defaults applied to missing descriptive fields.
const (
	DefaultElectricity       = "$0.07/kWh"
	DefaultConnectivity      = "Standard"
	DefaultWaterAvailability = "Adequate"
	DefaultTaxIncentives     = "None"
	DefaultZoneType          = "Industrial"

	// DefaultLandCost is used when a property price is absent or unparseable.
	DefaultLandCost = 3_000_000

	defaultPotentialName        = "Potential Location"
	defaultPotentialDescription = "A potential location for a new data center."
	fallbackName                = "Unknown Location"
	fallbackDescription         = "Data about this location could not be loaded. Using fallback data."
)

// fallbackScores are the neutral metrics substituted on enrichment failure.
var fallbackScores = Scores{Climate: 70, Renewable: 60, Grid: 65, Risk: 80}

// landPriceRe matches the first dollar amount in a price string such as
// "$3,250,000 (negotiable)".
var landPriceRe = regexp.MustCompile(`\$([0-9,]+)`)

// Enricher attaches derived metrics to selected locations.
type Enricher struct {
	details PropertyDetailSource
	scorer  Scorer
	logger  *slog.Logger
}

// NewEnricher creates an Enricher. details may be nil, in which case every
// potential site enriches to the fallback metrics.
func NewEnricher(details PropertyDetailSource, scorer Scorer, logger *slog.Logger) *Enricher {
	if scorer == nil {
		scorer = NewRandomScorer(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{details: details, scorer: scorer, logger: logger}
}

// Enrich returns loc with every derived field set. On failure the returned
// location carries the fallback metrics and err wraps ErrEnrichmentDegraded;
// the location is usable either way.
func (e *Enricher) Enrich(ctx context.Context, loc Location) (Location, error) {
	if loc.Enriched() {
		return loc, nil
	}

	if err := ctx.Err(); err != nil {
		return e.degrade(loc, err)
	}

	switch loc.Origin {
	case OriginPotential:
		return e.enrichPotential(ctx, loc)
	default:
		return e.enrichExisting(loc), nil
	}
}

func (e *Enricher) enrichPotential(ctx context.Context, loc Location) (Location, error) {
	if e.details == nil {
		return e.degrade(loc, fmt.Errorf("no property detail source configured"))
	}

	details, err := e.details.PropertyDetails(ctx, loc.Coordinates)
	if err != nil {
		return e.degrade(loc, err)
	}

	scores := e.scorer.Scores(loc)
	loc.Name = orDefault(details.LocationName, defaultPotentialName)
	loc.Enrichment = &Enrichment{
		Climate:           scores.Climate,
		Renewable:         scores.Renewable,
		Grid:              scores.Grid,
		Risk:              scores.Risk,
		LandCost:          parseLandPrice(details.LandPrice),
		ElectricityCost:   orDefault(details.Electricity, DefaultElectricity),
		Connectivity:      orDefault(details.Connectivity, DefaultConnectivity),
		WaterAvailability: orDefault(details.WaterAvailability, DefaultWaterAvailability),
		TaxIncentives:     orDefault(details.TaxIncentives, DefaultTaxIncentives),
		ZoneType:          orDefault(details.ZoneType, DefaultZoneType),
		Description:       orDefault(details.Notes, defaultPotentialDescription),
	}
	return loc, nil
}

func (e *Enricher) enrichExisting(loc Location) Location {
	scores := e.scorer.Scores(loc)
	loc.Enrichment = withDefaultStrings(&Enrichment{
		Climate:     scores.Climate,
		Renewable:   scores.Renewable,
		Grid:        scores.Grid,
		Risk:        scores.Risk,
		LandCost:    e.scorer.LandCost(loc),
		Description: fmt.Sprintf("Data center located in %s with excellent connectivity to major networks.", orDefault(loc.Name, fallbackName)),
	})
	return loc
}

func (e *Enricher) degrade(loc Location, cause error) (Location, error) {
	e.logger.Warn("location enrichment degraded, using fallback metrics",
		"location_id", loc.ID,
		"origin", loc.Origin,
		"lat", loc.Latitude,
		"lon", loc.Longitude,
		"error", cause,
	)

	loc.Name = orDefault(loc.Name, fallbackName)
	loc.Enrichment = withDefaultStrings(&Enrichment{
		Climate:     fallbackScores.Climate,
		Renewable:   fallbackScores.Renewable,
		Grid:        fallbackScores.Grid,
		Risk:        fallbackScores.Risk,
		LandCost:    DefaultLandCost,
		Description: fallbackDescription,
		Degraded:    true,
	})
	return loc, fmt.Errorf("enrich %s: %w: %w", loc.ID, ErrEnrichmentDegraded, cause)
}

func withDefaultStrings(e *Enrichment) *Enrichment {
	e.ElectricityCost = orDefault(e.ElectricityCost, DefaultElectricity)
	e.Connectivity = orDefault(e.Connectivity, DefaultConnectivity)
	e.WaterAvailability = orDefault(e.WaterAvailability, DefaultWaterAvailability)
	e.TaxIncentives = orDefault(e.TaxIncentives, DefaultTaxIncentives)
	e.ZoneType = orDefault(e.ZoneType, DefaultZoneType)
	return e
}

// parseLandPrice extracts a dollar amount, returning DefaultLandCost when the
// text has none or it does not fit a positive int.
func parseLandPrice(text string) int {
	m := landPriceRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultLandCost
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || v <= 0 {
		return DefaultLandCost
	}
	return v
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
