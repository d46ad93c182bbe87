package domain

import (
	"fmt"
	"math"
	"strconv"
)

// DefaultScalingFactor amplifies the temperature difference for charting.
const DefaultScalingFactor = 10

// ClimatePoint is one year of a simulated climate projection.
type ClimatePoint struct {
	Year                   int     `json:"year"`
	BaselineTemperature    float64 `json:"baseline_temperature"`
	DataCenterContribution float64 `json:"data_center_contribution"`
	TotalTemperature       float64 `json:"total_temperature"`
	FossilFuelReserves     float64 `json:"fossil_fuel_reserves"`
	Survivability          int     `json:"survivability"`
	DegradationLevel       string  `json:"degradation_level"`
}

// SimulationRun is the backend's paired projection.
type SimulationRun struct {
	WithDataCenters        []ClimatePoint `json:"with_data_centers"`
	WithoutDataCenters     []ClimatePoint `json:"without_data_centers"`
	TotalTimeToEnd         int            `json:"total_time_to_end"`
	TimeDatacentersRemoved int            `json:"time_datacenters_removed"`
}

// ChartSeries is a SimulationRun reduced to chartable lines.
type ChartSeries struct {
	Labels                 []string  `json:"labels"`
	Difference             []float64 `json:"difference"`
	DifferenceLabel        string    `json:"difference_label"`
	WithDataCenters        []float64 `json:"with_data_centers"`
	WithoutDataCenters     []float64 `json:"without_data_centers"`
	ScalingFactor          float64   `json:"scaling_factor"`
	TotalTimeToEnd         int       `json:"total_time_to_end"`
	TimeDatacentersRemoved int       `json:"time_datacenters_removed"`
}

// Project computes the scaled per-year temperature difference between the
// two series. Points are paired by position; the labels are taken from the
// with-data-centers series.
func Project(run SimulationRun, scalingFactor float64) (ChartSeries, error) {
	if math.IsNaN(scalingFactor) || math.IsInf(scalingFactor, 0) {
		return ChartSeries{}, fmt.Errorf("scaling factor must be finite, got %v", scalingFactor)
	}
	with, without := run.WithDataCenters, run.WithoutDataCenters
	if len(with) != len(without) {
		return ChartSeries{}, fmt.Errorf("%w: with_data_centers has %d points, without_data_centers has %d",
			ErrSeriesLengthMismatch, len(with), len(without))
	}

	n := len(with)
	series := ChartSeries{
		Labels:                 make([]string, n),
		Difference:             make([]float64, n),
		DifferenceLabel:        fmt.Sprintf("Temperature Difference x%g (°C)", scalingFactor),
		WithDataCenters:        make([]float64, n),
		WithoutDataCenters:     make([]float64, n),
		ScalingFactor:          scalingFactor,
		TotalTimeToEnd:         run.TotalTimeToEnd,
		TimeDatacentersRemoved: run.TimeDatacentersRemoved,
	}
	for i := range n {
		series.Labels[i] = strconv.Itoa(with[i].Year)
		series.WithDataCenters[i] = with[i].TotalTemperature
		series.WithoutDataCenters[i] = without[i].TotalTemperature
		series.Difference[i] = round2((with[i].TotalTemperature - without[i].TotalTemperature) * scalingFactor)
	}
	return series, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
