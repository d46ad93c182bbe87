package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject(t *testing.T) {
	run := SimulationRun{
		WithDataCenters: []ClimatePoint{
			{Year: 2025, TotalTemperature: 14.0},
			{Year: 2026, TotalTemperature: 14.2},
		},
		WithoutDataCenters: []ClimatePoint{
			{Year: 2025, TotalTemperature: 13.5},
			{Year: 2026, TotalTemperature: 13.6},
		},
		TotalTimeToEnd:         120,
		TimeDatacentersRemoved: 15,
	}

	got, err := Project(run, DefaultScalingFactor)

	require.NoError(t, err)
	assert.Equal(t, []string{"2025", "2026"}, got.Labels)
	assert.Equal(t, []float64{5.00, 6.00}, got.Difference)
	assert.Equal(t, []float64{14.0, 14.2}, got.WithDataCenters)
	assert.Equal(t, []float64{13.5, 13.6}, got.WithoutDataCenters)
	assert.Equal(t, "Temperature Difference x10 (°C)", got.DifferenceLabel)
	assert.Equal(t, 120, got.TotalTimeToEnd)
	assert.Equal(t, 15, got.TimeDatacentersRemoved)
}

func TestProject_AlignsByPosition(t *testing.T) {
	// Years disagree; pairing is by index regardless.
	run := SimulationRun{
		WithDataCenters:    []ClimatePoint{{Year: 2030, TotalTemperature: 15.123}},
		WithoutDataCenters: []ClimatePoint{{Year: 1999, TotalTemperature: 15.0}},
	}

	got, err := Project(run, 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"2030"}, got.Labels)
	assert.Equal(t, []float64{0.12}, got.Difference)
}

func TestProject_LengthMismatch(t *testing.T) {
	run := SimulationRun{
		WithDataCenters:    []ClimatePoint{{Year: 2025}, {Year: 2026}},
		WithoutDataCenters: []ClimatePoint{{Year: 2025}},
	}
	_, err := Project(run, 10)
	assert.ErrorIs(t, err, ErrSeriesLengthMismatch)
}

func TestProject_Empty(t *testing.T) {
	got, err := Project(SimulationRun{}, 10)
	require.NoError(t, err)
	assert.Empty(t, got.Difference)
	assert.Empty(t, got.Labels)
}

func TestSimulationRun_DecodesBackendResponse(t *testing.T) {
	body := []byte(`{
		"username": "alice",
		"with_data_centers": [{"year": 2025, "baseline_temperature": 14, "data_center_contribution": 0.3,
			"total_temperature": 14.3, "fossil_fuel_reserves": 0.9, "survivability": 88, "degradation_level": "Low"}],
		"without_data_centers": [{"year": 2025, "total_temperature": 14}],
		"total_time_to_end": 80,
		"time_datacenters_removed": 4
	}`)

	var run SimulationRun
	require.NoError(t, json.Unmarshal(body, &run))
	require.Len(t, run.WithDataCenters, 1)
	assert.Equal(t, ClimatePoint{
		Year:                   2025,
		BaselineTemperature:    14,
		DataCenterContribution: 0.3,
		TotalTemperature:       14.3,
		FossilFuelReserves:     0.9,
		Survivability:          88,
		DegradationLevel:       "Low",
	}, run.WithDataCenters[0])
	assert.Equal(t, 80, run.TotalTimeToEnd)
}
