package routingengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridematch/scheduler/internal/directions"
	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
)

type stubProvider struct {
	route *directions.Route
	err   error
}

func (s *stubProvider) GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*directions.Route, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.route, nil
}

func destinationAt(lat, lng float64) model.Destination {
	return model.Destination{Name: "Office", Location: geo.Coordinate{Lat: lat, Lng: lng}}
}

func vehicleWithPassengers() model.Vehicle {
	return model.Vehicle{
		ID:    1,
		Start: geo.Coordinate{Lat: 32.10, Lng: 34.80},
		AssignedPassengers: []model.Passenger{
			{ID: 1, Location: geo.Coordinate{Lat: 32.09, Lng: 34.81}},
			{ID: 2, Location: geo.Coordinate{Lat: 32.08, Lng: 34.80}},
		},
	}
}

func TestRoute_ProviderSuccess_TotalTimeMatchesLegSum(t *testing.T) {
	provider := &stubProvider{route: &directions.Route{
		Legs: []directions.Leg{
			{DistanceKM: 2, DurationMinutes: 4},
			{DistanceKM: 3, DurationMinutes: 6},
			{DistanceKM: 1, DurationMinutes: 2},
		},
		TotalDistance: 6,
		TotalTime:     12,
	}}
	engine := New(provider, nil)

	solution := &model.Solution{Vehicles: []model.Vehicle{vehicleWithPassengers()}}
	destination := destinationAt(32.0741, 34.7922)
	target := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)

	results, err := engine.Route(context.Background(), solution, destination, target)
	require.NoError(t, err)

	details := results[1]
	require.NotNil(t, details)

	var legSum float64
	for _, s := range details.Stops {
		legSum += s.TimeFromPrevious
	}
	assert.InDelta(t, details.TotalTime, legSum, 1e-6)
}

func TestRoute_BackPropagation_DepartureMatchesTarget(t *testing.T) {
	provider := &stubProvider{route: &directions.Route{
		Legs: []directions.Leg{
			{DistanceKM: 2, DurationMinutes: 10},
			{DistanceKM: 3, DurationMinutes: 15},
			{DistanceKM: 1, DurationMinutes: 5},
		},
		TotalDistance: 6,
		TotalTime:     30,
	}}
	engine := New(provider, nil)

	solution := &model.Solution{Vehicles: []model.Vehicle{vehicleWithPassengers()}}
	destination := destinationAt(32.0741, 34.7922)
	target := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)

	_, err := engine.Route(context.Background(), solution, destination, target)
	require.NoError(t, err)

	v := solution.Vehicles[0]
	departure, err := time.ParseInLocation("15:04", v.DepartureTime, time.Local)
	require.NoError(t, err)

	expectedDeparture := target.Add(-30 * time.Minute)
	assert.Equal(t, expectedDeparture.Hour(), departure.Hour())
	assert.Equal(t, expectedDeparture.Minute(), departure.Minute())
}

func TestRoute_PickupTimesMonotonic(t *testing.T) {
	provider := &stubProvider{route: &directions.Route{
		Legs: []directions.Leg{
			{DistanceKM: 2, DurationMinutes: 10},
			{DistanceKM: 3, DurationMinutes: 15},
			{DistanceKM: 1, DurationMinutes: 5},
		},
	}}
	engine := New(provider, nil)

	solution := &model.Solution{Vehicles: []model.Vehicle{vehicleWithPassengers()}}
	destination := destinationAt(32.0741, 34.7922)
	target := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)

	_, err := engine.Route(context.Background(), solution, destination, target)
	require.NoError(t, err)

	v := solution.Vehicles[0]
	require.Len(t, v.AssignedPassengers, 2)
	assert.NotEmpty(t, v.AssignedPassengers[0].EstimatedPickupTime)
	assert.NotEmpty(t, v.AssignedPassengers[1].EstimatedPickupTime)
	assert.LessOrEqual(t, v.AssignedPassengers[0].EstimatedPickupTime, v.AssignedPassengers[1].EstimatedPickupTime)
}

func TestRoute_ProviderFailure_FallsBackToStraightLine(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider unavailable")}
	engine := New(provider, nil)

	solution := &model.Solution{Vehicles: []model.Vehicle{vehicleWithPassengers()}}
	destination := destinationAt(32.0741, 34.7922)
	target := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)

	results, err := engine.Route(context.Background(), solution, destination, target)
	require.NoError(t, err)
	assert.Greater(t, results[1].TotalDistance, 0.0)
	assert.Greater(t, results[1].TotalTime, 0.0)
}

func TestRoute_SkipsVehiclesWithNoPassengers(t *testing.T) {
	provider := &stubProvider{route: &directions.Route{}}
	engine := New(provider, nil)

	solution := &model.Solution{Vehicles: []model.Vehicle{{ID: 9}}}
	destination := destinationAt(32.0741, 34.7922)
	target := time.Date(2026, 7, 31, 8, 0, 0, 0, time.Local)

	results, err := engine.Route(context.Background(), solution, destination, target)
	require.NoError(t, err)
	assert.Empty(t, results)
}
