package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
)

func scenarioA() ([]model.Passenger, []model.Vehicle, model.Destination) {
	destination := model.Destination{
		Name:     "Office",
		Location: geo.Coordinate{Lat: 32.0741, Lng: 34.7922},
	}
	vehicles := []model.Vehicle{
		{ID: 1, Capacity: 2, Start: geo.Coordinate{Lat: 32.10, Lng: 34.80}, AvailableTomorrow: true},
		{ID: 2, Capacity: 2, Start: geo.Coordinate{Lat: 32.05, Lng: 34.78}, AvailableTomorrow: true},
	}
	passengers := []model.Passenger{
		{ID: 1, Name: "P1", Location: geo.Coordinate{Lat: 32.09, Lng: 34.81}, AvailableTomorrow: true},
		{ID: 2, Name: "P2", Location: geo.Coordinate{Lat: 32.08, Lng: 34.80}, AvailableTomorrow: true},
		{ID: 3, Name: "P3", Location: geo.Coordinate{Lat: 32.06, Lng: 34.79}, AvailableTomorrow: true},
	}
	return passengers, vehicles, destination
}

func fastOptions(seed int64) Options {
	opts := DefaultOptions()
	opts.PopulationSize = 40
	opts.Generations = 40
	opts.Seed = seed
	return opts
}

func TestSolve_CapacityInvariant(t *testing.T) {
	passengers, vehicles, destination := scenarioA()
	sol, err := New().Solve(passengers, vehicles, destination, fastOptions(7))
	require.NoError(t, err)
	for _, v := range sol.Vehicles {
		assert.LessOrEqual(t, len(v.AssignedPassengers), v.Capacity)
	}
}

func TestSolve_NoPassengerAssignedTwice(t *testing.T) {
	passengers, vehicles, destination := scenarioA()
	sol, err := New().Solve(passengers, vehicles, destination, fastOptions(7))
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for _, v := range sol.Vehicles {
		for _, p := range v.AssignedPassengers {
			assert.False(t, seen[p.ID], "passenger %d assigned twice", p.ID)
			seen[p.ID] = true
		}
	}
}

func TestSolve_DeterministicWithFixedSeed(t *testing.T) {
	passengers, vehicles, destination := scenarioA()
	opts := fastOptions(42)

	sol1, err := New().Solve(passengers, vehicles, destination, opts)
	require.NoError(t, err)
	sol2, err := New().Solve(passengers, vehicles, destination, opts)
	require.NoError(t, err)

	require.Equal(t, len(sol1.Vehicles), len(sol2.Vehicles))
	for i := range sol1.Vehicles {
		ids1 := passengerIDs(sol1.Vehicles[i])
		ids2 := passengerIDs(sol2.Vehicles[i])
		assert.Equal(t, ids1, ids2)
	}
}

func passengerIDs(v model.Vehicle) []int64 {
	ids := make([]int64, len(v.AssignedPassengers))
	for i, p := range v.AssignedPassengers {
		ids[i] = p.ID
	}
	return ids
}

func TestSolve_EmptyPassengers(t *testing.T) {
	_, vehicles, destination := scenarioA()
	sol, err := New().Solve(nil, vehicles, destination, fastOptions(1))
	require.NoError(t, err)
	assert.Equal(t, 0, sol.AssignedPassengerCount())
}

func TestSolve_EmptyVehicles(t *testing.T) {
	passengers, _, destination := scenarioA()
	sol, err := New().Solve(passengers, nil, destination, fastOptions(1))
	require.NoError(t, err)
	assert.Equal(t, 0, len(sol.Vehicles))
	assert.Equal(t, 0, sol.AssignedPassengerCount())
}

func TestSolve_OversubscribedToleratesUnassigned(t *testing.T) {
	destination := model.Destination{Location: geo.Coordinate{Lat: 32.0741, Lng: 34.7922}}
	vehicles := []model.Vehicle{
		{ID: 1, Capacity: 2, Start: geo.Coordinate{Lat: 32.10, Lng: 34.80}, AvailableTomorrow: true},
	}
	passengers := make([]model.Passenger, 5)
	for i := range passengers {
		passengers[i] = model.Passenger{
			ID:                int64(i + 1),
			Location:          geo.Coordinate{Lat: 32.09 - float64(i)*0.001, Lng: 34.81},
			AvailableTomorrow: true,
		}
	}

	sol, err := New().Solve(passengers, vehicles, destination, fastOptions(3))
	require.NoError(t, err)
	assert.Equal(t, 2, sol.AssignedPassengerCount())
}

func TestSolve_RejectsNegativeCapacity(t *testing.T) {
	passengers, vehicles, destination := scenarioA()
	vehicles[0].Capacity = -1
	_, err := New().Solve(passengers, vehicles, destination, fastOptions(1))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSolve_RejectsDuplicatePassengerIDs(t *testing.T) {
	passengers, vehicles, destination := scenarioA()
	passengers[1].ID = passengers[0].ID
	_, err := New().Solve(passengers, vehicles, destination, fastOptions(1))
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
