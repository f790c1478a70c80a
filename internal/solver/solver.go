// Package solver implements the genetic ride-matching optimizer: it searches
// the space of passenger -> (vehicle, order) assignments for the lowest-cost
// feasible allocation under vehicle capacity constraints.
package solver

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
)

// unassigned is the sentinel vehicle index used for a passenger the solver
// has not placed in any vehicle.
const unassigned = -1

// RoadDistanceCalibrationFactor scales the solver's internal haversine
// distance estimate toward typical real-road distance (spec §4.1: "straight-
// line distance × a calibration factor"); the RoutingEngine replaces these
// estimates with DirectionsProvider-backed totals, so this only shapes the
// GA's internal cost landscape, not what's ultimately persisted.
const RoadDistanceCalibrationFactor = 1.3

// Weights are the cost function coefficients. The source this system was
// modeled on used constants that differed across call sites; here they are
// a tunable struct rather than hard-coded literals.
type Weights struct {
	Distance        float64
	Time            float64
	VehicleCount    float64
	UnassignedPenalty float64
}

// DefaultWeights returns a reasonable default weighting: distance and time
// dominate, vehicle count is a light packing incentive, and an unassigned
// passenger costs far more than any single leg ever could.
func DefaultWeights() Weights {
	return Weights{
		Distance:          1.0,
		Time:              0.5,
		VehicleCount:      5.0,
		UnassignedPenalty: 10000.0,
	}
}

// Options configures a single Solve call.
type Options struct {
	PopulationSize  int
	Generations     int
	StagnationLimit int
	TournamentSize  int
	EliteCount      int
	MutationProb    float64
	GreedyFraction  float64
	Weights         Weights
	Seed            int64
}

// DefaultOptions returns the spec's defaults: population=200, generations=150,
// tournament k=3, elitism e=2, 30 stagnant generations before early exit.
func DefaultOptions() Options {
	return Options{
		PopulationSize:  200,
		Generations:     150,
		StagnationLimit: 30,
		TournamentSize:  3,
		EliteCount:      2,
		MutationProb:    0.15,
		GreedyFraction:  0.30,
		Weights:         DefaultWeights(),
		Seed:            1,
	}
}

// ValidationError indicates the solver's inputs violate an invariant (spec
// §4.1, §7 ValidationError) and were rejected before the GA loop ran.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("solver: invalid input: %s", e.Reason)
}

// Gene is one passenger's placement: which vehicle carries it (or the
// unassigned sentinel) and its relative order within that vehicle's stops.
type Gene struct {
	VehicleIndex int
	OrderKey     float64
}

// Chromosome is a full assignment: Genes[i] is the placement of passenger i.
type Chromosome struct {
	Genes   []Gene
	Cost    float64
	Fitness float64
	stats   chromosomeStats
}

// chromosomeStats holds the tie-break inputs computed alongside Cost: fewer
// vehicles used, then lower total time, then lower total distance, then
// deterministic by vehicle id order (spec §4.1).
type chromosomeStats struct {
	vehiclesUsed  int
	totalTime     float64
	totalDistance float64
	vehicleIDs    []int64 // used vehicle ids, sorted ascending
}

// Solver is a genetic ride-matching optimizer. It holds no state between
// calls; a single instance may be reused concurrently across independent
// Solve invocations.
type Solver struct{}

// New returns a Solver.
func New() *Solver {
	return &Solver{}
}

// Solve searches for a low-cost passenger-to-vehicle assignment. passengers
// and vehicles are the "available tomorrow" roster. Solve takes no target
// arrival time; accurate timing is the RoutingEngine's job.
func (s *Solver) Solve(passengers []model.Passenger, vehicles []model.Vehicle, destination model.Destination, opts Options) (*model.Solution, error) {
	if err := validate(passengers, vehicles); err != nil {
		return nil, err
	}

	if len(passengers) == 0 || len(vehicles) == 0 {
		return emptySolution(vehicles), nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	population := initializePopulation(passengers, vehicles, destination, opts, rng)
	evaluateAll(population, passengers, vehicles, destination, opts.Weights)
	sortByFitness(population)

	best := population[0]
	stagnant := 0

	for gen := 0; gen < opts.Generations; gen++ {
		next := make([]Chromosome, 0, len(population))

		elite := opts.EliteCount
		if elite > len(population) {
			elite = len(population)
		}
		for i := 0; i < elite; i++ {
			next = append(next, cloneChromosome(population[i]))
		}

		for len(next) < len(population) {
			p1 := tournamentSelect(population, opts.TournamentSize, rng)
			p2 := tournamentSelect(population, opts.TournamentSize, rng)
			child := crossover(p1, p2, rng)
			repair(&child, vehicles, passengers, destination, rng)
			if rng.Float64() < opts.MutationProb {
				mutate(&child, len(vehicles), rng)
				repair(&child, vehicles, passengers, destination, rng)
			}
			next = append(next, child)
		}

		population = next
		evaluateAll(population, passengers, vehicles, destination, opts.Weights)
		sortByFitness(population)

		if isBetter(population[0], best) {
			best = cloneChromosome(population[0])
			stagnant = 0
		} else {
			stagnant++
			if stagnant >= opts.StagnationLimit {
				break
			}
		}
	}

	return decode(best, passengers, vehicles, destination), nil
}

func validate(passengers []model.Passenger, vehicles []model.Vehicle) error {
	seen := make(map[int64]bool, len(passengers))
	for _, p := range passengers {
		if seen[p.ID] {
			return &ValidationError{Reason: fmt.Sprintf("duplicate passenger id %d", p.ID)}
		}
		seen[p.ID] = true
	}
	for _, v := range vehicles {
		if v.Capacity < 0 {
			return &ValidationError{Reason: fmt.Sprintf("vehicle %d has negative capacity", v.ID)}
		}
	}
	return nil
}

func emptySolution(vehicles []model.Vehicle) *model.Solution {
	out := make([]model.Vehicle, len(vehicles))
	copy(out, vehicles)
	return &model.Solution{Vehicles: out}
}

// isBetter applies the tie-break order (spec §4.1): lower cost wins; on a
// cost tie, fewer vehicles used, then lower total time, then lower total
// distance, then deterministic by vehicle id order.
func isBetter(a, b Chromosome) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	as, bs := a.stats, b.stats
	if as.vehiclesUsed != bs.vehiclesUsed {
		return as.vehiclesUsed < bs.vehiclesUsed
	}
	if as.totalTime != bs.totalTime {
		return as.totalTime < bs.totalTime
	}
	if as.totalDistance != bs.totalDistance {
		return as.totalDistance < bs.totalDistance
	}
	return lessVehicleIDs(as.vehicleIDs, bs.vehicleIDs)
}

// lessVehicleIDs compares two sorted vehicle-id lists lexicographically, the
// final, fully deterministic tie-break (spec §4.1).
func lessVehicleIDs(a, b []int64) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func sortByFitness(pop []Chromosome) {
	sort.SliceStable(pop, func(i, j int) bool {
		return pop[i].Cost < pop[j].Cost
	})
}

func cloneChromosome(c Chromosome) Chromosome {
	genes := make([]Gene, len(c.Genes))
	copy(genes, c.Genes)
	return Chromosome{Genes: genes, Cost: c.Cost, Fitness: c.Fitness, stats: c.stats}
}

// decode turns the best chromosome into a model.Solution: each vehicle's
// AssignedPassengers is ordered by ascending OrderKey.
func decode(c Chromosome, passengers []model.Passenger, vehicles []model.Vehicle, destination model.Destination) *model.Solution {
	type placed struct {
		passenger model.Passenger
		orderKey  float64
	}
	byVehicle := make(map[int][]placed, len(vehicles))

	for i, gene := range c.Genes {
		if gene.VehicleIndex == unassigned {
			continue
		}
		byVehicle[gene.VehicleIndex] = append(byVehicle[gene.VehicleIndex], placed{
			passenger: passengers[i],
			orderKey:  gene.OrderKey,
		})
	}

	out := make([]model.Vehicle, len(vehicles))
	for vi, v := range vehicles {
		out[vi] = v
		stops := byVehicle[vi]
		sort.SliceStable(stops, func(i, j int) bool { return stops[i].orderKey < stops[j].orderKey })
		assigned := make([]model.Passenger, len(stops))
		for i, p := range stops {
			assigned[i] = p.passenger
		}
		out[vi].AssignedPassengers = assigned
	}

	distCalc := geo.NewCalculator()
	for vi := range out {
		out[vi].TotalDistanceKM = estimateVehicleDistance(out[vi], destination, distCalc)
		out[vi].TotalTimeMinutes = geo.EstimateTravelMinutes(out[vi].TotalDistanceKM)
	}

	return &model.Solution{Vehicles: out}
}

// estimateVehicleDistance is the solver's internal cost estimate: calibrated
// straight-line start -> p1 -> ... -> pn -> destination (spec §4.1: "straight-
// line distance × a calibration factor"). The RoutingEngine later replaces
// this with DirectionsProvider-backed totals.
func estimateVehicleDistance(v model.Vehicle, destination model.Destination, calc *geo.Calculator) float64 {
	if len(v.AssignedPassengers) == 0 {
		return 0
	}
	total := 0.0
	prev := v.Start
	for _, p := range v.AssignedPassengers {
		total += calc.DistanceKM(prev, p.Location)
		prev = p.Location
	}
	total += calc.DistanceKM(prev, destination.Location)
	return total * RoadDistanceCalibrationFactor
}
