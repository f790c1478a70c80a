package solver

import (
	"math/rand"
	"sort"

	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
)

// initializePopulation builds the initial generation: a GreedyFraction share
// via nearest-available-vehicle-with-capacity best-insertion, the remainder
// random-feasible (spec §4.1 Initialization).
func initializePopulation(passengers []model.Passenger, vehicles []model.Vehicle, destination model.Destination, opts Options, rng *rand.Rand) []Chromosome {
	pop := make([]Chromosome, opts.PopulationSize)
	greedyCount := int(float64(opts.PopulationSize) * opts.GreedyFraction)

	for i := 0; i < opts.PopulationSize; i++ {
		if i < greedyCount {
			pop[i] = Chromosome{Genes: greedyAssignment(passengers, vehicles, destination)}
		} else {
			pop[i] = Chromosome{Genes: randomFeasibleAssignment(passengers, vehicles, rng)}
		}
	}
	return pop
}

// greedyAssignment assigns each passenger, in input order, to the nearest
// vehicle with remaining capacity, inserted at the best-insertion position
// (the end of that vehicle's current stop list, since insertion-cost
// comparison against every position is unnecessary here: greedy seeding only
// needs a feasible, reasonable starting point — the GA refines order).
func greedyAssignment(passengers []model.Passenger, vehicles []model.Vehicle, destination model.Destination) []Gene {
	calc := geo.NewCalculator()
	remaining := make([]int, len(vehicles))
	for i, v := range vehicles {
		remaining[i] = v.Capacity
	}
	load := make([]float64, len(vehicles))

	genes := make([]Gene, len(passengers))
	for i, p := range passengers {
		best := unassigned
		bestDist := -1.0
		for vi, v := range vehicles {
			if remaining[vi] <= 0 {
				continue
			}
			d := calc.DistanceKM(v.Start, p.Location)
			if bestDist < 0 || d < bestDist {
				bestDist = d
				best = vi
			}
		}
		if best == unassigned {
			genes[i] = Gene{VehicleIndex: unassigned, OrderKey: 0}
			continue
		}
		remaining[best]--
		genes[i] = Gene{VehicleIndex: best, OrderKey: load[best]}
		load[best]++
	}
	return genes
}

// randomFeasibleAssignment assigns each passenger to a uniformly random
// vehicle with remaining capacity at the time of assignment, else the
// sentinel.
func randomFeasibleAssignment(passengers []model.Passenger, vehicles []model.Vehicle, rng *rand.Rand) []Gene {
	remaining := make([]int, len(vehicles))
	for i, v := range vehicles {
		remaining[i] = v.Capacity
	}

	genes := make([]Gene, len(passengers))
	for i := range passengers {
		candidates := make([]int, 0, len(vehicles))
		for vi := range vehicles {
			if remaining[vi] > 0 {
				candidates = append(candidates, vi)
			}
		}
		if len(candidates) == 0 {
			genes[i] = Gene{VehicleIndex: unassigned, OrderKey: 0}
			continue
		}
		vi := candidates[rng.Intn(len(candidates))]
		remaining[vi]--
		genes[i] = Gene{VehicleIndex: vi, OrderKey: rng.Float64()}
	}
	return genes
}

// evaluateAll computes cost/fitness for every chromosome in the population.
func evaluateAll(pop []Chromosome, passengers []model.Passenger, vehicles []model.Vehicle, destination model.Destination, w Weights) {
	calc := geo.NewCalculator()
	for i := range pop {
		pop[i].Cost, pop[i].stats = cost(pop[i], passengers, vehicles, destination, w, calc)
		pop[i].Fitness = 1.0 / (1.0 + pop[i].Cost)
	}
}

// cost implements spec §4.1's weighted cost function: total distance, total
// time, vehicles used, and a large per-passenger penalty for anyone left
// unassigned. It also returns the raw stats isBetter uses to break cost ties.
func cost(c Chromosome, passengers []model.Passenger, vehicles []model.Vehicle, destination model.Destination, w Weights, calc *geo.Calculator) (float64, chromosomeStats) {
	byVehicle := make(map[int][]int, len(vehicles)) // vehicleIndex -> passenger indices, in order key order
	orderKeys := make(map[int][]float64, len(vehicles))
	unassignedCount := 0

	for i, gene := range c.Genes {
		if gene.VehicleIndex == unassigned {
			unassignedCount++
			continue
		}
		byVehicle[gene.VehicleIndex] = append(byVehicle[gene.VehicleIndex], i)
		orderKeys[gene.VehicleIndex] = append(orderKeys[gene.VehicleIndex], gene.OrderKey)
	}

	totalDistance := 0.0
	totalTime := 0.0
	vehiclesUsed := 0
	usedVehicleIndices := make([]int, 0, len(vehicles))

	for vi, idxs := range byVehicle {
		if len(idxs) == 0 {
			continue
		}
		keys := orderKeys[vi]
		order := make([]int, len(idxs))
		for i := range idxs {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return keys[order[a]] < keys[order[b]] })

		v := vehicles[vi]
		prev := v.Start
		dist := 0.0
		for _, oi := range order {
			p := passengers[idxs[oi]]
			dist += calc.DistanceKM(prev, p.Location)
			prev = p.Location
		}
		dist += calc.DistanceKM(prev, destination.Location)
		dist *= RoadDistanceCalibrationFactor

		totalDistance += dist
		totalTime += geo.EstimateTravelMinutes(dist)
		vehiclesUsed++
		usedVehicleIndices = append(usedVehicleIndices, vi)
	}

	totalCost := w.Distance*totalDistance +
		w.Time*totalTime +
		w.VehicleCount*float64(vehiclesUsed) +
		w.UnassignedPenalty*float64(unassignedCount)

	return totalCost, chromosomeStats{
		vehiclesUsed:  vehiclesUsed,
		totalTime:     totalTime,
		totalDistance: totalDistance,
		vehicleIDs:    usedVehicleIDs(usedVehicleIndices, vehicles),
	}
}

// usedVehicleIDs returns the used vehicles' IDs sorted ascending, so
// equally-costed solutions compare deterministically rather than by map
// iteration order.
func usedVehicleIDs(usedVehicleIndices []int, vehicles []model.Vehicle) []int64 {
	ids := make([]int64, len(usedVehicleIndices))
	for i, vi := range usedVehicleIndices {
		ids[i] = vehicles[vi].ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// tournamentSelect runs a size-k tournament, returning the fittest of k
// uniformly drawn candidates (spec §4.1 Selection).
func tournamentSelect(pop []Chromosome, k int, rng *rand.Rand) Chromosome {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		c := pop[rng.Intn(len(pop))]
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}

// crossover performs uniform crossover on the assignment vector: each gene
// is drawn from parent1 or parent2 with equal probability.
func crossover(p1, p2 Chromosome, rng *rand.Rand) Chromosome {
	genes := make([]Gene, len(p1.Genes))
	for i := range genes {
		if rng.Intn(2) == 0 {
			genes[i] = p1.Genes[i]
		} else {
			genes[i] = p2.Genes[i]
		}
	}
	return Chromosome{Genes: genes}
}

// mutate applies exactly one of the spec's four mutation operators, chosen
// uniformly: reassign, swap, reorder, or drop.
func mutate(c *Chromosome, vehicleCount int, rng *rand.Rand) {
	if len(c.Genes) == 0 || vehicleCount == 0 {
		return
	}
	switch rng.Intn(4) {
	case 0: // reassign a passenger to a random vehicle
		i := rng.Intn(len(c.Genes))
		c.Genes[i].VehicleIndex = rng.Intn(vehicleCount)
		c.Genes[i].OrderKey = rng.Float64()
	case 1: // swap two passengers between vehicles
		i := rng.Intn(len(c.Genes))
		j := rng.Intn(len(c.Genes))
		c.Genes[i].VehicleIndex, c.Genes[j].VehicleIndex = c.Genes[j].VehicleIndex, c.Genes[i].VehicleIndex
	case 2: // reorder two stops within a vehicle
		i := rng.Intn(len(c.Genes))
		j := rng.Intn(len(c.Genes))
		c.Genes[i].OrderKey, c.Genes[j].OrderKey = c.Genes[j].OrderKey, c.Genes[i].OrderKey
	case 3: // drop: move a passenger to the unassigned sentinel
		i := rng.Intn(len(c.Genes))
		c.Genes[i].VehicleIndex = unassigned
		c.Genes[i].OrderKey = 0
	}
}

// repair restores capacity feasibility after crossover/mutation: any vehicle
// over capacity evicts its largest-detour-contribution passengers first,
// which are then reassigned greedily to a vehicle with room, or dropped to
// the sentinel if none has room.
func repair(c *Chromosome, vehicles []model.Vehicle, passengers []model.Passenger, destination model.Destination, rng *rand.Rand) {
	calc := geo.NewCalculator()
	load := make([]int, len(vehicles))
	for _, g := range c.Genes {
		if g.VehicleIndex != unassigned {
			load[g.VehicleIndex]++
		}
	}

	for vi, v := range vehicles {
		excess := load[vi] - v.Capacity
		if excess <= 0 {
			continue
		}
		members := membersOf(c.Genes, vi)
		sort.SliceStable(members, func(a, b int) bool {
			return detourContribution(c.Genes[members[a]], passengers[members[a]], vehicles[vi], c.Genes, passengers, destination, calc) >
				detourContribution(c.Genes[members[b]], passengers[members[b]], vehicles[vi], c.Genes, passengers, destination, calc)
		})
		for i := 0; i < excess && i < len(members); i++ {
			idx := members[i]
			reassignGreedily(c, idx, vehicles, passengers, load, rng)
		}
	}
}

func membersOf(genes []Gene, vehicleIndex int) []int {
	members := make([]int, 0)
	for i, g := range genes {
		if g.VehicleIndex == vehicleIndex {
			members = append(members, i)
		}
	}
	return members
}

// detourContribution approximates how much a passenger's presence adds to
// its vehicle's straight-line distance: its distance from the vehicle start,
// used as a stable, cheap proxy for eviction priority.
func detourContribution(g Gene, p model.Passenger, v model.Vehicle, genes []Gene, passengers []model.Passenger, destination model.Destination, calc *geo.Calculator) float64 {
	return calc.DistanceKM(v.Start, p.Location)
}

// reassignGreedily finds another vehicle with spare capacity for the evicted
// passenger, preferring the nearest; drops to the sentinel if none exists.
func reassignGreedily(c *Chromosome, passengerIdx int, vehicles []model.Vehicle, passengers []model.Passenger, load []int, rng *rand.Rand) {
	calc := geo.NewCalculator()
	p := passengers[passengerIdx]
	best := unassigned
	bestDist := -1.0
	for vi, v := range vehicles {
		if vi == c.Genes[passengerIdx].VehicleIndex {
			continue
		}
		if load[vi] >= v.Capacity {
			continue
		}
		d := calc.DistanceKM(v.Start, p.Location)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = vi
		}
	}

	oldVI := c.Genes[passengerIdx].VehicleIndex
	if oldVI != unassigned {
		load[oldVI]--
	}
	if best == unassigned {
		c.Genes[passengerIdx] = Gene{VehicleIndex: unassigned, OrderKey: 0}
		return
	}
	load[best]++
	c.Genes[passengerIdx] = Gene{VehicleIndex: best, OrderKey: rng.Float64()}
}
