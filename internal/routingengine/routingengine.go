// Package routingengine turns a solver Solution into RouteDetails with
// concrete clock-time schedules, mediating between the DirectionsProvider
// and a straight-line fallback (spec §4.2).
package routingengine

import (
	"context"
	"fmt"
	"time"

	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/directions"
	"github.com/ridematch/scheduler/internal/geo"
	"github.com/ridematch/scheduler/internal/model"
)

// maxRouteDuration bounds back-propagation: a vehicle whose total time
// exceeds this is left with null timestamps rather than wrapping into
// nonsense (spec §4.2 Error policy).
const maxRouteDuration = 24 * time.Hour

// Engine attaches accurate per-leg timing to a Solution and derives
// clock-time schedules by back-solving from the target arrival time.
type Engine struct {
	provider directions.Provider
	logger   *logging.Logger
}

// New returns a RoutingEngine backed by provider. Provider failures are
// handled locally with a straight-line fallback; New never itself fails.
func New(provider directions.Provider, logger *logging.Logger) *Engine {
	return &Engine{provider: provider, logger: logger}
}

// Route computes RouteDetails for every vehicle in solution that carries at
// least one passenger, mutates solution's vehicles and passengers in place
// with the resulting totals/timestamps, and returns the same information
// keyed by vehicle id.
func (e *Engine) Route(ctx context.Context, solution *model.Solution, destination model.Destination, targetArrival time.Time) (map[int64]*model.RouteDetails, error) {
	results := make(map[int64]*model.RouteDetails, len(solution.Vehicles))

	for i := range solution.Vehicles {
		v := &solution.Vehicles[i]
		if len(v.AssignedPassengers) == 0 {
			continue
		}

		waypoints := buildWaypoints(*v, destination)
		legs, path, err := e.legsFor(ctx, waypoints)
		if err != nil {
			if e.logger != nil {
				e.logger.LogError(err, "directions provider failed, falling back to straight-line estimate", map[string]interface{}{
					"vehicle_id": v.ID,
				})
			}
			legs, path = fallbackLegs(waypoints)
		}

		details := buildRouteDetails(v.ID, v.AssignedPassengers, legs, path)
		backPropagate(details, targetArrival, e.logger)

		v.TotalDistanceKM = details.TotalDistance
		v.TotalTimeMinutes = details.TotalTime
		v.RoutePath = details.Path
		v.DepartureTime = details.DepartureTime

		applyPickupTimes(v, details)

		results[v.ID] = details
	}

	return results, nil
}

func buildWaypoints(v model.Vehicle, destination model.Destination) []geo.Coordinate {
	waypoints := make([]geo.Coordinate, 0, len(v.AssignedPassengers)+2)
	waypoints = append(waypoints, v.Start)
	for _, p := range v.AssignedPassengers {
		waypoints = append(waypoints, p.Location)
	}
	waypoints = append(waypoints, destination.Location)
	return waypoints
}

func (e *Engine) legsFor(ctx context.Context, waypoints []geo.Coordinate) ([]directions.Leg, []geo.Coordinate, error) {
	route, err := e.provider.GetRouteDetails(ctx, waypoints)
	if err != nil {
		return nil, nil, err
	}
	path := route.Path
	if len(path) == 0 {
		path = waypoints
	}
	return route.Legs, path, nil
}

// fallbackLegs estimates each leg as a straight-line distance at the
// constant average speed (spec §4.2 step 4, §4.1 cost estimate constant).
func fallbackLegs(waypoints []geo.Coordinate) ([]directions.Leg, []geo.Coordinate) {
	legs := make([]directions.Leg, 0, len(waypoints)-1)
	for i := 1; i < len(waypoints); i++ {
		d := geo.HaversineKM(waypoints[i-1].Lat, waypoints[i-1].Lng, waypoints[i].Lat, waypoints[i].Lng)
		legs = append(legs, directions.Leg{
			DistanceKM:      d,
			DurationMinutes: geo.EstimateTravelMinutes(d),
		})
	}
	return legs, waypoints
}

// buildRouteDetails assembles the per-vehicle RouteDetails and its ordered
// stops (one per assigned passenger plus a final destination sentinel),
// with running cumulative distance/time.
func buildRouteDetails(vehicleID int64, passengers []model.Passenger, legs []directions.Leg, path []geo.Coordinate) *model.RouteDetails {
	stops := make([]model.Stop, 0, len(legs))
	var cumDist, cumTime float64

	for i, leg := range legs {
		cumDist += leg.DistanceKM
		cumTime += leg.DurationMinutes

		stop := model.Stop{
			DistanceFromPrevious: leg.DistanceKM,
			TimeFromPrevious:     leg.DurationMinutes,
			CumulativeDistance:   cumDist,
			CumulativeTime:       cumTime,
		}
		if i < len(passengers) {
			id := passengers[i].ID
			stop.PassengerID = &id
		}
		stops = append(stops, stop)
	}

	return &model.RouteDetails{
		VehicleID:     vehicleID,
		TotalDistance: cumDist,
		TotalTime:     cumTime,
		Stops:         stops,
		Path:          path,
	}
}

// backPropagate fills DepartureTime and every passenger stop's pickup time
// by solving backward from targetArrival (spec §4.2 step 2).
func backPropagate(details *model.RouteDetails, targetArrival time.Time, logger *logging.Logger) {
	totalTime := time.Duration(details.TotalTime * float64(time.Minute))
	if totalTime > maxRouteDuration {
		if logger != nil {
			logger.Warn("route total time exceeds 24h, leaving timestamps null",
				"vehicle_id", details.VehicleID,
				"total_time_minutes", details.TotalTime,
			)
		}
		return
	}

	departure := targetArrival.Add(-totalTime)
	details.DepartureTime = formatHHMM(departure)

	for i := range details.Stops {
		stopTime := departure.Add(time.Duration(details.Stops[i].CumulativeTime * float64(time.Minute)))
		details.Stops[i].PickupTime = formatHHMM(stopTime)
	}
}

// applyPickupTimes writes each stop's computed pickup time back onto the
// corresponding passenger in vehicle order (passengers and non-sentinel
// stops share the same order by construction).
func applyPickupTimes(v *model.Vehicle, details *model.RouteDetails) {
	for i := range v.AssignedPassengers {
		if i < len(details.Stops) && details.Stops[i].PassengerID != nil {
			v.AssignedPassengers[i].EstimatedPickupTime = details.Stops[i].PickupTime
		}
	}
}

// formatHHMM renders a timestamp as 24-hour "HH:MM", local time, wrapping
// silently past midnight (spec §9 Open Questions: preserved, not resolved).
func formatHHMM(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
