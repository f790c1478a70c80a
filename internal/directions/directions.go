// Package directions provides the DirectionsProvider contract and an HTTP
// adapter over it, backed by a two-level (in-process + Redis) cache.
package directions

import (
	"context"

	"github.com/ridematch/scheduler/internal/geo"
)

// Leg is one segment of a route between two consecutive waypoints.
type Leg struct {
	DistanceKM      float64
	DurationMinutes float64
	Polyline        string
}

// Route is the full response for a waypoint sequence: per-leg detail plus
// totals and a path. HTTPProvider sets Path to the input waypoints; each
// leg's encoded polyline is kept in Leg.Polyline and is not decoded.
type Route struct {
	Legs          []Leg
	TotalDistance float64
	TotalTime     float64
	Path          []geo.Coordinate
}

// Provider is the DirectionsProvider contract (spec §4.5): distances and
// durations along an ordered waypoint list. Implementations may fail or
// time out; callers fall back to straight-line estimation on any error.
type Provider interface {
	GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*Route, error)
}
