package directions

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridematch/scheduler/internal/geo"
)

type countingProvider struct {
	calls atomic.Int64
}

func (p *countingProvider) GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*Route, error) {
	p.calls.Add(1)
	return &Route{TotalDistance: geo.PathDistanceKM(waypoints), Path: waypoints}, nil
}

func TestCachedProvider_IdenticalWaypointsSingleOutboundCall(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner, nil)

	waypoints := []geo.Coordinate{{Lat: 32.10, Lng: 34.80}, {Lat: 32.09, Lng: 34.81}}

	r1, err := cached.GetRouteDetails(context.Background(), waypoints)
	require.NoError(t, err)
	r2, err := cached.GetRouteDetails(context.Background(), waypoints)
	require.NoError(t, err)

	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, r1.TotalDistance, r2.TotalDistance)
}

func TestCachedProvider_DifferentWaypointsTwoOutboundCalls(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner, nil)

	a := []geo.Coordinate{{Lat: 32.10, Lng: 34.80}, {Lat: 32.09, Lng: 34.81}}
	b := []geo.Coordinate{{Lat: 32.05, Lng: 34.78}, {Lat: 32.06, Lng: 34.79}}

	_, err := cached.GetRouteDetails(context.Background(), a)
	require.NoError(t, err)
	_, err = cached.GetRouteDetails(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
}
