package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKM_SamePoint(t *testing.T) {
	d := HaversineKM(32.0741, 34.7922, 32.0741, 34.7922)
	assert.InDelta(t, 0.0, d, 1e-9)
}

func TestHaversineKM_KnownDistance(t *testing.T) {
	// Tel Aviv to Jerusalem, roughly 54km as the crow flies.
	d := HaversineKM(32.0853, 34.7818, 31.7683, 35.2137)
	assert.InDelta(t, 54.0, d, 3.0)
}

func TestEstimateTravelMinutes(t *testing.T) {
	assert.InDelta(t, 60.0, EstimateTravelMinutes(30), 1e-9)
	assert.InDelta(t, 30.0, EstimateTravelMinutes(15), 1e-9)
}

func TestPathDistanceKM_Empty(t *testing.T) {
	assert.Equal(t, 0.0, PathDistanceKM(nil))
	assert.Equal(t, 0.0, PathDistanceKM([]Coordinate{{Lat: 1, Lng: 1}}))
}

func TestCanonicalKey(t *testing.T) {
	path := []Coordinate{{Lat: 32.074100, Lng: 34.792200}, {Lat: 32.1, Lng: 34.8}}
	key := CanonicalKey(path)
	assert.Equal(t, "32.074100,34.792200|32.100000,34.800000", key)
}
