package geomutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMetersZeroDistance(t *testing.T) {
	p := Point{Lat: 30.0, Lng: -97.0}
	assert.InDelta(t, 0, HaversineMeters(p, p), 1e-9)
}

func TestHaversineMetersKnownSpan(t *testing.T) {
	// Roughly one degree of latitude is ~111km.
	a := Point{Lat: 30.0, Lng: -97.0}
	b := Point{Lat: 31.0, Lng: -97.0}
	d := HaversineMeters(a, b)
	assert.InDelta(t, 111000, d, 2000)
}

func TestMidpoint(t *testing.T) {
	a := Point{Lat: 30.0, Lng: -97.0}
	b := Point{Lat: 32.0, Lng: -95.0}
	m := Midpoint(a, b)
	assert.Equal(t, Point{Lat: 31.0, Lng: -96.0}, m)
}

func TestClosestPointOnSegmentClampsToEndpoints(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 0, Lng: 10}

	before := ClosestPointOnSegment(Point{Lat: 0, Lng: -5}, a, b)
	assert.Equal(t, a, before)

	after := ClosestPointOnSegment(Point{Lat: 0, Lng: 15}, a, b)
	assert.Equal(t, b, after)

	mid := ClosestPointOnSegment(Point{Lat: 1, Lng: 5}, a, b)
	assert.Equal(t, Point{Lat: 0, Lng: 5}, mid)
}

func TestDistanceToPolylineEmpty(t *testing.T) {
	_, d := DistanceToPolyline(Point{}, nil)
	assert.True(t, math.IsInf(d, 1))
}

func TestDistanceToPolylineSinglePoint(t *testing.T) {
	p := Point{Lat: 0, Lng: 0}
	poly := []Point{{Lat: 0, Lng: 1}}
	cp, d := DistanceToPolyline(p, poly)
	assert.Equal(t, poly[0], cp)
	assert.Greater(t, d, 0.0)
}

func TestSegmentIntersectCrossing(t *testing.T) {
	p, ok := SegmentIntersect(
		Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 10},
		Point{Lat: -5, Lng: 5}, Point{Lat: 5, Lng: 5},
	)
	assert.True(t, ok)
	assert.InDelta(t, 0, p.Lat, 1e-9)
	assert.InDelta(t, 5, p.Lng, 1e-9)
}

func TestSegmentIntersectParallelNeverMeets(t *testing.T) {
	_, ok := SegmentIntersect(
		Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 10},
		Point{Lat: 1, Lng: 0}, Point{Lat: 1, Lng: 10},
	)
	assert.False(t, ok)
}

func TestIntersectionsFindsCrossingPoint(t *testing.T) {
	roadA := []Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}}
	roadB := []Point{{Lat: -5, Lng: 5}, {Lat: 5, Lng: 5}}
	pts := Intersections(roadA, roadB)
	assert.Len(t, pts, 1)
}

func TestClosestPointPairBetweenDisjointPolylines(t *testing.T) {
	roadA := []Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}
	roadB := []Point{{Lat: 1, Lng: 0}, {Lat: 1, Lng: 1}}
	_, _, d := ClosestPointPair(roadA, roadB)
	assert.Greater(t, d, 0.0)
}
