// Package geomutil implements the small set of planar/geodesic primitives
// the spatial index and proximity geocoder need: distance, closest-point
// projection, and segment intersection over ordered (lng, lat) polylines.
package geomutil

import "math"

const earthRadiusM = 6371000.0

// Point is a (longitude, latitude) coordinate pair in degrees.
type Point struct {
	Lng float64
	Lat float64
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Point) float64 {
	lat1, lat2 := degToRad(a.Lat), degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// Midpoint returns the planar midpoint of two points. Road-network scale
// here (a rural county) makes the planar average an acceptable
// approximation of the geodesic midpoint.
func Midpoint(a, b Point) Point {
	return Point{Lng: (a.Lng + b.Lng) / 2, Lat: (a.Lat + b.Lat) / 2}
}

// ClosestPointOnSegment projects p onto segment a-b and returns the closest
// point on that segment (not the infinite line).
func ClosestPointOnSegment(p, a, b Point) Point {
	dx, dy := b.Lng-a.Lng, b.Lat-a.Lat
	if dx == 0 && dy == 0 {
		return a
	}
	t := ((p.Lng-a.Lng)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Point{Lng: a.Lng + t*dx, Lat: a.Lat + t*dy}
}

// DistanceToPolyline returns the closest point on poly to p and the
// haversine distance to it, in meters. poly must have at least one point;
// a single-point "polyline" degenerates to point distance.
func DistanceToPolyline(p Point, poly []Point) (Point, float64) {
	if len(poly) == 0 {
		return Point{}, math.Inf(1)
	}
	if len(poly) == 1 {
		return poly[0], HaversineMeters(p, poly[0])
	}
	best := poly[0]
	bestDist := math.Inf(1)
	for i := 0; i+1 < len(poly); i++ {
		cp := ClosestPointOnSegment(p, poly[i], poly[i+1])
		d := HaversineMeters(p, cp)
		if d < bestDist {
			bestDist = d
			best = cp
		}
	}
	return best, bestDist
}

// ClosestPointPair returns the closest point on polyA, the closest point on
// polyB, and the distance between them, minimized over every pair of
// segments drawn from the two polylines.
func ClosestPointPair(polyA, polyB []Point) (Point, Point, float64) {
	bestA, bestB := polyA[0], polyB[0]
	bestDist := math.Inf(1)
	for i := 0; i+1 < len(polyA) || i == 0; i++ {
		a1, a2 := segmentAt(polyA, i)
		for j := 0; j+1 < len(polyB) || j == 0; j++ {
			b1, b2 := segmentAt(polyB, j)
			pa, pb, d := closestBetweenSegments(a1, a2, b1, b2)
			if d < bestDist {
				bestDist = d
				bestA, bestB = pa, pb
			}
		}
		if len(polyA) < 2 {
			break
		}
	}
	return bestA, bestB, bestDist
}

func segmentAt(poly []Point, i int) (Point, Point) {
	if len(poly) < 2 {
		return poly[0], poly[0]
	}
	return poly[i], poly[i+1]
}

// closestBetweenSegments samples candidate closest points by projecting
// each segment's endpoints onto the other segment — sufficient precision
// for the road-centerline scale this package targets.
func closestBetweenSegments(a1, a2, b1, b2 Point) (Point, Point, float64) {
	candidates := []struct {
		pa, pb Point
	}{
		{a1, ClosestPointOnSegment(a1, b1, b2)},
		{a2, ClosestPointOnSegment(a2, b1, b2)},
		{ClosestPointOnSegment(b1, a1, a2), b1},
		{ClosestPointOnSegment(b2, a1, a2), b2},
	}
	bestPa, bestPb := candidates[0].pa, candidates[0].pb
	bestDist := HaversineMeters(bestPa, bestPb)
	for _, c := range candidates[1:] {
		d := HaversineMeters(c.pa, c.pb)
		if d < bestDist {
			bestDist = d
			bestPa, bestPb = c.pa, c.pb
		}
	}
	return bestPa, bestPb, bestDist
}

// SegmentIntersect returns the intersection point of segments p1-p2 and
// p3-p4, if one exists, using a standard parametric line test.
func SegmentIntersect(p1, p2, p3, p4 Point) (Point, bool) {
	r := Point{Lng: p2.Lng - p1.Lng, Lat: p2.Lat - p1.Lat}
	s := Point{Lng: p4.Lng - p3.Lng, Lat: p4.Lat - p3.Lat}

	denom := cross(r, s)
	if denom == 0 {
		return Point{}, false // parallel or collinear
	}

	qp := Point{Lng: p3.Lng - p1.Lng, Lat: p3.Lat - p1.Lat}
	t := cross(qp, s) / denom
	u := cross(qp, r) / denom

	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point{}, false
	}
	return Point{Lng: p1.Lng + t*r.Lng, Lat: p1.Lat + t*r.Lat}, true
}

func cross(a, b Point) float64 { return a.Lng*b.Lat - a.Lat*b.Lng }

// Intersections returns every point at which any segment of polyA crosses
// any segment of polyB.
func Intersections(polyA, polyB []Point) []Point {
	var out []Point
	for i := 0; i+1 < len(polyA); i++ {
		for j := 0; j+1 < len(polyB); j++ {
			if p, ok := SegmentIntersect(polyA[i], polyA[i+1], polyB[j], polyB[j+1]); ok {
				out = append(out, p)
			}
		}
	}
	return out
}
