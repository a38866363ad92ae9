package geomutil

import "github.com/twpayne/go-geom"

// ToLineString builds a go-geom LineString from an ordered point sequence —
// the canonical geometry representation used when a road segment, route, or
// pipeline polyline is loaded from a shapefile or coordinate list, before
// it's flattened to the Point slice the distance/intersection helpers in
// this package operate on.
func ToLineString(pts []Point) *geom.LineString {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.Lng, p.Lat)
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// FromLineString flattens a go-geom LineString's coordinates back into the
// Point slice this package's math operates on.
func FromLineString(ls *geom.LineString) []Point {
	if ls == nil {
		return nil
	}
	coords := ls.Coords()
	pts := make([]Point, 0, len(coords))
	for _, c := range coords {
		pts = append(pts, Point{Lng: c[0], Lat: c[1]})
	}
	return pts
}
