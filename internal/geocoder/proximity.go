// Package geocoder implements the proximity geocoder (C6): the primary
// working stage that resolves intersections and single-road tickets
// against the road network using four named geometric strategies plus a
// city-centroid fallback, with metadata-driven confidence adjustment.
package geocoder

import (
	"fmt"
	"strings"

	"github.com/sells-group/geoticket/internal/cityref"
	"github.com/sells-group/geoticket/internal/corridor"
	"github.com/sells-group/geoticket/internal/geomutil"
	"github.com/sells-group/geoticket/internal/model"
	"github.com/sells-group/geoticket/internal/roadnet"
)

const (
	closestPointMaxM   = 1500.0
	citySnapMaxM       = 5000.0
	closestPointBase   = 0.70
	corridorBase       = 0.85
	cityPrimaryBase    = 0.65
	cityFallbackBase   = 0.35
)

// Geocoder is pure with respect to the loaded road network and city
// reference map, both constructed once per batch and shared read-only.
type Geocoder struct {
	Network  *roadnet.Network
	CityRefs cityref.Map
	Pipeline *corridor.PipelineProximityAnalyzer
}

// Result is the geocoder's output before it is wrapped into a
// GeocodeRecord by the stage that owns it.
type Result struct {
	Latitude   *float64
	Longitude  *float64
	Approach   string
	Confidence float64
	Reasoning  string
	RoadAMissing bool
	RoadBMissing bool
}

// Geocode resolves a ticket to coordinates via the strategy cascade.
func (g *Geocoder) Geocode(t model.Ticket) Result {
	lookupA := g.Network.FindByName(t.Street)
	lookupB := g.Network.FindByName(t.Intersection)

	hasA := t.Street != "" && len(lookupA.Segments) > 0
	hasB := t.Intersection != "" && len(lookupB.Segments) > 0
	cityPt, hasCity := g.CityRefs.Lookup(t.City, t.County)

	var res Result
	res.RoadAMissing = t.Street != "" && !hasA
	res.RoadBMissing = t.Intersection != "" && !hasB

	switch {
	case hasA && hasB:
		res = g.resolveBothRoads(t, lookupA, lookupB, cityPt, hasCity, res)
	case hasA != hasB:
		lookup := lookupA
		roadName := t.Street
		if hasB {
			lookup = lookupB
			roadName = t.Intersection
		}
		res = g.cityPrimary(roadName, lookup, cityPt, hasCity, res)
	default:
		res = g.cityCentroidFallback(t, cityPt, hasCity, res)
	}

	if res.Approach == "" {
		res.Reasoning = fmt.Sprintf("no strategy succeeded: street=%q (found=%v) intersection=%q (found=%v), city reference available=%v",
			t.Street, hasA, t.Intersection, hasB, hasCity)
		return res
	}

	res.Confidence = applyMetadataAdjustments(res.Confidence, t)
	return res
}

func (g *Geocoder) resolveBothRoads(t model.Ticket, lookupA, lookupB roadnet.LookupResult, cityPt geomutil.Point, hasCity bool, res Result) Result {
	points := roadnet.Intersections(lookupA.Segments, lookupB.Segments)
	if len(points) > 0 {
		chosen := points[0]
		if len(points) > 1 && hasCity {
			chosen = nearestTo(cityPt, points)
		}
		res.Latitude = ptr(chosen.Lat)
		res.Longitude = ptr(chosen.Lng)
		res.Approach = "corridor_midpoint"
		res.Confidence = corridorBase
		res.Reasoning = fmt.Sprintf("corridor_midpoint: %s crosses %s at %s", describe(t.Street, lookupA), describe(t.Intersection, lookupB), pointName(chosen))
		return res
	}

	pa, pb, dist := roadnet.ClosestPointPair(lookupA.Segments, lookupB.Segments)
	if dist <= closestPointMaxM {
		mid := geomutil.Midpoint(pa, pb)
		res.Latitude = ptr(mid.Lat)
		res.Longitude = ptr(mid.Lng)
		res.Approach = "closest_point"
		res.Confidence = closestPointBase - (dist/closestPointMaxM)*0.15
		res.Reasoning = fmt.Sprintf("closest_point: %s and %s do not intersect, closest approach %.0fm", describe(t.Street, lookupA), describe(t.Intersection, lookupB), dist)
		return res
	}

	res.Reasoning = fmt.Sprintf("no strategy succeeded: %s and %s are %.0fm apart, beyond the %.0fm closest-point threshold", describe(t.Street, lookupA), describe(t.Intersection, lookupB), dist, closestPointMaxM)
	return res
}

func (g *Geocoder) cityPrimary(roadName string, lookup roadnet.LookupResult, cityPt geomutil.Point, hasCity bool, res Result) Result {
	if !hasCity {
		res.Reasoning = fmt.Sprintf("no strategy succeeded: only %s found, and no city reference point is known", describe(roadName, lookup))
		return res
	}
	snapped, dist := geomutil.DistanceToPolyline(cityPt, roadnet.Vertices(lookup.Segments))
	if dist > citySnapMaxM {
		res.Reasoning = fmt.Sprintf("no strategy succeeded: city reference is %.0fm from %s, beyond the %.0fm snap threshold", dist, describe(roadName, lookup), citySnapMaxM)
		return res
	}
	res.Latitude = ptr(snapped.Lat)
	res.Longitude = ptr(snapped.Lng)
	res.Approach = "city_primary"
	res.Confidence = cityPrimaryBase
	res.Reasoning = fmt.Sprintf("city_primary: snapped city reference point onto %s (%.0fm away)", describe(roadName, lookup), dist)
	return res
}

func (g *Geocoder) cityCentroidFallback(t model.Ticket, cityPt geomutil.Point, hasCity bool, res Result) Result {
	if !hasCity {
		res.Reasoning = fmt.Sprintf("no strategy succeeded: neither %q nor %q was found in the road network, and no city reference point is known", t.Street, t.Intersection)
		return res
	}
	res.Latitude = ptr(cityPt.Lat)
	res.Longitude = ptr(cityPt.Lng)
	res.Approach = "city_centroid_fallback"
	res.Confidence = cityFallbackBase
	res.Reasoning = fmt.Sprintf("city_centroid_fallback: neither %q nor %q was found in the road network; returned the city reference point", t.Street, t.Intersection)
	return res
}

// applyMetadataAdjustments applies the spec's additive deltas and clamps
// once at the end, per the Design Notes resolution of the clamping
// ambiguity.
func applyMetadataAdjustments(base float64, t model.Ticket) float64 {
	c := base
	if t.IsEmergency() {
		c += 0.05
	}
	switch strings.ToUpper(strings.TrimSpace(t.Duration)) {
	case "1 DAY":
		c += 0.10
	case "2 MONTHS", "6 MONTHS":
		c -= 0.05
	}
	workType := strings.ToUpper(t.WorkType)
	if strings.Contains(workType, "HYDRO-EXCAVATION") {
		c += 0.10
	}
	if strings.Contains(workType, "PIPELINE") {
		c -= 0.05
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// ApplyPipelineBoost adds C7's proximity boost to a confidence value,
// clamped to [0, 1]. Called by the stage once coordinates are known, since
// the boost depends on the resolved point.
func ApplyPipelineBoost(confidence float64, boost float64) float64 {
	c := confidence + boost
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func nearestTo(ref geomutil.Point, candidates []geomutil.Point) geomutil.Point {
	best := candidates[0]
	bestDist := geomutil.HaversineMeters(ref, best)
	for _, c := range candidates[1:] {
		d := geomutil.HaversineMeters(ref, c)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func describe(name string, lookup roadnet.LookupResult) string {
	if lookup.UsedVariant {
		return fmt.Sprintf("%q (matched %s via variant lookup)", name, lookup.MatchedName)
	}
	if lookup.MatchedName != "" {
		return fmt.Sprintf("%q (matched %s)", name, lookup.MatchedName)
	}
	return fmt.Sprintf("%q", name)
}

func pointName(p geomutil.Point) string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

func ptr(f float64) *float64 { return &f }
