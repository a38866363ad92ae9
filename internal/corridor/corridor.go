// Package corridor implements the route-corridor and pipeline-proximity
// enrichers (C7): two independent services, both built once per batch,
// that test a geocoded point against a known 1-D route geometry.
package corridor

import (
	"github.com/sells-group/geoticket/internal/geomutil"
)

const (
	defaultCorridorBufferM = 500.0
	defaultBoostRadiusM    = 500.0
	confidenceBoost        = 0.15
)

// RouteCorridorValidator tests whether a point lies within buffer_m of a
// known route geometry.
type RouteCorridorValidator struct {
	route   []geomutil.Point
	bufferM float64
}

// NewRouteCorridorValidator constructs a validator over route with the
// given buffer in meters; bufferM <= 0 uses the 500 m default.
func NewRouteCorridorValidator(route []geomutil.Point, bufferM float64) *RouteCorridorValidator {
	if bufferM <= 0 {
		bufferM = defaultCorridorBufferM
	}
	return &RouteCorridorValidator{route: route, bufferM: bufferM}
}

// Check returns whether (lat, lng) lies within the configured buffer of the
// route, and the perpendicular distance to the closest route segment.
func (v *RouteCorridorValidator) Check(lat, lng float64) (within bool, distanceM float64) {
	if v == nil || len(v.route) == 0 {
		return true, 0
	}
	_, d := geomutil.DistanceToPolyline(geomutil.Point{Lng: lng, Lat: lat}, v.route)
	return d <= v.bufferM, d
}

// PipelineProximityResult is the outcome of an Analyze call.
type PipelineProximityResult struct {
	DistanceM       float64
	WithinBoostZone bool
	ConfidenceBoost float64
}

// PipelineProximityAnalyzer measures distance from a point to a known
// pipeline geometry and awards a confidence boost within a configured
// radius.
type PipelineProximityAnalyzer struct {
	pipeline  []geomutil.Point
	boostRadM float64
}

// NewPipelineProximityAnalyzer constructs an analyzer over pipeline with
// the given boost radius in meters; boostRadM <= 0 uses the 500 m default.
func NewPipelineProximityAnalyzer(pipeline []geomutil.Point, boostRadM float64) *PipelineProximityAnalyzer {
	if boostRadM <= 0 {
		boostRadM = defaultBoostRadiusM
	}
	return &PipelineProximityAnalyzer{pipeline: pipeline, boostRadM: boostRadM}
}

// Analyze reports distance to the pipeline and whether the point earns the
// proximity confidence boost.
func (a *PipelineProximityAnalyzer) Analyze(lat, lng float64) PipelineProximityResult {
	if a == nil || len(a.pipeline) == 0 {
		return PipelineProximityResult{DistanceM: -1}
	}
	_, d := geomutil.DistanceToPolyline(geomutil.Point{Lng: lng, Lat: lat}, a.pipeline)
	res := PipelineProximityResult{DistanceM: d}
	if d <= a.boostRadM {
		res.WithinBoostZone = true
		res.ConfidenceBoost = confidenceBoost
	}
	return res
}
