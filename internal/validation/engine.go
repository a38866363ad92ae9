// Package validation implements the validation engine (C3): an ordered
// registry of independent rules, each a pure function of a record and a
// shared context, producing flags merged back onto the record.
package validation

import (
	"fmt"
	"strings"

	"github.com/sells-group/geoticket/internal/corridor"
	"github.com/sells-group/geoticket/internal/geomutil"
	"github.com/sells-group/geoticket/internal/model"
)

// Severity is a rule's reported severity.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

var severityRank = map[Severity]int{SeverityInfo: 0, SeverityWarning: 1, SeverityError: 2}

// Flag is one triggered rule's output.
type Flag struct {
	Name     string
	Severity Severity
	Action   string
}

// Context carries the shared, read-only inputs rules may consult.
type Context struct {
	CityRefPoint               *geomutil.Point
	CityDistanceThresholdKM    float64 // default 50
	Corridor                   *corridor.RouteCorridorValidator
	PipelineAnalyzer           *corridor.PipelineProximityAnalyzer
	PipelineMismatchThresholdM float64 // 0 disables the rule

	// EnabledRules, if non-empty, restricts which rule names run —
	// stage config's validation_rules list. Empty means "all applicable".
	EnabledRules map[string]bool
}

func (c Context) cityDistanceThresholdKM() float64 {
	if c.CityDistanceThresholdKM > 0 {
		return c.CityDistanceThresholdKM
	}
	return 50
}

// RuleFunc is a single rule: triggered bool, or err if it couldn't run.
type RuleFunc func(rec *model.GeocodeRecord, ctx Context) (triggered bool, severity Severity, action string, err error)

// Registry maps flag name to its rule implementation.
var Registry = map[string]RuleFunc{
	"low_confidence":           lowConfidence,
	"emergency_low_confidence": emergencyLowConfidence,
	"city_distance":            cityDistance,
	"fallback_geocode":         fallbackGeocode,
	"missing_road":             missingRoad,
	"out_of_corridor":          outOfCorridor,
	"pipeline_mismatch":        pipelineMismatch,
}

// Run evaluates every applicable rule against rec and returns the flags
// that fired plus the overall max severity. Order does not affect the
// result set. A rule that panics or errors is treated as not firing, and
// contributes a validator_error flag instead.
func Run(rec *model.GeocodeRecord, ctx Context) (flags []Flag, overall Severity) {
	for name, rule := range Registry {
		if ctx.EnabledRules != nil && len(ctx.EnabledRules) > 0 && !ctx.EnabledRules[name] {
			continue
		}
		triggered, severity, action, err := safeRun(rule, rec, ctx)
		if err != nil {
			flags = appendUnique(flags, Flag{Name: "validator_error", Severity: SeverityWarning, Action: fmt.Sprintf("rule %s failed: %v", name, err)})
			continue
		}
		if triggered {
			flags = append(flags, Flag{Name: name, Severity: severity, Action: action})
		}
	}
	overall = SeverityInfo
	for _, f := range flags {
		if severityRank[f.Severity] > severityRank[overall] {
			overall = f.Severity
		}
	}
	return flags, overall
}

func appendUnique(flags []Flag, f Flag) []Flag {
	for _, existing := range flags {
		if existing.Name == f.Name {
			return flags
		}
	}
	return append(flags, f)
}

func safeRun(rule RuleFunc, rec *model.GeocodeRecord, ctx Context) (triggered bool, severity Severity, action string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rule(rec, ctx)
}

func lowConfidence(rec *model.GeocodeRecord, _ Context) (bool, Severity, string, error) {
	if rec.Confidence == nil {
		return false, "", "", nil
	}
	return *rec.Confidence < 0.65, SeverityWarning, "flag for review: confidence below acceptable threshold", nil
}

func emergencyLowConfidence(rec *model.GeocodeRecord, _ Context) (bool, Severity, string, error) {
	if rec.Confidence == nil || rec.TicketType == "" {
		return false, "", "", nil
	}
	isEmergency := strings.EqualFold(rec.TicketType, "Emergency")
	return isEmergency && *rec.Confidence < 0.75, SeverityError, "escalate: emergency ticket with low confidence", nil
}

func cityDistance(rec *model.GeocodeRecord, ctx Context) (bool, Severity, string, error) {
	if ctx.CityRefPoint == nil || !rec.HasCoordinates() {
		return false, "", "", nil
	}
	d := geomutil.HaversineMeters(*ctx.CityRefPoint, geomutil.Point{Lng: *rec.Longitude, Lat: *rec.Latitude})
	thresholdM := ctx.cityDistanceThresholdKM() * 1000
	return d > thresholdM, SeverityWarning, "verify: result is far from the city's known reference point", nil
}

func fallbackGeocode(rec *model.GeocodeRecord, _ Context) (bool, Severity, string, error) {
	return rec.Approach == "city_centroid_fallback", SeverityWarning, "review: coordinates are a city-centroid fallback, not a road match", nil
}

func missingRoad(rec *model.GeocodeRecord, _ Context) (bool, Severity, string, error) {
	if rec.Metadata == nil {
		return false, "", "", nil
	}
	aMissing, _ := rec.Metadata["road_a_missing"].(bool)
	bMissing, _ := rec.Metadata["road_b_missing"].(bool)
	return aMissing || bMissing, SeverityInfo, "note: one or both named roads were not found in the network", nil
}

func outOfCorridor(rec *model.GeocodeRecord, ctx Context) (bool, Severity, string, error) {
	if ctx.Corridor == nil || !rec.HasCoordinates() {
		return false, "", "", nil
	}
	within, _ := ctx.Corridor.Check(*rec.Latitude, *rec.Longitude)
	return !within, SeverityWarning, "verify: result lies outside the expected route corridor", nil
}

func pipelineMismatch(rec *model.GeocodeRecord, ctx Context) (bool, Severity, string, error) {
	if ctx.PipelineAnalyzer == nil || ctx.PipelineMismatchThresholdM <= 0 || !rec.HasCoordinates() {
		return false, "", "", nil
	}
	res := ctx.PipelineAnalyzer.Analyze(*rec.Latitude, *rec.Longitude)
	if res.DistanceM < 0 {
		return false, "", "", nil
	}
	return res.DistanceM > ctx.PipelineMismatchThresholdM, SeverityWarning, "verify: result is far from the known pipeline route", nil
}
