// Package roadnet implements the spatial index and road network (C5): a
// loaded, read-only collection of road segments with normalized-name
// lookup and geometric query helpers, grounded on the teacher's TIGER/Line
// shapefile loader (internal/tiger, internal/geo/loader.go).
package roadnet

import (
	"sort"
	"sync"

	"github.com/sells-group/geoticket/internal/geomutil"
)

// RoadClass tags a segment's functional class.
type RoadClass string

const (
	ClassInterstate RoadClass = "Interstate"
	ClassUS         RoadClass = "US"
	ClassState      RoadClass = "State"
	ClassFM         RoadClass = "FM"
	ClassCR         RoadClass = "CR"
	ClassService    RoadClass = "Service"
	ClassOther      RoadClass = "Other"
)

// RoadSegment is a 1-D geometric primitive: a normalized name, a class,
// and an ordered vertex sequence.
type RoadSegment struct {
	RawName   string
	Name      string // normalized canonical name
	Class     RoadClass
	Geometry  []geomutil.Point
}

// Network is the loaded, read-only road layer shared by all stages for the
// lifetime of a batch.
type Network struct {
	mu     sync.RWMutex
	byName map[string][]*RoadSegment
}

// New builds a Network from already-loaded segments, indexing each by its
// normalized name.
func New(segments []*RoadSegment) *Network {
	n := &Network{byName: make(map[string][]*RoadSegment)}
	for _, s := range segments {
		if s.Name == "" {
			s.Name = Normalize(s.RawName)
		}
		n.byName[s.Name] = append(n.byName[s.Name], s)
	}
	return n
}

// LookupResult reports what form of a name resolved, for reasoning strings.
type LookupResult struct {
	Segments     []*RoadSegment
	MatchedName  string // the canonical name that actually matched
	UsedVariant  bool
}

// FindByName resolves name against the network: direct canonical lookup
// first, then deterministic alphabetical-by-family variant generation.
func (n *Network) FindByName(name string) LookupResult {
	if name == "" {
		return LookupResult{}
	}
	canon := Normalize(name)

	n.mu.RLock()
	defer n.mu.RUnlock()

	if segs, ok := n.byName[canon]; ok {
		return LookupResult{Segments: segs, MatchedName: canon}
	}
	for _, v := range Variants(canon) {
		if segs, ok := n.byName[v]; ok {
			return LookupResult{Segments: segs, MatchedName: v, UsedVariant: true}
		}
	}
	return LookupResult{}
}

// Vertices flattens every segment's geometry into one polyline suitable for
// the geomutil intersection/closest-point helpers. Segment boundaries are
// not deduplicated; that's acceptable for the distance/intersection tests
// that consume it.
func Vertices(segs []*RoadSegment) []geomutil.Point {
	var out []geomutil.Point
	for _, s := range segs {
		out = append(out, s.Geometry...)
	}
	return out
}

// Intersections returns every point at which roadA's geometry crosses
// roadB's geometry.
func Intersections(roadA, roadB []*RoadSegment) []geomutil.Point {
	return geomutil.Intersections(Vertices(roadA), Vertices(roadB))
}

// ClosestPointPair returns the closest point on roadA, the closest point on
// roadB, and the distance between them.
func ClosestPointPair(roadA, roadB []*RoadSegment) (geomutil.Point, geomutil.Point, float64) {
	return geomutil.ClosestPointPair(Vertices(roadA), Vertices(roadB))
}

// Names returns every canonical name currently indexed, sorted — useful
// for diagnostics and tests.
func (n *Network) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.byName))
	for k := range n.byName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
