// Package cityref holds the city reference map: (city, county) -> a known
// reference point, consumed by the proximity geocoder's city_primary and
// city_centroid_fallback strategies and by the validation engine's
// city_distance rule.
package cityref

import (
	"strings"

	"github.com/sells-group/geoticket/internal/geomutil"
)

// Map is a case-insensitive lookup from (city, county) to a reference point.
type Map map[string]geomutil.Point

// New builds a Map from city/county/point triples.
func New(entries []Entry) Map {
	m := make(Map, len(entries))
	for _, e := range entries {
		m[key(e.City, e.County)] = e.Point
	}
	return m
}

// Entry is one loadable (city, county, point) row, e.g. from a YAML fixture.
type Entry struct {
	City   string
	County string
	Point  geomutil.Point
}

// Lookup returns the reference point for (city, county), if known.
func (m Map) Lookup(city, county string) (geomutil.Point, bool) {
	p, ok := m[key(city, county)]
	return p, ok
}

func key(city, county string) string {
	return strings.ToUpper(strings.TrimSpace(city)) + "|" + strings.ToUpper(strings.TrimSpace(county))
}
