// Package fixture loads the static inputs the pipeline core treats as
// external collaborators (spec.md §6): the ticket batch, the city
// reference map, and route/pipeline corridor geometries. Ticket file
// parsing and column normalization from Excel/CSV is explicitly out of
// scope (spec.md §1) — this package only covers the YAML fixture shapes a
// runnable repo needs to drive the core end to end, grounded on the
// teacher's config.Load (gopkg.in/yaml.v3 + viper-free direct unmarshal for
// small, non-env-overridable data files).
package fixture

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geoticket/internal/cityref"
	"github.com/sells-group/geoticket/internal/geomutil"
	"github.com/sells-group/geoticket/internal/model"
)

// ticketFile is the on-disk shape for a batch fixture.
type ticketFile struct {
	Tickets []model.Ticket `yaml:"tickets"`
}

// LoadTickets reads an ordered ticket batch from a YAML fixture.
func LoadTickets(path string) ([]model.Ticket, error) {
	var f ticketFile
	if err := readYAML(path, &f); err != nil {
		return nil, eris.Wrapf(err, "fixture: load tickets from %s", path)
	}
	return f.Tickets, nil
}

// cityRefFile is the on-disk shape for a city reference map fixture.
type cityRefFile struct {
	Cities []struct {
		City   string  `yaml:"city"`
		County string  `yaml:"county"`
		Lat    float64 `yaml:"lat"`
		Lng    float64 `yaml:"lng"`
	} `yaml:"cities"`
}

// LoadCityRefs reads the (city, county) -> reference point map.
func LoadCityRefs(path string) (cityref.Map, error) {
	var f cityRefFile
	if err := readYAML(path, &f); err != nil {
		return nil, eris.Wrapf(err, "fixture: load city reference map from %s", path)
	}
	entries := make([]cityref.Entry, 0, len(f.Cities))
	for _, c := range f.Cities {
		entries = append(entries, cityref.Entry{
			City:   c.City,
			County: c.County,
			Point:  geomutil.Point{Lat: c.Lat, Lng: c.Lng},
		})
	}
	return cityref.New(entries), nil
}

// geometryFile is the on-disk shape for a route/pipeline polyline fixture:
// an ordered list of (lat, lng) vertices. The teacher's KMZ/GeoPackage
// writers are out of scope (spec.md §1); this is the minimal format a
// runnable repo needs for the route-corridor and pipeline-proximity
// enrichers' input geometry.
type geometryFile struct {
	Vertices []struct {
		Lat float64 `yaml:"lat"`
		Lng float64 `yaml:"lng"`
	} `yaml:"vertices"`
}

// LoadGeometry reads an ordered polyline fixture (route corridor or
// pipeline geometry).
func LoadGeometry(path string) ([]geomutil.Point, error) {
	var f geometryFile
	if err := readYAML(path, &f); err != nil {
		return nil, eris.Wrapf(err, "fixture: load geometry from %s", path)
	}
	pts := make([]geomutil.Point, 0, len(f.Vertices))
	for _, v := range f.Vertices {
		pts = append(pts, geomutil.Point{Lat: v.Lat, Lng: v.Lng})
	}
	return pts, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
