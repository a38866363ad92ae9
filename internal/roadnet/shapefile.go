package roadnet

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoticket/internal/geomutil"
)

// LoadShapefile reads road centerlines from a .shp file, the way the
// teacher's tiger.ParseShapefile reads TIGER/Line products: field lookup
// by case-insensitive name, one RoadSegment per shape record. nameField
// and classField select the attribute columns holding the road name and
// functional class; classField may be empty, in which case every segment
// is tagged ClassOther.
func LoadShapefile(path, nameField, classField string) (*Network, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roadnet: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, nameField)
	if nameIdx < 0 {
		return nil, eris.Errorf("roadnet: field %q not found in shapefile", nameField)
	}
	classIdx := -1
	if classField != "" {
		classIdx = fieldIndex(reader, classField)
	}

	log := zap.L().With(zap.String("component", "roadnet"), zap.String("path", path))

	var segments []*RoadSegment
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		polyline, ok := shape.(*shp.PolyLine)
		if !ok {
			skipped++
			continue
		}
		rawName := strings.TrimSpace(reader.Attribute(nameIdx))
		if rawName == "" {
			skipped++
			continue
		}
		class := ClassOther
		if classIdx >= 0 {
			class = classify(strings.TrimSpace(reader.Attribute(classIdx)))
		}
		segments = append(segments, &RoadSegment{
			RawName:  rawName,
			Name:     Normalize(rawName),
			Class:    class,
			Geometry: polylineToPoints(polyline),
		})
	}

	log.Info("shapefile loaded", zap.Int("segments", len(segments)), zap.Int("skipped", skipped))
	return New(segments), nil
}

func fieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func classify(raw string) RoadClass {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "I", "INTERSTATE":
		return ClassInterstate
	case "US":
		return ClassUS
	case "S", "SH", "STATE":
		return ClassState
	case "FM":
		return ClassFM
	case "CR", "C":
		return ClassCR
	case "SERVICE":
		return ClassService
	default:
		return ClassOther
	}
}

// polylineToPoints converts a shapefile polyline to a go-geom LineString —
// the wire-level geometry representation for a road segment — and flattens
// it back to the Point slice the spatial index computes distances over.
func polylineToPoints(p *shp.PolyLine) []geomutil.Point {
	raw := make([]geomutil.Point, 0, len(p.Points))
	for _, v := range p.Points {
		raw = append(raw, geomutil.Point{Lng: v.X, Lat: v.Y})
	}
	return geomutil.FromLineString(geomutil.ToLineString(raw))
}
