package catalog

import (
	"errors"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// nameFields are the DBF attribute columns accepted as the feature name.
var nameFields = []string{"name", "NAME", "Name", "NAME_EN"}

// LoadShapefile reads an ESRI shapefile into a catalog. The DBF columns
// become feature properties and the first name-like column becomes
// properties.name.
func LoadShapefile(path string) (*Catalog, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer reader.Close()

	fields := reader.Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		// Field names are fixed-width and null padded.
		columns[i] = strings.TrimRight(string(field.Name[:]), "\x00 ")
	}

	var features []*geojson.Feature
	for reader.Next() {
		n, shape := reader.Shape()
		geom := shapeGeometry(shape)
		if geom == nil {
			continue
		}

		f := geojson.NewFeature(geom)
		for i, col := range columns {
			f.Properties[col] = strings.TrimSpace(reader.ReadAttribute(n, i))
		}
		for _, key := range nameFields {
			if v, ok := f.Properties[key].(string); ok && v != "" {
				f.Properties["name"] = v
				break
			}
		}
		features = append(features, f)
	}
	if err := reader.Err(); err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	if len(features) == 0 {
		return nil, &LoadError{Source: path, Err: errors.New("no supported shapes")}
	}
	return New(features), nil
}

func shapeGeometry(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.PolyLine:
		parts := splitParts(s.Parts, s.Points)
		if len(parts) == 1 {
			return orb.LineString(parts[0])
		}
		mls := make(orb.MultiLineString, len(parts))
		for i, p := range parts {
			mls[i] = orb.LineString(p)
		}
		return mls
	case *shp.Polygon:
		parts := splitParts(s.Parts, s.Points)
		poly := make(orb.Polygon, len(parts))
		for i, p := range parts {
			poly[i] = orb.Ring(p)
		}
		return poly
	}
	return nil
}

// splitParts cuts the flat point list at the part offsets.
func splitParts(offsets []int32, points []shp.Point) [][]orb.Point {
	parts := make([][]orb.Point, 0, len(offsets))
	for i, start := range offsets {
		end := int32(len(points))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		part := make([]orb.Point, 0, end-start)
		for _, pt := range points[start:end] {
			part = append(part, orb.Point{pt.X, pt.Y})
		}
		parts = append(parts, part)
	}
	return parts
}
