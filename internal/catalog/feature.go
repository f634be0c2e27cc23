package catalog

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is a named entry of the catalog. It wraps the parsed GeoJSON
// feature and is never mutated after load.
type Feature struct {
	raw  *geojson.Feature
	name string
}

func newFeature(raw *geojson.Feature) *Feature {
	return &Feature{raw: raw, name: raw.Properties.MustString("name", "")}
}

// Name returns properties.name, or "" for unnamed features.
func (f *Feature) Name() string { return f.name }

// GeometryType returns the GeoJSON geometry type ("Point", "LineString",
// "Polygon", ...), or "" when the feature has no geometry.
func (f *Feature) GeometryType() string {
	if f.raw.Geometry == nil {
		return ""
	}
	return f.raw.Geometry.GeoJSONType()
}

// Geometry returns the feature geometry, which may be nil.
func (f *Feature) Geometry() orb.Geometry { return f.raw.Geometry }

// Properties returns the feature properties.
func (f *Feature) Properties() geojson.Properties { return f.raw.Properties }

// GeoJSON returns the underlying feature for serialization. Callers must not
// modify it.
func (f *Feature) GeoJSON() *geojson.Feature { return f.raw }

// HasCoordinates reports whether the geometry carries at least one position.
func (f *Feature) HasCoordinates() bool { return hasCoordinates(f.raw.Geometry) }

// Bound returns the geometry extent. ok is false when there are no coordinates.
func (f *Feature) Bound() (b orb.Bound, ok bool) {
	if !f.HasCoordinates() {
		return orb.Bound{}, false
	}
	return f.raw.Geometry.Bound(), true
}

func hasCoordinates(g orb.Geometry) bool {
	switch g := g.(type) {
	case nil:
		return false
	case orb.Point, orb.Bound:
		return true
	case orb.MultiPoint:
		return len(g) > 0
	case orb.LineString:
		return len(g) > 0
	case orb.Ring:
		return len(g) > 0
	case orb.Polygon:
		for _, r := range g {
			if len(r) > 0 {
				return true
			}
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if len(ls) > 0 {
				return true
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if hasCoordinates(p) {
				return true
			}
		}
	case orb.Collection:
		for _, c := range g {
			if hasCoordinates(c) {
				return true
			}
		}
	}
	return false
}
