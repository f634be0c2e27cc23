package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

type shapeRow struct {
	shape shp.Shape
	attrs []string
}

// writeShapefile writes rows of one shape type with string columns.
func writeShapefile(t *testing.T, name string, kind shp.ShapeType, columns []string, rows []shapeRow) string {
	t.Helper()
	base := filepath.Join(t.TempDir(), name)
	w, err := shp.Create(base+".shp", kind)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fields := make([]shp.Field, len(columns))
	for i, c := range columns {
		fields[i] = shp.StringField(c, 32)
	}
	if err := w.SetFields(fields); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	for _, r := range rows {
		n := w.Write(r.shape)
		for i, v := range r.attrs {
			if err := w.WriteAttribute(int(n), i, v); err != nil {
				t.Fatalf("WriteAttribute: %v", err)
			}
		}
	}
	w.Close()
	// go-shp v0.1.1 names the attribute file "<base>dbf".
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	return base + ".shp"
}

func TestLoadShapefilePoints(t *testing.T) {
	path := writeShapefile(t, "sites", shp.POINT, []string{"NAME", "KIND"}, []shapeRow{
		{&shp.Point{X: 82.1, Y: 22.5}, []string{"Hospital", "amenity"}},
		{&shp.Point{X: 82.2, Y: 22.6}, []string{"", "unnamed"}},
	})

	c, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	f, ok := c.FindByName("Hospital")
	if !ok {
		t.Fatal("FindByName(Hospital) not found")
	}
	if f.GeometryType() != "Point" || f.Geometry().(orb.Point) != (orb.Point{82.1, 22.5}) {
		t.Errorf("geometry = %s %v", f.GeometryType(), f.Geometry())
	}
	if f.Properties()["KIND"] != "amenity" {
		t.Errorf("properties = %v", f.Properties())
	}
	if got := c.Features()[1].Name(); got != "" {
		t.Errorf("blank NAME column gave name %q", got)
	}
}

func TestLoadShapefileTwoPartPolyline(t *testing.T) {
	road := shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
		{{X: 2, Y: 2}, {X: 3, Y: 2}, {X: 4, Y: 3}},
	})
	path := writeShapefile(t, "roads", shp.POLYLINE, []string{"name"}, []shapeRow{
		{road, []string{"Road1"}},
	})

	c, err := LoadShapefile(path)
	if err != nil {
		t.Fatalf("LoadShapefile: %v", err)
	}
	f, ok := c.FindByName("Road1")
	if !ok {
		t.Fatal("FindByName(Road1) not found")
	}
	if f.GeometryType() != "MultiLineString" {
		t.Fatalf("geometry = %s, want MultiLineString", f.GeometryType())
	}
	mls := f.Geometry().(orb.MultiLineString)
	if len(mls) != 2 || len(mls[0]) != 2 || len(mls[1]) != 3 {
		t.Errorf("parts = %v", mls)
	}
	if mls[1][2] != (orb.Point{4, 3}) {
		t.Errorf("last point = %v", mls[1][2])
	}
}

func TestLoadShapefilePolygon(t *testing.T) {
	ring := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0}},
		{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1}},
	}))
	path := writeShapefile(t, "zones", shp.POLYGON, []string{"NAME_EN"}, []shapeRow{
		{&ring, []string{"D1 Boundary"}},
	})

	c, err := LoadShapefile(path)
	if err != nil {
		t.Fatalf("LoadShapefile: %v", err)
	}
	f, ok := c.FindByName("D1 Boundary")
	if !ok {
		t.Fatal("FindByName(D1 Boundary) not found")
	}
	if f.GeometryType() != "Polygon" {
		t.Fatalf("geometry = %s, want Polygon", f.GeometryType())
	}
	if poly := f.Geometry().(orb.Polygon); len(poly) != 2 || len(poly[0]) != 5 {
		t.Errorf("rings = %v", poly)
	}
	if hits := c.FeaturesAt(orb.Point{3, 3}, 0); len(hits) != 1 {
		t.Errorf("FeaturesAt inside the ring = %d hits", len(hits))
	}
}

func TestLoadShapefileMissing(t *testing.T) {
	var loadErr *LoadError
	_, err := LoadShapefile(filepath.Join(t.TempDir(), "missing.shp"))
	if !errors.As(err, &loadErr) {
		t.Errorf("err = %v, want a LoadError", err)
	}
}
