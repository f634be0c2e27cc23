package tiles

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
)

func newTiler(t *testing.T) *Tiler {
	t.Helper()
	cat, err := catalog.Load(context.Background(), filepath.Join("..", "catalog", "testdata", "map.geojson"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return New(cat)
}

func names(t *testing.T, data []byte) []string {
	t.Helper()
	layers, err := mvt.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(layers) != 1 || layers[0].Name != LayerName {
		t.Fatalf("layers = %v", layers)
	}
	var out []string
	for _, f := range layers[0].Features {
		out = append(out, f.Properties.MustString("name", ""))
	}
	slices.Sort(out)
	return out
}

func TestWorldTile(t *testing.T) {
	tl := newTiler(t)
	data, err := tl.Tile(0, 0, 0)
	if err != nil {
		t.Fatalf("Tile: %v", err)
	}
	want := []string{"", "Boundary", "D1", "D1 Boundary", "D3", "Hospital", "Road1"}
	if got := names(t, data); !slices.Equal(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}

func TestEmptyTile(t *testing.T) {
	tl := newTiler(t)
	// western hemisphere holds nothing
	data, err := tl.Tile(1, 0, 0)
	if err != nil {
		t.Fatalf("Tile: %v", err)
	}
	if data != nil {
		t.Errorf("expected no data, got %d bytes", len(data))
	}
}

func TestTileIsCached(t *testing.T) {
	tl := newTiler(t)
	a, _ := tl.Tile(1, 1, 0)
	b, _ := tl.Tile(1, 1, 0)
	if len(a) == 0 || &a[0] != &b[0] {
		t.Error("second call should reuse the rendered tile")
	}
}

func TestOutOfRange(t *testing.T) {
	tl := newTiler(t)
	for _, c := range [][3]uint32{{1, 2, 0}, {0, 0, 1}, {MaxZoom + 1, 0, 0}} {
		if _, err := tl.Tile(c[0], c[1], c[2]); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Tile(%v) err = %v, want ErrOutOfRange", c, err)
		}
	}
}

func TestIntersects(t *testing.T) {
	tile := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	square := func(x0, y0, x1, y1 float64) orb.Polygon {
		return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
	}

	tests := []struct {
		name string
		g    orb.Geometry
		want bool
	}{
		{"point inside", orb.Point{0.5, 0.5}, true},
		{"point outside", orb.Point{2, 2}, false},
		{"polygon covering tile", square(-1, -1, 2, 2), true},
		{"polygon overlapping corner", square(0.5, 0.5, 3, 3), true},
		{"polygon apart", square(5, 5, 6, 6), false},
		{"line crossing", orb.LineString{{-1, 0.5}, {2, 0.5}}, true},
		{"line passing the corner", orb.LineString{{-1, 0.5}, {0.5, 2}}, false},
		{"multiline with one part inside", orb.MultiLineString{{{-1, -1}, {-0.5, -0.5}}, {{0.2, 0.2}, {0.3, 0.3}}}, true},
		{"strip with no vertex inside", square(-5, 0.1, 15, 0.2), true},
		{"l-shape around the tile", orb.Polygon{{{-1, -1}, {3, -1}, {3, -0.5}, {-0.5, -0.5}, {-0.5, 3}, {-1, 3}, {-1, -1}}}, false},
		{"tile inside a hole", orb.Polygon{square(-1, -1, 3, 3)[0], square(-0.5, -0.5, 2, 2)[0]}, false},
		{"multipolygon strip", orb.MultiPolygon{square(5, 5, 6, 6), square(0.3, -4, 0.4, 4)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := intersects(tt.g, tile); got != tt.want {
				t.Errorf("intersects = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntersectsThinStrip(t *testing.T) {
	tb := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}}
	strip := orb.Polygon{{{-5, 1}, {15, 1}, {15, 2}, {-5, 2}, {-5, 1}}}
	if !intersects(strip, tb) {
		t.Error("a strip crossing the bound must intersect it")
	}
	if strip[0][0] != (orb.Point{-5, 1}) {
		t.Error("intersects modified its input")
	}
}

func TestStripCrossingTileIsRendered(t *testing.T) {
	// Vertices sit north and south of tile 2/2/1, and none of its corners or
	// its centre fall inside the strip.
	strip := geojson.NewFeature(orb.Polygon{{{10, -80}, {20, -80}, {20, 80}, {10, 80}, {10, -80}}})
	strip.Properties["name"] = "Strip"
	tl := New(catalog.New([]*geojson.Feature{strip}))

	data, err := tl.Tile(2, 2, 1)
	if err != nil {
		t.Fatalf("Tile: %v", err)
	}
	if got := names(t, data); !slices.Equal(got, []string{"Strip"}) {
		t.Errorf("names = %v, want [Strip]", got)
	}
}
