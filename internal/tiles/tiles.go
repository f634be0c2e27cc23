// Package tiles renders the catalog as Mapbox vector tiles on demand.
//
// Tiles carry one layer ("features") holding every catalog feature with
// coordinates, clipped and projected to the tile, simplified at low zooms.
// The catalog never changes after load, so rendered tiles are cached.
package tiles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
)

const (
	// LayerName is the single vector layer in every tile.
	LayerName = "features"
	// MaxZoom is the deepest zoom served.
	MaxZoom = 22
	// ContentType is the media type of encoded tiles.
	ContentType = "application/vnd.mapbox-vector-tile"

	maxCached = 4096
)

// ErrOutOfRange is returned for tile coordinates outside the pyramid.
var ErrOutOfRange = errors.New("tile out of range")

// Tiler renders tiles for one catalog.
type Tiler struct {
	features []*catalog.Feature

	mu    sync.Mutex
	cache map[maptile.Tile][]byte
}

// New creates a Tiler over the features of cat that have coordinates.
func New(cat *catalog.Catalog) *Tiler {
	t := &Tiler{cache: make(map[maptile.Tile][]byte)}
	for _, f := range cat.Features() {
		if f.HasCoordinates() {
			t.features = append(t.features, f)
		}
	}
	return t
}

// Tile returns the encoded tile at z/x/y. A tile with no features is
// returned as nil data and no error.
func (t *Tiler) Tile(z, x, y uint32) ([]byte, error) {
	if z > MaxZoom || x >= 1<<z || y >= 1<<z {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrOutOfRange, z, x, y)
	}
	tile := maptile.New(x, y, maptile.Zoom(z))

	t.mu.Lock()
	data, ok := t.cache[tile]
	t.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := t.render(tile)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if len(t.cache) < maxCached {
		t.cache[tile] = data
	}
	t.mu.Unlock()
	return data, nil
}

func (t *Tiler) render(tile maptile.Tile) ([]byte, error) {
	bound := tile.Bound()
	fc := geojson.NewFeatureCollection()
	for _, f := range t.features {
		if !intersects(f.Geometry(), bound) {
			continue
		}
		// mvt clips and projects in place
		g := geojson.NewFeature(orb.Clone(f.Geometry()))
		for k, v := range f.Properties() {
			switch v.(type) {
			case string, float64, bool:
				g.Properties[k] = v
			}
		}
		fc.Append(g)
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(LayerName, fc)
	if eps := simplifyEpsilon(tile.Z); eps > 0 {
		layer.Simplify(simplify.DouglasPeucker(eps))
	}
	layer.Clip(bound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.Marshal(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// intersects refines the bounding box test by clipping the geometry to the
// tile. Polygons need a clipped area; Sutherland-Hodgman leaves degenerate
// rings along the tile edge when only the bounding boxes overlap.
func intersects(g orb.Geometry, tb orb.Bound) bool {
	if !g.Bound().Intersects(tb) {
		return false
	}

	switch g := g.(type) {
	case orb.Point:
		return tb.Contains(g)
	case orb.MultiPoint:
		return len(clip.MultiPoint(tb, g)) > 0
	case orb.LineString:
		return len(clip.LineString(tb, g)) > 0
	case orb.MultiLineString:
		return len(clip.MultiLineString(tb, g)) > 0
	case orb.Polygon:
		return planar.Area(clip.Polygon(tb, g.Clone())) > 0
	case orb.MultiPolygon:
		return planar.Area(clip.MultiPolygon(tb, g.Clone())) > 0
	default:
		return true
	}
}

// simplifyEpsilon is roughly half a screen pixel in degrees, and zero once
// buildings are drawn at full detail.
func simplifyEpsilon(z maptile.Zoom) float64 {
	if z >= 16 {
		return 0
	}
	return 360.0 / float64(uint64(512)<<z)
}
