package catalog

import (
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// minExtent pads degenerate extents (points, axis-aligned lines) since
// rtreego rejects zero-length rectangles.
const minExtent = 1e-9

// DefaultHitTolerance is the hit-test radius in degrees (roughly 5 m).
const DefaultHitTolerance = 0.00005

// indexedFeature adapts a feature to the rtreego.Spatial interface.
type indexedFeature struct {
	f     *Feature
	order int
	rect  rtreego.Rect
}

func (e *indexedFeature) Bounds() rtreego.Rect { return e.rect }

type spatialIndex struct {
	rtree *rtreego.Rtree
}

func newSpatialIndex(features []*Feature) *spatialIndex {
	tree := rtreego.NewTree(2, 25, 50)
	for i, f := range features {
		b, ok := f.Bound()
		if !ok {
			continue
		}
		rect, err := boundRect(b)
		if err != nil {
			continue
		}
		tree.Insert(&indexedFeature{f: f, order: i, rect: rect})
	}
	return &spatialIndex{rtree: tree}
}

func boundRect(b orb.Bound) (rtreego.Rect, error) {
	point := rtreego.Point{b.Min.X(), b.Min.Y()}
	lengths := []float64{
		max(b.Max.X()-b.Min.X(), minExtent),
		max(b.Max.Y()-b.Min.Y(), minExtent),
	}
	return rtreego.NewRect(point, lengths)
}

// FeaturesAt returns the features under p (lon, lat), in load order. Areas
// match when they contain p; points and lines match within tol degrees.
func (c *Catalog) FeaturesAt(p orb.Point, tol float64) []*Feature {
	if tol <= 0 {
		tol = DefaultHitTolerance
	}
	query, err := boundRect(orb.Bound{
		Min: orb.Point{p.X() - tol, p.Y() - tol},
		Max: orb.Point{p.X() + tol, p.Y() + tol},
	})
	if err != nil {
		return nil
	}

	var hits []*indexedFeature
	for _, s := range c.index.rtree.SearchIntersect(query) {
		e := s.(*indexedFeature)
		if hit(e.f.Geometry(), p, tol) {
			hits = append(hits, e)
		}
	}
	slices.SortFunc(hits, func(a, b *indexedFeature) int { return a.order - b.order })

	out := make([]*Feature, len(hits))
	for i, e := range hits {
		out[i] = e.f
	}
	return out
}

func hit(g orb.Geometry, p orb.Point, tol float64) bool {
	switch g := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(g, p) {
			return true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(g, p) {
			return true
		}
	case orb.Collection:
		for _, c := range g {
			if hit(c, p, tol) {
				return true
			}
		}
		return false
	}
	return planar.DistanceFrom(g, p) <= tol
}
