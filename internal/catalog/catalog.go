// Package catalog loads and indexes the static feature collection shown on
// the map. A Catalog is built once and is read-only afterwards.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// LoadError is returned when the catalog source is unreachable or is not a
// valid feature collection. There is no partial catalog.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load catalog %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Catalog is the ordered, name-indexed feature collection.
type Catalog struct {
	features []*Feature
	byName   map[string]*Feature
	dups     []string
	index    *spatialIndex
}

// New builds a catalog from parsed GeoJSON features. Later features win when
// two share a name; unnamed features are kept but cannot be looked up.
func New(features []*geojson.Feature) *Catalog {
	c := &Catalog{
		features: make([]*Feature, 0, len(features)),
		byName:   make(map[string]*Feature, len(features)),
	}
	for _, raw := range features {
		if raw == nil {
			continue
		}
		f := newFeature(raw)
		c.features = append(c.features, f)
		if f.name == "" {
			continue
		}
		if _, exists := c.byName[f.name]; exists {
			c.dups = append(c.dups, f.name)
		}
		c.byName[f.name] = f
	}
	c.index = newSpatialIndex(c.features)
	return c
}

// Load reads the catalog from src: an http(s) URL, an ESRI shapefile (.shp)
// or a GeoJSON file path.
func Load(ctx context.Context, src string) (*Catalog, error) {
	if strings.EqualFold(filepath.Ext(src), ".shp") {
		return LoadShapefile(src)
	}

	var data []byte
	var err error
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = fetch(ctx, src)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, &LoadError{Source: src, Err: err}
	}

	c, err := parse(data)
	if err != nil {
		return nil, &LoadError{Source: src, Err: err}
	}
	return c, nil
}

// LoadBytes parses a GeoJSON FeatureCollection.
func LoadBytes(data []byte) (*Catalog, error) {
	c, err := parse(data)
	if err != nil {
		return nil, &LoadError{Source: "bytes", Err: err}
	}
	return c, nil
}

func parse(data []byte) (*Catalog, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}
	return New(fc.Features), nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch map data: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FindByName returns the feature whose properties.name equals name exactly.
func (c *Catalog) FindByName(name string) (*Feature, bool) {
	if name == "" {
		return nil, false
	}
	f, ok := c.byName[name]
	return f, ok
}

// AllExcept returns the distinct feature names not in excluded, sorted
// ascending. It backs the selectable-location list.
func (c *Catalog) AllExcept(excluded []string) []string {
	skip := make(map[string]struct{}, len(excluded))
	for _, n := range excluded {
		skip[n] = struct{}{}
	}

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		if _, ok := skip[name]; ok {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Features returns all features in load order.
func (c *Catalog) Features() []*Feature {
	return slices.Clone(c.features)
}

// Len returns the number of features, named or not.
func (c *Catalog) Len() int { return len(c.features) }

// Duplicates lists names that appeared more than once during load.
func (c *Catalog) Duplicates() []string {
	return slices.Clone(c.dups)
}

// FeatureCollection returns the given features as a new GeoJSON collection.
func FeatureCollection(features []*Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f.raw)
	}
	return fc
}
