package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// MainBoundaryName is the default name of the permanent ground-reference feature.
const MainBoundaryName = "Boundary"

//go:embed boundaries.yaml
var defaultBoundaries []byte

// Boundaries is the hand-authored boundary table: which selectable location
// is drawn with which sub-boundary, and which names stay out of the location
// list. It is not derived from geometry.
type Boundaries struct {
	Main     string            `yaml:"main" json:"main"`
	Mapping  map[string]string `yaml:"boundaries" json:"boundaries"`
	Excluded []string          `yaml:"excluded" json:"excluded"`
}

// DefaultBoundaries returns the built-in table.
func DefaultBoundaries() Boundaries {
	b, err := ParseBoundaries(defaultBoundaries)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded boundaries.yaml: %v", err))
	}
	return b
}

// LoadBoundaries reads a boundary table from path, or returns the built-in
// table when path is empty.
func LoadBoundaries(path string) (Boundaries, error) {
	if path == "" {
		return DefaultBoundaries(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Boundaries{}, fmt.Errorf("reading boundaries: %w", err)
	}
	return ParseBoundaries(data)
}

// ParseBoundaries decodes a YAML boundary table.
func ParseBoundaries(data []byte) (Boundaries, error) {
	var b Boundaries
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Boundaries{}, fmt.Errorf("parsing boundaries: %w", err)
	}
	if b.Main == "" {
		b.Main = MainBoundaryName
	}
	if b.Mapping == nil {
		b.Mapping = map[string]string{}
	}
	return b, nil
}

// BoundaryFor returns the sub-boundary mapped to name.
func (b Boundaries) BoundaryFor(name string) (string, bool) {
	boundary, ok := b.Mapping[name]
	return boundary, ok && boundary != ""
}

// IsExcluded reports whether name is hidden from the location list.
func (b Boundaries) IsExcluded(name string) bool {
	return slices.Contains(b.Excluded, name)
}
