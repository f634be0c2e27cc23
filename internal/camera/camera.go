// Package camera turns the selection state into a framing intent for the map
// renderer: fit a bounding box, or fly to a point at a fixed zoom.
package camera

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
)

const (
	// FeatureZoom is the fly-to zoom for a selected point feature.
	FeatureZoom = 18
	// LocationZoom is the fly-to zoom for the user's own position.
	LocationZoom = 17
	// AreaZoom is the fly-to zoom for an approximate, city-level position.
	AreaZoom = 11
	// DefaultPadding is the fit-bounds padding in pixels.
	DefaultPadding = 20
)

// ErrGeometryMissing means the planning input has no coordinates. The camera
// stays where it is.
var ErrGeometryMissing = errors.New("camera: geometry has no coordinates")

// Kind tags a Command.
type Kind string

const (
	FitBounds Kind = "fitBounds"
	FlyTo     Kind = "flyTo"
)

// Command is a one-shot camera instruction. FitBounds uses Bound and
// Padding; FlyTo uses Center and Zoom.
type Command struct {
	Kind    Kind
	Bound   orb.Bound
	Padding int
	Center  orb.Point
	Zoom    int
}

// LatLng returns the fly-to target as [lat, lon], the order map renderers expect.
func (c Command) LatLng() [2]float64 {
	return [2]float64{c.Center.Lat(), c.Center.Lon()}
}

// SouthWest and NorthEast return the fit-bounds corners as [lat, lon].
func (c Command) SouthWest() [2]float64 {
	return [2]float64{c.Bound.Min.Lat(), c.Bound.Min.Lon()}
}

func (c Command) NorthEast() [2]float64 {
	return [2]float64{c.Bound.Max.Lat(), c.Bound.Max.Lon()}
}

func (c Command) String() string {
	if c.Kind == FlyTo {
		return fmt.Sprintf("flyTo(%v, %d)", c.LatLng(), c.Zoom)
	}
	return fmt.Sprintf("fitBounds(%v-%v, %dpx)", c.SouthWest(), c.NorthEast(), c.Padding)
}

// Planner computes camera commands. The zero value is not usable; use New.
type Planner struct {
	padding int
	logger  *slog.Logger
}

// New creates a planner with the default padding.
func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{padding: DefaultPadding, logger: logger}
}

// PlanForSelection frames the focus feature, or the whole visible set when
// there is no focus. Points fly to a fixed zoom since a zero-size box has no
// meaningful fit.
func (p *Planner) PlanForSelection(focus *catalog.Feature, visible []*catalog.Feature) (Command, error) {
	if focus == nil {
		return p.planForSet(visible)
	}

	if !focus.HasCoordinates() {
		p.logger.Warn("camera_geometry_missing", "feature", focus.Name())
		return Command{}, ErrGeometryMissing
	}

	if pt, ok := focus.Geometry().(orb.Point); ok {
		return Command{Kind: FlyTo, Center: pt, Zoom: FeatureZoom}, nil
	}

	b, _ := focus.Bound()
	return Command{Kind: FitBounds, Bound: b, Padding: p.padding}, nil
}

func (p *Planner) planForSet(visible []*catalog.Feature) (Command, error) {
	var bound orb.Bound
	found := false
	for _, f := range visible {
		b, ok := f.Bound()
		if !ok {
			continue
		}
		if !found {
			bound, found = b, true
			continue
		}
		bound = bound.Union(b)
	}
	if !found {
		p.logger.Warn("camera_geometry_missing", "features", len(visible))
		return Command{}, ErrGeometryMissing
	}
	return Command{Kind: FitBounds, Bound: bound, Padding: p.padding}, nil
}

// PlanForArea flies to an approximate position, far enough out to show the
// surrounding area.
func (p *Planner) PlanForArea(lat, lon float64) Command {
	return Command{Kind: FlyTo, Center: orb.Point{lon, lat}, Zoom: AreaZoom}
}

// PlanForPosition flies to a located device position.
func (p *Planner) PlanForPosition(lat, lon float64) Command {
	return Command{Kind: FlyTo, Center: orb.Point{lon, lat}, Zoom: LocationZoom}
}
