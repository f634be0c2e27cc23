// Package selection is the feature visibility state machine: given a
// requested location it decides which features are drawn and which one the
// camera should focus.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
)

var (
	// ErrSelectionMiss is returned when the requested name is not in the
	// catalog. The state is left unchanged.
	ErrSelectionMiss = errors.New("selection: name not in catalog")

	// ErrNoMainBoundary is returned by New when the catalog lacks the main
	// boundary, which every state must contain.
	ErrNoMainBoundary = errors.New("selection: catalog has no main boundary")
)

// State is an immutable snapshot. Visible always starts with the main
// boundary, followed by the selected feature and then its sub-boundary.
type State struct {
	Selected string
	Visible  []*catalog.Feature
	Focus    *catalog.Feature

	// MissingBoundary names a mapped sub-boundary that was not found.
	MissingBoundary string

	// Version identifies the visible set by content. Renderers key their
	// overlay on it so that every change is drawn as a new layer.
	Version string
}

// Controller owns the current State. It is not safe for concurrent use;
// callers serialize transitions.
type Controller struct {
	cat        *catalog.Catalog
	boundaries catalog.Boundaries
	main       *catalog.Feature
	state      State
	logger     *slog.Logger
}

// New creates a controller in the initial state: nothing selected, only the
// main boundary visible.
func New(cat *catalog.Catalog, boundaries catalog.Boundaries, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	main, ok := cat.FindByName(boundaries.Main)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoMainBoundary, boundaries.Main)
	}
	c := &Controller{
		cat:        cat,
		boundaries: boundaries,
		main:       main,
		logger:     logger,
	}
	c.state = c.cleared()
	return c, nil
}

// State returns the current snapshot.
func (c *Controller) State() State {
	s := c.state
	s.Visible = slices.Clone(s.Visible)
	return s
}

// Select replaces the state with the one for name. An empty name clears.
// An unknown name returns ErrSelectionMiss and the unchanged state.
func (c *Controller) Select(name string) (State, error) {
	if name == "" {
		return c.Clear(), nil
	}

	match, ok := c.cat.FindByName(name)
	if !ok {
		c.logger.Warn("selection_miss", "name", name)
		return c.State(), ErrSelectionMiss
	}

	next := State{
		Selected: name,
		Visible:  []*catalog.Feature{c.main, match},
		Focus:    match,
	}
	if b, mapped := c.boundaries.BoundaryFor(name); mapped {
		if boundary, found := c.cat.FindByName(b); found {
			next.Visible = append(next.Visible, boundary)
		} else {
			next.MissingBoundary = b
			c.logger.Warn("selection_boundary_missing", "name", name, "boundary", b)
		}
	}
	next.Version = version(next)

	c.state = next
	c.logger.Debug("selection_changed", "name", name, "visible", len(next.Visible), "version", next.Version)
	return c.State(), nil
}

// Clear returns to the initial state. It is idempotent.
func (c *Controller) Clear() State {
	c.state = c.cleared()
	c.logger.Debug("selection_cleared", "version", c.state.Version)
	return c.State()
}

func (c *Controller) cleared() State {
	s := State{Visible: []*catalog.Feature{c.main}}
	s.Version = version(s)
	return s
}

// version hashes the selected name and each visible feature's name and
// geometry. Equal states always yield equal tokens.
func version(s State) string {
	d := xxhash.New()
	d.WriteString(s.Selected)
	for _, f := range s.Visible {
		d.Write([]byte{0})
		d.WriteString(f.Name())
		d.Write([]byte{0})
		if f.Geometry() == nil {
			continue
		}
		if data, err := wkb.Marshal(f.Geometry()); err == nil {
			d.Write(data)
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
