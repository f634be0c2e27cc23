// Package locate answers one-shot "where am I" requests and keeps the single
// location marker shown on the map.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/camera"
)

var (
	// ErrUnavailable is the root of every location failure.
	ErrUnavailable = errors.New("locate: position unavailable")
	// ErrUnsupported means no geolocation capability exists.
	ErrUnsupported = fmt.Errorf("%w: geolocation not supported", ErrUnavailable)
	// ErrNoFix means the capability exists but returned no position,
	// including user denial.
	ErrNoFix = fmt.Errorf("%w: unable to retrieve location", ErrUnavailable)
)

// User-facing notices for the two failure modes.
const (
	NoticeUnsupported = "Geolocation is not supported by your browser."
	NoticeNoFix       = "Unable to retrieve your location."
	MarkerLabel       = "You are here"
	// ApproximateLabel marks a position derived from the network address.
	ApproximateLabel = "Approximate location (from your network)"
)

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64 `json:"lat" doc:"Latitude in degrees"`
	Lon float64 `json:"lon" doc:"Longitude in degrees"`
	// Approximate is set for city-level positions that did not come from
	// the device.
	Approximate bool `json:"approximate,omitempty" readOnly:"true" doc:"City-level position from the network address"`
}

func (p Position) valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Geolocator is a single-shot position source.
type Geolocator interface {
	Locate(ctx context.Context) (Position, error)
}

// GeolocatorFunc adapts a function to Geolocator.
type GeolocatorFunc func(ctx context.Context) (Position, error)

func (f GeolocatorFunc) Locate(ctx context.Context) (Position, error) { return f(ctx) }

// Reported is a position the client obtained from its own geolocation API.
// A nil Position with Denied unset means the client has no such API.
type Reported struct {
	Position *Position
	Denied   bool
}

func (r Reported) Locate(ctx context.Context) (Position, error) {
	switch {
	case r.Position != nil:
		if !r.Position.valid() {
			return Position{}, ErrNoFix
		}
		pos := *r.Position
		pos.Approximate = false
		return pos, nil
	case r.Denied:
		return Position{}, ErrNoFix
	}
	return Position{}, ErrUnsupported
}

// Chain tries each geolocator in order and returns the first fix.
type Chain []Geolocator

func (c Chain) Locate(ctx context.Context) (Position, error) {
	err := ErrUnsupported
	for _, g := range c {
		pos, e := g.Locate(ctx)
		if e == nil {
			return pos, nil
		}
		if errors.Is(e, ErrNoFix) || !errors.Is(err, ErrNoFix) {
			err = e
		}
		if ctx.Err() != nil {
			return Position{}, fmt.Errorf("%w: %v", ErrNoFix, ctx.Err())
		}
	}
	return Position{}, err
}

// Marker is the persistent "you are here" pin.
type Marker struct {
	Position Position `json:"position" doc:"Marker position"`
	Label    string   `json:"label" doc:"Popup text"`
}

// Outcome is the result of one locate call. On failure only Notice and Err
// are set and nothing on the map changes.
type Outcome struct {
	Position Position
	Camera   *camera.Command
	Marker   *Marker
	Notice   string
	Err      error
}

// Available reports whether a position was obtained.
func (o Outcome) Available() bool { return o.Err == nil }

// Tracker runs locate requests and holds at most one marker. Requests are not
// cancelled when superseded; whichever resolves last owns the marker.
type Tracker struct {
	planner *camera.Planner
	logger  *slog.Logger

	mu     sync.Mutex
	marker *Marker
}

// NewTracker creates a tracker with no marker.
func NewTracker(planner *camera.Planner, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{planner: planner, logger: logger}
}

// Locate queries g once. The call blocks only its own caller.
func (p *Tracker) Locate(ctx context.Context, g Geolocator) Outcome {
	if g == nil {
		g = Reported{}
	}
	pos, err := g.Locate(ctx)
	if err != nil {
		notice := NoticeNoFix
		if errors.Is(err, ErrUnsupported) {
			notice = NoticeUnsupported
		}
		p.logger.Info("locate_unavailable", "err", err)
		return Outcome{Notice: notice, Err: err}
	}

	cmd := p.planner.PlanForPosition(pos.Lat, pos.Lon)
	m := &Marker{Position: pos, Label: MarkerLabel}
	if pos.Approximate {
		cmd = p.planner.PlanForArea(pos.Lat, pos.Lon)
		m.Label = ApproximateLabel
	}

	p.mu.Lock()
	p.marker = m
	p.mu.Unlock()

	p.logger.Debug("locate_ok", "lat", pos.Lat, "lon", pos.Lon, "approximate", pos.Approximate)
	mc := *m
	return Outcome{Position: pos, Camera: &cmd, Marker: &mc}
}

// Start runs Locate in the background and delivers the outcome on the
// returned channel.
func (p *Tracker) Start(ctx context.Context, g Geolocator) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		ch <- p.Locate(ctx, g)
		close(ch)
	}()
	return ch
}

// Marker returns the current marker.
func (p *Tracker) Marker() (Marker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.marker == nil {
		return Marker{}, false
	}
	return *p.marker, true
}

// Restore puts back a previously stored marker.
func (p *Tracker) Restore(m Marker) {
	p.mu.Lock()
	p.marker = &m
	p.mu.Unlock()
}
