package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/camera"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/locate"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/metrics"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/selection"
)

// DefaultSession always exists and is used by clients that never create one.
const DefaultSession = "default"

// DefaultMaxSessions caps live sessions when ViewConfig.MaxSessions is zero.
const DefaultMaxSessions = 10000

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the live session cap is reached.
	ErrTooManySessions = errors.New("too many sessions")
)

// ViewConfig wires a ViewService.
type ViewConfig struct {
	Catalog    *catalog.Catalog
	Boundaries catalog.Boundaries
	Store      SessionStore    // defaults to a MemoryStore
	Bus        *EventBus       // defaults to a new bus
	GeoIP      *locate.GeoIPDB // optional approximate fallback, on request only
	Logger     *slog.Logger

	// IdleTTL evicts sessions untouched for this long, together with their
	// stored record. Zero keeps them until restart.
	IdleTTL     time.Duration
	MaxSessions int
}

// ViewService owns the map sessions. Each session has its own selection
// controller and location tracker; transitions within a session are serialized.
type ViewService struct {
	cat        *catalog.Catalog
	boundaries catalog.Boundaries
	planner    *camera.Planner
	store      SessionStore
	bus        *EventBus
	geoip      *locate.GeoIPDB
	logger     *slog.Logger
	idleTTL    time.Duration
	max        int
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id      string
	touched time.Time // guarded by ViewService.mu

	mu      sync.Mutex
	ctl     *selection.Controller
	tracker *locate.Tracker
	seq     uint64
}

// NewViewService creates the service and its default session. It fails when
// the catalog has no main boundary.
func NewViewService(ctx context.Context, cfg ViewConfig) (*ViewService, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Bus == nil {
		cfg.Bus = NewEventBus()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	s := &ViewService{
		cat:        cfg.Catalog,
		boundaries: cfg.Boundaries,
		planner:    camera.New(cfg.Logger),
		store:      cfg.Store,
		bus:        cfg.Bus,
		geoip:      cfg.GeoIP,
		logger:     cfg.Logger,
		idleTTL:    cfg.IdleTTL,
		max:        cfg.MaxSessions,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
	if _, err := s.session(ctx, DefaultSession, true); err != nil {
		return nil, err
	}
	return s, nil
}

// Catalog returns the loaded catalog.
func (s *ViewService) Catalog() *catalog.Catalog { return s.cat }

// Boundaries returns the boundary table in use.
func (s *ViewService) Boundaries() catalog.Boundaries { return s.boundaries }

// Bus returns the event bus views are published on.
func (s *ViewService) Bus() *EventBus { return s.bus }

// Names lists the selectable locations.
func (s *ViewService) Names() []string {
	return s.cat.AllExcept(s.boundaries.Excluded)
}

// Issues reports catalog/boundary-table inconsistencies.
func (s *ViewService) Issues() []catalog.Issue {
	return catalog.Validate(s.cat, s.boundaries)
}

// FeaturesAt returns the named features under a point, for popups.
func (s *ViewService) FeaturesAt(lat, lon, tol float64) []*catalog.Feature {
	return s.cat.FeaturesAt(orb.Point{lon, lat}, tol)
}

// CreateSession starts a new session in the initial state.
func (s *ViewService) CreateSession(ctx context.Context) (View, error) {
	id := uuid.NewString()
	sess, err := s.session(ctx, id, true)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	v := s.viewLocked(sess, nil)
	s.persistLocked(ctx, sess)
	s.publish(ActionCreated, v)
	return v, nil
}

// View returns the current view of a session, camera planned for its state.
func (s *ViewService) View(ctx context.Context, id string) (View, error) {
	sess, err := s.session(ctx, id, false)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	cmd, _ := s.plan(sess.ctl.State())
	return s.viewLocked(sess, cmd), nil
}

// Select moves a session to the state for name; an empty name clears. An
// unknown name leaves the session as it was and returns the unchanged view
// with selection.ErrSelectionMiss.
func (s *ViewService) Select(ctx context.Context, id, name string) (View, error) {
	sess, err := s.session(ctx, id, false)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st, err := sess.ctl.Select(name)
	if errors.Is(err, selection.ErrSelectionMiss) {
		metrics.SelectionsTotal.WithLabelValues("miss").Inc()
		return s.viewLocked(sess, nil), err
	}
	if err != nil {
		return View{}, err
	}

	action := ActionSelected
	switch {
	case name == "":
		action = ActionCleared
		metrics.SelectionsTotal.WithLabelValues("cleared").Inc()
	case st.MissingBoundary != "":
		metrics.SelectionsTotal.WithLabelValues("boundary_missing").Inc()
	default:
		metrics.SelectionsTotal.WithLabelValues("selected").Inc()
	}
	cmd, kind := s.plan(st)
	metrics.CameraCommandsTotal.WithLabelValues(kind).Inc()
	return s.transitionLocked(ctx, sess, action, cmd), nil
}

// Clear returns a session to the initial state.
func (s *ViewService) Clear(ctx context.Context, id string) (View, error) {
	return s.Select(ctx, id, "")
}

// LocateResult is the outcome of a locate request together with the view
// it produced.
type LocateResult struct {
	View    View
	Outcome locate.Outcome
}

// LocateRequest is one location request. Reported carries what the client's
// own geolocation produced. When it reports nothing at all and
// AllowApproximate is set, a configured GeoIP database resolves RemoteAddr
// to an approximate position.
type LocateRequest struct {
	Reported         locate.Reported
	RemoteAddr       string
	AllowApproximate bool
}

// Locate runs one location request for a session. The query runs outside
// the session lock so selection stays usable meanwhile.
func (s *ViewService) Locate(ctx context.Context, id string, req LocateRequest) (LocateResult, error) {
	sess, err := s.session(ctx, id, false)
	if err != nil {
		return LocateResult{}, err
	}

	rep := req.Reported
	var g locate.Geolocator = rep
	if req.AllowApproximate && rep.Position == nil && !rep.Denied && s.geoip != nil && req.RemoteAddr != "" {
		g = locate.Chain{rep, s.geoip.For(req.RemoteAddr)}
	}
	out := sess.tracker.Locate(ctx, g)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !out.Available() {
		if errors.Is(out.Err, locate.ErrUnsupported) {
			metrics.LocateTotal.WithLabelValues("unsupported").Inc()
		} else {
			metrics.LocateTotal.WithLabelValues("no_fix").Inc()
		}
		return LocateResult{View: s.viewLocked(sess, nil), Outcome: out}, nil
	}
	if out.Position.Approximate {
		metrics.LocateTotal.WithLabelValues("approximate").Inc()
	} else {
		metrics.LocateTotal.WithLabelValues("ok").Inc()
	}
	metrics.CameraCommandsTotal.WithLabelValues(string(out.Camera.Kind)).Inc()
	v := s.transitionLocked(ctx, sess, ActionLocated, out.Camera)
	return LocateResult{View: v, Outcome: out}, nil
}

// Len returns the number of live sessions.
func (s *ViewService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL and deletes their
// stored records. The default session and sessions with live streams stay.
func (s *ViewService) Sweep(ctx context.Context) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var evicted []string
	for id, sess := range s.sessions {
		if id == DefaultSession || !sess.touched.Before(cutoff) || s.bus.Subscribers(id) > 0 {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, id)
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	for _, id := range evicted {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("session_delete_failed", "session", id, "err", err)
		}
	}
	if len(evicted) > 0 {
		s.logger.Info("sessions_evicted", "count", len(evicted))
	}
	return len(evicted)
}

// Run sweeps idle sessions until ctx is done.
func (s *ViewService) Run(ctx context.Context) {
	if s.idleTTL <= 0 {
		return
	}
	interval := min(max(s.idleTTL/2, time.Second), time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// session returns a live session, restoring it from the store when needed.
// With create set a missing session is started fresh.
func (s *ViewService) session(ctx context.Context, id string, create bool) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.touched = s.now()
		return sess, nil
	}
	if len(s.sessions) >= s.max {
		return nil, fmt.Errorf("%w (%d live)", ErrTooManySessions, len(s.sessions))
	}

	rec, found, err := s.store.Load(ctx, id)
	if err != nil {
		s.logger.Warn("session_load_failed", "session", id, "err", err)
	}
	if !found && !create && id != DefaultSession {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	ctl, err := selection.New(s.cat, s.boundaries, s.logger.With("session", id))
	if err != nil {
		return nil, err
	}
	sess := &session{
		id:      id,
		touched: s.now(),
		ctl:     ctl,
		tracker: locate.NewTracker(s.planner, s.logger.With("session", id)),
	}
	if found {
		if _, err := ctl.Select(rec.Selected); err != nil {
			s.logger.Warn("session_restore_selection_dropped", "session", id, "name", rec.Selected)
		}
		if rec.Marker != nil {
			sess.tracker.Restore(*rec.Marker)
		}
		s.logger.Info("session_restored", "session", id, "selected", rec.Selected)
	}
	s.sessions[id] = sess
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return sess, nil
}

// plan frames a selection state. kind labels the outcome for metrics.
func (s *ViewService) plan(st selection.State) (cmd *camera.Command, kind string) {
	c, err := s.planner.PlanForSelection(st.Focus, st.Visible)
	if err != nil {
		return nil, "geometry_missing"
	}
	return &c, string(c.Kind)
}

func (s *ViewService) transitionLocked(ctx context.Context, sess *session, action string, cmd *camera.Command) View {
	sess.seq++
	v := s.viewLocked(sess, cmd)
	s.persistLocked(ctx, sess)
	s.publish(action, v)
	return v
}

func (s *ViewService) viewLocked(sess *session, cmd *camera.Command) View {
	var marker *locate.Marker
	if m, ok := sess.tracker.Marker(); ok {
		marker = &m
	}
	return buildView(sess.id, sess.seq, sess.ctl.State(), cmd, marker)
}

func (s *ViewService) persistLocked(ctx context.Context, sess *session) {
	rec := SessionRecord{Selected: sess.ctl.State().Selected}
	if m, ok := sess.tracker.Marker(); ok {
		rec.Marker = &m
	}
	if err := s.store.Save(ctx, sess.id, rec); err != nil {
		s.logger.Warn("session_save_failed", "session", sess.id, "err", err)
	}
}

func (s *ViewService) publish(action string, v View) {
	s.bus.Publish(Event{Session: v.Session, Action: action, View: v})
}
