// Package viewer serves the Datastar side of the map: a per-session SSE
// stream of view replacements and signal-driven select/locate actions.
package viewer

import (
	"context"
	"errors"
	"net/netip"

	"github.com/danielgtaylor/huma/v2"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/humastar"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/locate"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/metrics"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/selection"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/service"
)

// Signals patched into the page. The page posts "location" for selection
// and "lat", "lon", "denied", "approximate" for locate.
const (
	SignalView   = "view"
	SignalNotice = "notice"
)

// Handler streams views to Datastar pages.
type Handler struct {
	views   *service.ViewService
	trusted []netip.Prefix
}

// NewHandler creates the handler. X-Forwarded-For is believed only from the
// trusted proxies.
func NewHandler(views *service.ViewService, trusted ...netip.Prefix) *Handler {
	return &Handler{views: views, trusted: trusted}
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID" example:"default"`
}

// ActionInput carries the page's Datastar signals.
type ActionInput struct {
	ID      string `path:"id" doc:"Session ID" example:"default"`
	RawBody []byte
}

type selectSignals struct {
	Location string `json:"location"`
}

type locateSignals struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Denied bool     `json:"denied"`

	Approximate bool `json:"approximate"`
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/sessions/{id}/events", h.Events, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/sessions/{id}/actions/select", h.SelectAction, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/sessions/{id}/actions/locate", h.LocateAction, huma.OperationTags("viewer"))
}

// Events sends the current view, then every newer view of the session until
// the client goes away. The subscription is taken before the snapshot so no
// transition falls between them.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	if h.views == nil {
		return nil, errUnavailable
	}
	bus := h.views.Bus()
	sub := bus.Subscribe(input.ID)
	v, err := h.views.View(ctx, input.ID)
	if err != nil {
		bus.Unsubscribe(sub)
		return nil, viewError(err)
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			defer bus.Unsubscribe(sub)
			metrics.StreamClients.WithLabelValues("sse").Inc()
			defer metrics.StreamClients.WithLabelValues("sse").Dec()

			sse := humastar.NewSSE(humaCtx)
			if err := patchView(sse, v, ""); err != nil {
				return
			}
			last := v.Seq
			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev, ok := <-sub.C():
					if !ok {
						return
					}
					if ev.View.Seq <= last {
						continue
					}
					last = ev.View.Seq
					if err := patchView(sse, ev.View, ""); err != nil {
						return
					}
				}
			}
		},
	}, nil
}

// SelectAction applies the "location" signal. An empty value clears.
func (h *Handler) SelectAction(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	if h.views == nil {
		return nil, errUnavailable
	}
	sig, err := humastar.Decode[selectSignals](input.RawBody)
	if err != nil {
		return nil, err
	}
	name := sig.Location

	v, err := h.views.Select(ctx, input.ID, name)
	notice := ""
	switch {
	case errors.Is(err, selection.ErrSelectionMiss):
		notice = "Location not found: " + name
	case err != nil:
		return nil, viewError(err)
	case v.MissingBoundary != "":
		notice = "Boundary not available: " + v.MissingBoundary
	}
	return humastar.Stream(func(sse humastar.SSE) {
		patchView(sse, v, notice)
	}), nil
}

// LocateAction turns the browser's geolocation result into a locate request.
// Pages without the API send neither coordinates nor "denied".
func (h *Handler) LocateAction(ctx context.Context, input *ActionInput) (*huma.StreamResponse, error) {
	if h.views == nil {
		return nil, errUnavailable
	}
	sig, err := humastar.Decode[locateSignals](input.RawBody)
	if err != nil {
		return nil, err
	}
	req := service.LocateRequest{
		Reported:         locate.Reported{Denied: sig.Denied},
		AllowApproximate: sig.Approximate,
	}
	if sig.Lat != nil && sig.Lon != nil {
		req.Reported.Position = &locate.Position{Lat: *sig.Lat, Lon: *sig.Lon}
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			req.RemoteAddr = locate.ClientAddr(humaCtx.RemoteAddr(), humaCtx.Header("X-Forwarded-For"), h.trusted)
			res, err := h.views.Locate(humaCtx.Context(), input.ID, req)
			if err != nil {
				sse.Error(err.Error())
				return
			}
			patchView(sse, res.View, res.Outcome.Notice)
		},
	}, nil
}

var errUnavailable = huma.Error503ServiceUnavailable("service not available")

func patchView(sse humastar.SSE, v service.View, notice string) error {
	return sse.Signals(map[string]any{SignalView: v, SignalNotice: notice})
}

func viewError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrTooManySessions):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError("view unavailable", err)
}
