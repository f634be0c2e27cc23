// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/locate"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/selection"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	View *service.ViewService

	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix
}

// Types

type SessionInput struct {
	ID string `path:"id" doc:"Session ID" example:"default"`
}

type NameInput struct {
	Name string `path:"name" doc:"Exact, case-sensitive feature name" example:"D1"`
}

type AtInput struct {
	Lat float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude" example:"22.5"`
	Lon float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude" example:"82.1"`
	Tol float64 `query:"tol" minimum:"0" default:"0.00005" doc:"Hit tolerance in degrees for points and lines"`
}

type ViewOutput struct {
	Body service.View
}

type NamesBody struct {
	Names []string `json:"names" doc:"Names in ascending order"`
}

type IssuesBody struct {
	Issues []catalog.Issue `json:"issues" doc:"Data consistency warnings"`
}

type SelectionBody struct {
	Name string `json:"name" maxLength:"200" doc:"Location to select; empty clears the selection" example:"D1"`
}

type SelectionResult struct {
	View    service.View `json:"view" doc:"View after the request"`
	Ignored bool         `json:"ignored,omitempty" doc:"The name was not found and nothing changed"`
	Notice  string       `json:"notice,omitempty" doc:"User-facing message"`
}

type LocateBody struct {
	Position *locate.Position `json:"position,omitempty" doc:"Position reported by the device"`
	Denied   bool             `json:"denied,omitempty" doc:"Device geolocation failed or was refused"`

	Approximate bool `json:"approximate,omitempty" doc:"Allow a city-level position from the network address when the device reports none"`
}

type LocateInput struct {
	SessionInput
	ForwardedFor string `header:"X-Forwarded-For" doc:"Client address chain when behind a proxy"`
	Body         LocateBody

	peer string
}

// Resolve captures the direct peer address for the GeoIP fallback.
func (i *LocateInput) Resolve(ctx huma.Context) []error {
	i.peer = ctx.RemoteAddr()
	return nil
}

type LocateResult struct {
	View     service.View     `json:"view" doc:"View after the request"`
	Located  bool             `json:"located" doc:"Whether a position was obtained"`
	Position *locate.Position `json:"position,omitempty" doc:"Obtained position"`
	Notice   string           `json:"notice,omitempty" doc:"User-facing message when no position was obtained"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCatalog registers read-only catalog routes.
func (h *APIHandler) RegisterCatalog(api huma.API) {
	huma.Get(api, "/api/v1/catalog/names", h.GetNames, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/catalog/features", h.GetFeatures, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/catalog/features/{name}", h.GetFeature, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/catalog/at", h.GetFeaturesAt, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/catalog/issues", h.GetIssues, huma.OperationTags("catalog"))
}

// RegisterSessions registers view session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"), func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
	})
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/selection", h.PutSelection, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}/selection", h.DeleteSelection, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions/{id}/locate", h.Locate, huma.OperationTags("sessions"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) views() (*service.ViewService, error) {
	if h.svc == nil || h.svc.View == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	return h.svc.View, nil
}

func (h *APIHandler) GetNames(ctx context.Context, input *struct{}) (*struct{ Body NamesBody }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	return &struct{ Body NamesBody }{Body: NamesBody{Names: views.Names()}}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *struct{}) (*struct{ Body *geojson.FeatureCollection }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	return &struct{ Body *geojson.FeatureCollection }{Body: catalog.FeatureCollection(views.Catalog().Features())}, nil
}

func (h *APIHandler) GetFeature(ctx context.Context, input *NameInput) (*struct{ Body *geojson.Feature }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	f, ok := views.Catalog().FindByName(input.Name)
	if !ok {
		return nil, huma.Error404NotFound("feature not found: " + input.Name)
	}
	return &struct{ Body *geojson.Feature }{Body: f.GeoJSON()}, nil
}

func (h *APIHandler) GetFeaturesAt(ctx context.Context, input *AtInput) (*struct{ Body NamesBody }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, f := range views.FeaturesAt(input.Lat, input.Lon, input.Tol) {
		if f.Name() != "" {
			names = append(names, f.Name())
		}
	}
	return &struct{ Body NamesBody }{Body: NamesBody{Names: names}}, nil
}

func (h *APIHandler) GetIssues(ctx context.Context, input *struct{}) (*struct{ Body IssuesBody }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	issues := views.Issues()
	if issues == nil {
		issues = []catalog.Issue{}
	}
	return &struct{ Body IssuesBody }{Body: IssuesBody{Issues: issues}}, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*ViewOutput, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	v, err := views.CreateSession(ctx)
	if err != nil {
		return nil, viewError(err)
	}
	return &ViewOutput{Body: v}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*ViewOutput, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	v, err := views.View(ctx, input.ID)
	if err != nil {
		return nil, viewError(err)
	}
	return &ViewOutput{Body: v}, nil
}

func (h *APIHandler) PutSelection(ctx context.Context, input *struct {
	SessionInput
	Body SelectionBody
}) (*struct{ Body SelectionResult }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	v, err := views.Select(ctx, input.ID, input.Body.Name)
	return selectionResult(v, err, input.Body.Name)
}

func (h *APIHandler) DeleteSelection(ctx context.Context, input *SessionInput) (*struct{ Body SelectionResult }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	v, err := views.Clear(ctx, input.ID)
	return selectionResult(v, err, "")
}

func (h *APIHandler) Locate(ctx context.Context, input *LocateInput) (*struct{ Body LocateResult }, error) {
	views, err := h.views()
	if err != nil {
		return nil, err
	}
	res, err := views.Locate(ctx, input.ID, service.LocateRequest{
		Reported:         locate.Reported{Position: input.Body.Position, Denied: input.Body.Denied},
		RemoteAddr:       locate.ClientAddr(input.peer, input.ForwardedFor, h.svc.TrustedProxies),
		AllowApproximate: input.Body.Approximate,
	})
	if err != nil {
		return nil, viewError(err)
	}
	body := LocateResult{View: res.View, Located: res.Outcome.Available(), Notice: res.Outcome.Notice}
	if body.Located {
		pos := res.Outcome.Position
		body.Position = &pos
	}
	return &struct{ Body LocateResult }{Body: body}, nil
}

// selectionResult absorbs selection misses: the unchanged view is returned
// with a notice instead of an error.
func selectionResult(v service.View, err error, name string) (*struct{ Body SelectionResult }, error) {
	res := SelectionResult{View: v}
	switch {
	case errors.Is(err, selection.ErrSelectionMiss):
		res.Ignored = true
		res.Notice = "Location not found: " + name
	case err != nil:
		return nil, viewError(err)
	case v.MissingBoundary != "":
		res.Notice = "Boundary not available: " + v.MissingBoundary
	}
	return &struct{ Body SelectionResult }{Body: res}, nil
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
