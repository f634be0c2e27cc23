package viewer

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/service"
)

func newViews(t *testing.T) *service.ViewService {
	t.Helper()
	ctx := context.Background()
	cat, err := catalog.Load(ctx, filepath.Join("..", "..", "catalog", "testdata", "map.geojson"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	views, err := service.NewViewService(ctx, service.ViewConfig{
		Catalog:    cat,
		Boundaries: catalog.DefaultBoundaries(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewViewService: %v", err)
	}
	return views
}

func newAPI(t *testing.T, views *service.ViewService) (*http.ServeMux, humatest.TestAPI) {
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	NewHandler(views).RegisterRoutes(api)
	return mux, humatest.Wrap(t, api)
}

func TestSelectAction(t *testing.T) {
	_, api := newAPI(t, newViews(t))

	resp := api.Post("/api/v1/sessions/default/actions/select", map[string]any{"location": "D1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if !strings.Contains(body, "datastar-patch-signals") || !strings.Contains(body, `"selected":"D1"`) {
		t.Errorf("body = %s", body)
	}
}

func TestSelectActionMiss(t *testing.T) {
	_, api := newAPI(t, newViews(t))

	resp := api.Post("/api/v1/sessions/default/actions/select", map[string]any{"location": "Atlantis"})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if body := resp.Body.String(); !strings.Contains(body, "Location not found: Atlantis") {
		t.Errorf("body = %s", body)
	}
}

func TestSelectActionMissingBoundary(t *testing.T) {
	_, api := newAPI(t, newViews(t))

	resp := api.Post("/api/v1/sessions/default/actions/select", map[string]any{"location": "D3"})
	if body := resp.Body.String(); !strings.Contains(body, "Boundary not available: D3 Boundary") {
		t.Errorf("body = %s", body)
	}
}

func TestLocateAction(t *testing.T) {
	_, api := newAPI(t, newViews(t))

	resp := api.Post("/api/v1/sessions/default/actions/locate", map[string]any{"lat": 22.5, "lon": 82.1})
	if body := resp.Body.String(); !strings.Contains(body, `"label":"You are here"`) || !strings.Contains(body, `"zoom":17`) {
		t.Errorf("body = %s", body)
	}

	resp = api.Post("/api/v1/sessions/default/actions/locate", map[string]any{"denied": true})
	if body := resp.Body.String(); !strings.Contains(body, "Unable to retrieve your location.") {
		t.Errorf("body = %s", body)
	}

	resp = api.Post("/api/v1/sessions/default/actions/locate", map[string]any{"approximate": true})
	if body := resp.Body.String(); !strings.Contains(body, "Geolocation is not supported by your browser.") {
		t.Errorf("approximate without a geoip database: body = %s", body)
	}
}

func TestUnknownSession(t *testing.T) {
	_, api := newAPI(t, newViews(t))

	resp := api.Post("/api/v1/sessions/nope/actions/select", map[string]any{"location": "D1"})
	if resp.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.Code)
	}
}

func TestEventsUnknownSessionReleasesSubscription(t *testing.T) {
	views := newViews(t)
	_, api := newAPI(t, views)

	if resp := api.Get("/api/v1/sessions/nope/events"); resp.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.Code)
	}
	if n := views.Bus().Len(); n != 0 {
		t.Errorf("%d subscriptions left behind", n)
	}
}

func TestEventsStream(t *testing.T) {
	views := newViews(t)
	mux, _ := newAPI(t, views)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sessions/default/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 1<<20), 1<<20)
	next := func(want string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), want) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", want, lines.Err())
	}

	next(`"selected":""`)
	if _, err := views.Select(context.Background(), service.DefaultSession, "Hospital"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	next(`"selected":"Hospital"`)
}
