package api

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb/encoding/mvt"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/tiles"
)

func TestGetTile(t *testing.T) {
	cat, err := catalog.Load(context.Background(), filepath.Join("..", "catalog", "testdata", "map.geojson"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, api := humatest.New(t)
	NewTilesHandler(tiles.New(cat)).RegisterRoutes(api)

	resp := api.Get("/api/v1/tiles/0/0/0")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != tiles.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	layers, err := mvt.Unmarshal(resp.Body.Bytes())
	if err != nil || len(layers) != 1 || len(layers[0].Features) != 7 {
		t.Errorf("layers = %v, err = %v", layers, err)
	}

	if resp := api.Get("/api/v1/tiles/1/0/0"); resp.Code != http.StatusNoContent {
		t.Errorf("empty tile status = %d, want 204", resp.Code)
	}
	if resp := api.Get("/api/v1/tiles/1/5/0"); resp.Code != http.StatusNotFound {
		t.Errorf("out of range status = %d, want 404", resp.Code)
	}
}

func TestGetTileWithoutCatalog(t *testing.T) {
	_, api := humatest.New(t)
	NewTilesHandler(nil).RegisterRoutes(api)
	if resp := api.Get("/api/v1/tiles/0/0/0"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.Code)
	}
}
