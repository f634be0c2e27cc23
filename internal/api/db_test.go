package api

import (
	"context"
	"net/http"
	"path/filepath"
	"slices"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/db"
)

func TestDBHandler(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.Load(ctx, filepath.Join("..", "catalog", "testdata", "map.geojson"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if _, err := db.MirrorCatalog(ctx, conn, cat); err != nil {
		t.Fatalf("MirrorCatalog: %v", err)
	}
	if err := db.Lockdown(ctx, conn); err != nil {
		t.Fatalf("Lockdown: %v", err)
	}

	cfg := huma.DefaultConfig("test", Version)
	cfg.CreateHooks = []func(huma.Config) huma.Config{}
	_, api := humatest.New(t, cfg)
	NewDBHandler(conn).RegisterRoutes(api)

	resp := api.Get("/api/v1/tables")
	tables := decode[struct {
		Tables []string `json:"tables"`
	}](t, resp.Body)
	if !slices.Contains(tables.Tables, db.FeaturesTable) {
		t.Errorf("tables = %v", tables.Tables)
	}

	resp = api.Post("/api/v1/query", map[string]any{"query": "SELECT name FROM features WHERE geometry_type = 'Point' AND name <> '' ORDER BY name"})
	if resp.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", resp.Code, resp.Body.String())
	}
	res := decode[struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
		Count   int              `json:"count"`
	}](t, resp.Body)
	if res.Count != 2 || res.Rows[0]["name"] != "D1" || res.Rows[1]["name"] != "D3" {
		t.Errorf("query = %+v", res)
	}

	if resp := api.Post("/api/v1/query", map[string]any{"query": "SELEC nonsense"}); resp.Code != http.StatusBadRequest {
		t.Errorf("bad query status = %d", resp.Code)
	}
}

func TestQueryIsReadOnly(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.Load(ctx, filepath.Join("..", "catalog", "testdata", "map.geojson"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if _, err := db.MirrorCatalog(ctx, conn, cat); err != nil {
		t.Fatalf("MirrorCatalog: %v", err)
	}
	if err := db.Lockdown(ctx, conn); err != nil {
		t.Fatalf("Lockdown: %v", err)
	}

	_, api := humatest.New(t)
	NewDBHandler(conn).RegisterRoutes(api)

	out := filepath.Join(t.TempDir(), "x.csv")
	for _, q := range []string{
		"DROP TABLE features",
		"DELETE FROM features",
		"COPY (SELECT 42) TO '" + out + "'",
		"SELECT 1; DROP TABLE features",
		"SELECT * FROM read_csv('" + out + "')",
		"SET enable_external_access = true",
	} {
		if resp := api.Post("/api/v1/query", map[string]any{"query": q}); resp.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", q, resp.Code)
		}
	}

	resp := api.Post("/api/v1/query", map[string]any{"query": "WITH n AS (SELECT count(*) AS c FROM features) SELECT c FROM n;"})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	res := decode[struct {
		Rows []map[string]any `json:"rows"`
	}](t, resp.Body)
	if len(res.Rows) != 1 || res.Rows[0]["c"] != float64(cat.Len()) {
		t.Errorf("rows = %v, want count %d", res.Rows, cat.Len())
	}
}

func TestReadOnly(t *testing.T) {
	tests := []struct {
		q    string
		want string
		ok   bool
	}{
		{"SELECT 1;", "SELECT 1", true},
		{"  with t as (select 1) select * from t", "with t as (select 1) select * from t", true},
		{"FROM features", "FROM features", true},
		{"INSERT INTO features VALUES (1)", "", false},
		{"SELECT ';'", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := readOnly(tt.q)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("readOnly(%q) = %q, %v", tt.q, got, err)
		}
	}
}

func TestDBHandlerWithoutDB(t *testing.T) {
	_, api := humatest.New(t)
	NewDBHandler(nil).RegisterRoutes(api)
	if resp := api.Get("/api/v1/tables"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.Code)
	}
}
