package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "1.0.0"

// InfoConfig describes the running instance.
type InfoConfig struct {
	CatalogSource string
	Features      int
	Sessions      string // "memory" or "redis"
	GeoIP         bool
	DB            bool
}

type InfoHandler struct {
	cfg InfoConfig
}

func NewInfoHandler(cfg InfoConfig) *InfoHandler {
	return &InfoHandler{cfg: cfg}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Catalog  string   `json:"catalog" doc:"Catalog source path or URL"`
	Count    int      `json:"count" doc:"Number of features in the catalog"`
	Sessions string   `json:"sessions" enum:"memory,redis" doc:"Session store backend"`
	Features []string `json:"features" doc:"Available optional features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"catalog", "tiles", "sessions", "sse", "websocket"}
	if h.cfg.GeoIP {
		features = append(features, "geoip")
	}
	if h.cfg.DB {
		features = append(features, "duckdb")
	}
	sessions := h.cfg.Sessions
	if sessions == "" {
		sessions = "memory"
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "tmap",
		Version:  Version,
		Catalog:  h.cfg.CatalogSource,
		Count:    h.cfg.Features,
		Sessions: sessions,
		Features: features,
	}}, nil
}
