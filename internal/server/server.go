package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/api"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/api/viewer"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/logger"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/metrics"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/service"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/stream"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/tiles"
)

// Config holds the server configuration.
type Config struct {
	Host   string
	Port   string
	WebDir string // Path to web/ directory for static files and the viewer page

	Views  *service.ViewService // nil serves 503s; enough for exporting the OpenAPI document
	DB     *sql.DB              // optional DuckDB mirror
	Info   api.InfoConfig
	Logger *slog.Logger

	// TrustedProxies may set X-Forwarded-For for the GeoIP fallback.
	TrustedProxies []netip.Prefix
}

// Server is the map view HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API
	hub     *stream.Hub
	handler http.Handler
	logger  *slog.Logger
}

// New creates a new server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("tmap API", api.Version)
	humaConfig.Info.Description = "Interactive map view API: feature catalog, selection sessions, camera framing and device location."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (GeoJSON bodies must keep their own encoding)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		logger:  cfg.Logger,
	}
	if cfg.Views != nil {
		s.hub = stream.NewHub(cfg.Views, cfg.Logger)
	}
	s.routes()
	s.handler = logger.AccessMiddleware(cfg.Logger)(mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.hub != nil {
		go s.hub.Run(ctx)
	}
	if s.config.Views != nil {
		go s.config.Views.Run(ctx)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	h := api.NewAPIHandler(&api.Services{View: s.config.Views, TrustedProxies: s.config.TrustedProxies})
	h.RegisterHealth(s.humaAPI)
	h.RegisterCatalog(s.humaAPI)
	h.RegisterSessions(s.humaAPI)
	api.NewInfoHandler(s.config.Info).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.config.DB).RegisterRoutes(s.humaAPI)
	var tiler *tiles.Tiler
	if s.config.Views != nil {
		tiler = tiles.New(s.config.Views.Catalog())
	}
	api.NewTilesHandler(tiler).RegisterRoutes(s.humaAPI)

	// Datastar SSE routes
	viewer.NewHandler(s.config.Views, s.config.TrustedProxies...).RegisterRoutes(s.humaAPI)

	// Raw routes outside the OpenAPI document
	if s.hub != nil {
		s.mux.Handle("GET /ws/sessions/{id}", s.hub)
	}
	s.mux.Handle("GET /metrics", metrics.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		s.mux.HandleFunc("GET /viewer", s.handleViewer)
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "tmap",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.WebDir, "templates", "viewer.html"))
}
