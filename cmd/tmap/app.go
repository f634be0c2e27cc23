package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/api"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/db"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/locate"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/server"
	"github.com/JaideepNaiduKillari/TM-V2.0/internal/service"
)

// app is everything the server needs, built once at startup.
type app struct {
	cat        *catalog.Catalog
	boundaries catalog.Boundaries
	views      *service.ViewService
	db         *sql.DB
	info       api.InfoConfig
	trusted    []netip.Prefix
	closers    []func() error
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// envDefault returns v, or the named environment variable when v is empty.
func envDefault(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

// loadCatalog loads the feature catalog and boundary table. Failures here are
// terminal for every command.
func loadCatalog(ctx context.Context, opts *Options) (*catalog.Catalog, catalog.Boundaries, error) {
	boundaries, err := catalog.LoadBoundaries(opts.Boundaries)
	if err != nil {
		return nil, catalog.Boundaries{}, err
	}
	cat, err := catalog.Load(ctx, opts.Catalog)
	if err != nil {
		return nil, catalog.Boundaries{}, err
	}
	return cat, boundaries, nil
}

func newApp(ctx context.Context, opts *Options, logger *slog.Logger) (*app, error) {
	cat, boundaries, err := loadCatalog(ctx, opts)
	if err != nil {
		return nil, err
	}
	a := &app{cat: cat, boundaries: boundaries}
	a.info = api.InfoConfig{CatalogSource: opts.Catalog, Features: cat.Len(), Sessions: "memory"}
	logger.Info("catalog_loaded", "source", opts.Catalog, "features", cat.Len())

	for _, issue := range catalog.Validate(cat, boundaries) {
		logger.Warn("catalog_issue", "kind", issue.Kind, "name", issue.Name, "detail", issue.Detail)
	}

	a.trusted, err = locate.ParseTrustedProxies(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(opts.SessionTTL) * time.Minute
	cfg := service.ViewConfig{
		Catalog:     cat,
		Boundaries:  boundaries,
		Logger:      logger,
		IdleTTL:     ttl,
		MaxSessions: opts.MaxSessions,
	}

	if path := envDefault(opts.GeoIPDB, "GEOIP_DB"); path != "" {
		geo, err := locate.OpenGeoIP(path)
		if err != nil {
			a.Close()
			return nil, err
		}
		cfg.GeoIP = geo
		a.info.GeoIP = true
		a.closers = append(a.closers, geo.Close)
		logger.Info("geoip_enabled", "path", path)
	}

	if addr := envDefault(opts.RedisAddr, "REDIS_ADDR"); addr != "" {
		redisDB := opts.RedisDB
		if v := os.Getenv("REDIS_DB"); v != "" && redisDB == 0 {
			n, err := strconv.Atoi(v)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("REDIS_DB %q: %w", v, err)
			}
			redisDB = n
		}
		store, err := service.OpenRedisStore(ctx, service.RedisConfig{
			Addr:     addr,
			Password: envDefault(opts.RedisPassword, "REDIS_PASSWORD"),
			DB:       redisDB,
			TTL:      ttl,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		cfg.Store = store
		a.info.Sessions = "redis"
		a.closers = append(a.closers, store.Close)
		logger.Info("redis_sessions_enabled", "addr", addr)
	}

	views, err := service.NewViewService(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w (catalog %s)", err, opts.Catalog)
	}
	a.views = views

	if opts.Mirror {
		conn, err := db.Get(db.Config{DataDir: opts.DataDir, DBName: "tmap"})
		if err != nil {
			logger.Warn("duckdb_unavailable", "err", err)
		} else if n, err := db.MirrorCatalog(ctx, conn, cat); err != nil {
			logger.Warn("duckdb_mirror_failed", "err", err)
		} else if err := db.Lockdown(ctx, conn); err != nil {
			// never serve /api/v1/query on an unrestricted database
			logger.Warn("duckdb_lockdown_failed", "err", err)
		} else {
			a.db = conn
			a.info.DB = true
			a.closers = append(a.closers, db.Close)
			logger.Info("duckdb_mirrored", "table", db.FeaturesTable, "rows", n)
		}
	}
	return a, nil
}

func (a *app) server(opts *Options, logger *slog.Logger) *server.Server {
	return server.New(server.Config{
		Host:   opts.Host,
		Port:   strconv.Itoa(opts.Port),
		WebDir: opts.WebDir,
		Views:  a.views,
		DB:     a.db,
		Info:   a.info,
		Logger: logger,

		TrustedProxies: a.trusted,
	})
}
