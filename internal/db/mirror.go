package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/catalog"
)

// FeaturesTable is the table MirrorCatalog (re)creates.
const FeaturesTable = "features"

const createFeatures = `CREATE OR REPLACE TABLE features (
	ord INTEGER,
	name VARCHAR,
	geometry_type VARCHAR,
	wkt VARCHAR,
	properties VARCHAR,
	min_lon DOUBLE,
	min_lat DOUBLE,
	max_lon DOUBLE,
	max_lat DOUBLE
)`

// MirrorCatalog replaces the features table with one row per catalog
// feature in load order. Features without coordinates get NULL bounds.
func MirrorCatalog(ctx context.Context, conn *sql.DB, cat *catalog.Catalog) (int, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createFeatures); err != nil {
		return 0, fmt.Errorf("creating %s: %w", FeaturesTable, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO features VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, f := range cat.Features() {
		props, err := json.Marshal(f.Properties())
		if err != nil {
			return 0, fmt.Errorf("feature %d properties: %w", i, err)
		}

		var geomType, text sql.NullString
		if g := f.Geometry(); g != nil {
			geomType = sql.NullString{String: f.GeometryType(), Valid: true}
			text = sql.NullString{String: wkt.MarshalString(g), Valid: true}
		}
		var minLon, minLat, maxLon, maxLat sql.NullFloat64
		if b, ok := f.Bound(); ok {
			minLon = sql.NullFloat64{Float64: b.Min.Lon(), Valid: true}
			minLat = sql.NullFloat64{Float64: b.Min.Lat(), Valid: true}
			maxLon = sql.NullFloat64{Float64: b.Max.Lon(), Valid: true}
			maxLat = sql.NullFloat64{Float64: b.Max.Lat(), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, i, f.Name(), geomType, text, string(props), minLon, minLat, maxLon, maxLat); err != nil {
			return 0, fmt.Errorf("inserting feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return cat.Len(), nil
}
