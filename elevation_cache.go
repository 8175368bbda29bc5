package grvl

import (
	"context"
	"database/sql"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const (
	// Cached elevations are keyed by coordinates rounded to 1e-5 degree (~1 m)
	elevationKeyPrecision = 1e5

	elevationCacheSchema = `CREATE TABLE IF NOT EXISTS elevations (
	lat_key INTEGER NOT NULL,
	lon_key INTEGER NOT NULL,
	elevation REAL NOT NULL,
	PRIMARY KEY (lat_key, lon_key)
)`
)

// ElevationCache stores elevations in SQLite database and asks wrapped provider only for missing points
type ElevationCache struct {
	db     *sql.DB
	next   ElevationProvider
	logger *zap.Logger
}

// OpenElevationCache opens (or creates) cache database. Nil next means cache-only lookups
func OpenElevationCache(path string, next ElevationProvider, logger *zap.Logger) (*ElevationCache, error) {
	if logger == nil {
		logger = zap.L()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open elevation cache")
	}
	db.SetMaxOpenConns(1)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't enable WAL for elevation cache")
	}
	if _, err = db.Exec(elevationCacheSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't create elevation cache schema")
	}
	return &ElevationCache{db: db, next: next, logger: logger}, nil
}

// Close closes database
func (cache *ElevationCache) Close() error {
	return cache.db.Close()
}

func elevationKey(pt GeoPoint) (int64, int64) {
	return int64(math.Round(pt.Lat * elevationKeyPrecision)), int64(math.Round(pt.Lon * elevationKeyPrecision))
}

// Elevations implements ElevationProvider
func (cache *ElevationCache) Elevations(ctx context.Context, points []GeoPoint) ([]float64, error) {
	result := make([]float64, len(points))
	missing := make([]int, 0)
	for i, pt := range points {
		latKey, lonKey := elevationKey(pt)
		var elevation float64
		err := cache.db.QueryRowContext(ctx, "SELECT elevation FROM elevations WHERE lat_key = ? AND lon_key = ?", latKey, lonKey).Scan(&elevation)
		switch {
		case err == nil:
			result[i] = elevation
		case errors.Is(err, sql.ErrNoRows):
			result[i] = math.NaN()
			missing = append(missing, i)
		default:
			return nil, errors.Wrap(err, "Can't read elevation cache")
		}
	}
	if len(missing) == 0 || cache.next == nil {
		return result, nil
	}

	query := make([]GeoPoint, len(missing))
	for j, i := range missing {
		query[j] = points[i]
	}
	values, err := cache.next.Elevations(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(values) != len(query) {
		return nil, errElevationMismatch
	}
	for j, i := range missing {
		result[i] = values[j]
	}
	if err := cache.store(ctx, query, values); err != nil {
		// values are still usable
		cache.logger.Warn("can't store elevations", zap.Error(err))
	}
	return result, nil
}

// store saves known elevations. NaN values are not cached
func (cache *ElevationCache) store(ctx context.Context, points []GeoPoint, values []float64) error {
	tx, err := cache.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO elevations (lat_key, lon_key, elevation) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "Can't prepare statement")
	}
	defer stmt.Close()
	for i, pt := range points {
		if math.IsNaN(values[i]) {
			continue
		}
		latKey, lonKey := elevationKey(pt)
		if _, err := stmt.ExecContext(ctx, latKey, lonKey, values[i]); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "Can't insert elevation")
		}
	}
	return errors.Wrap(tx.Commit(), "Can't commit elevations")
}

// Len returns number of cached elevations
func (cache *ElevationCache) Len(ctx context.Context) (int, error) {
	var count int
	err := cache.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM elevations").Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "Can't count cached elevations")
	}
	return count, nil
}
