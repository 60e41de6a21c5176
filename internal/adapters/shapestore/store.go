// Package shapestore persists indexed shapefile layers in SQLite with an
// R-tree over the feature extents.
package shapestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/jobrunner/meridian/internal/domain"
)

const driverName = "sqlite3_shapes"

// Ensure the sqlite3 driver is registered with foreign keys enabled on
// every connection.
func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			_, err := conn.Exec("PRAGMA foreign_keys = ON", nil)
			return err
		},
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS layers (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	path          TEXT NOT NULL,
	size          INTEGER NOT NULL,
	shape_type    INTEGER NOT NULL,
	source_srid   INTEGER NOT NULL,
	feature_count INTEGER NOT NULL,
	min_x REAL, min_y REAL, max_x REAL, max_y REAL,
	fields        BLOB,
	loaded_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS features (
	id       INTEGER PRIMARY KEY,
	layer_id TEXT NOT NULL REFERENCES layers(id) ON DELETE CASCADE,
	fid      INTEGER NOT NULL,
	geom     BLOB NOT NULL,
	props    BLOB,
	UNIQUE (layer_id, fid)
);
CREATE VIRTUAL TABLE IF NOT EXISTS features_rtree USING rtree(id, minx, maxx, miny, maxy);
`

// Store implements the ShapeStore port.
type Store struct {
	db     *sql.DB
	cache  *featureCache
	logger *slog.Logger
}

// Open opens or creates the store at path. An empty path or ":memory:"
// keeps everything in memory. cacheEntries bounds the decoded feature
// cache; zero disables it.
func Open(ctx context.Context, path string, cacheEntries int, logger *slog.Logger) (*Store, error) {
	memory := path == "" || path == ":memory:"

	var dsn string
	if memory {
		// A named shared-cache database lives as long as one connection.
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	// SQLite allows one writer; a single connection also keeps the
	// in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "migrate", Key: path, Err: err}
	}

	logger.Debug("shape store opened", "path", path, "memory", memory, "cache_entries", cacheEntries)

	return &Store{
		db:     db,
		cache:  newFeatureCache(cacheEntries),
		logger: logger,
	}, nil
}

// SaveLayer replaces a layer and all of its features in one transaction.
func (s *Store) SaveLayer(ctx context.Context, layer *domain.Layer, features []domain.Feature) (err error) {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Operation: "save", Key: layer.ID, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err := deleteLayer(ctx, tx, layer.ID); err != nil {
		return &domain.StorageError{Operation: "save", Key: layer.ID, Err: err}
	}
	if err := insertLayer(ctx, tx, layer); err != nil {
		return &domain.StorageError{Operation: "save", Key: layer.ID, Err: err}
	}
	if err := insertFeatures(ctx, tx, layer.ID, features); err != nil {
		return &domain.StorageError{Operation: "save", Key: layer.ID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Operation: "save", Key: layer.ID, Err: err}
	}

	s.cache.clear()
	s.logger.Debug("layer stored",
		"layer", layer.ID,
		"features", len(features),
		"duration", time.Since(start),
	)
	return nil
}

func insertLayer(ctx context.Context, tx *sql.Tx, layer *domain.Layer) error {
	fields, err := encMode.Marshal(layer.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}

	var minX, minY, maxX, maxY sql.NullFloat64
	if !layer.Extent.IsEmpty() {
		minX = sql.NullFloat64{Float64: layer.Extent.MinX(), Valid: true}
		minY = sql.NullFloat64{Float64: layer.Extent.MinY(), Valid: true}
		maxX = sql.NullFloat64{Float64: layer.Extent.MaxX(), Valid: true}
		maxY = sql.NullFloat64{Float64: layer.Extent.MaxY(), Valid: true}
	}

	loadedAt := layer.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layers (id, name, path, size, shape_type, source_srid, feature_count,
			min_x, min_y, max_x, max_y, fields, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		layer.ID, layer.Name, layer.Path, layer.Size, int(layer.ShapeType), layer.SourceSRID,
		layer.FeatureCount, minX, minY, maxX, maxY, fields, loadedAt.UnixNano(),
	)
	return err
}

func insertFeatures(ctx context.Context, tx *sql.Tx, layerID string, features []domain.Feature) error {
	featureStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features (layer_id, fid, geom, props) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = featureStmt.Close() }()

	indexStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO features_rtree (id, minx, maxx, miny, maxy) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = indexStmt.Close() }()

	for i := range features {
		f := &features[i]
		if f.Range == nil || len(f.Range.Parts) == 0 {
			continue
		}

		geom, err := encodeShape(f.Range)
		if err != nil {
			return fmt.Errorf("encoding feature %d: %w", f.ID, err)
		}
		props, err := encodeProperties(f.Properties)
		if err != nil {
			return fmt.Errorf("encoding feature %d attributes: %w", f.ID, err)
		}

		res, err := featureStmt.ExecContext(ctx, layerID, f.ID, geom, props)
		if err != nil {
			return fmt.Errorf("inserting feature %d: %w", f.ID, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		e := f.Range.Extent()
		if _, err := indexStmt.ExecContext(ctx, rowID, e.MinX(), e.MaxX(), e.MinY(), e.MaxY()); err != nil {
			return fmt.Errorf("indexing feature %d: %w", f.ID, err)
		}
	}
	return nil
}

// DeleteLayer removes a layer, its features and their index entries.
// Deleting an unknown layer is not an error.
func (s *Store) DeleteLayer(ctx context.Context, layerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageError{Operation: "delete", Key: layerID, Err: err}
	}
	if err := deleteLayer(ctx, tx, layerID); err != nil {
		_ = tx.Rollback()
		return &domain.StorageError{Operation: "delete", Key: layerID, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Operation: "delete", Key: layerID, Err: err}
	}
	s.cache.clear()
	return nil
}

// deleteLayer drops the R-tree rows first; virtual tables do not take part
// in the cascade.
func deleteLayer(ctx context.Context, tx *sql.Tx, layerID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM features_rtree WHERE id IN (SELECT id FROM features WHERE layer_id = ?)`, layerID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM layers WHERE id = ?`, layerID)
	return err
}

// Layers returns the metadata of every stored layer ordered by ID.
func (s *Store) Layers(ctx context.Context) ([]domain.Layer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path, size, shape_type, source_srid, feature_count,
			min_x, min_y, max_x, max_y, fields, loaded_at
		FROM layers ORDER BY id`)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var layers []domain.Layer
	for rows.Next() {
		var (
			l                      domain.Layer
			shapeType              int
			minX, minY, maxX, maxY sql.NullFloat64
			fields                 []byte
			loadedAt               int64
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Path, &l.Size, &shapeType, &l.SourceSRID, &l.FeatureCount,
			&minX, &minY, &maxX, &maxY, &fields, &loadedAt); err != nil {
			return nil, &domain.StorageError{Operation: "list", Err: err}
		}

		l.ShapeType = domain.ShapeType(shapeType)
		l.Extent = domain.EmptyExtent()
		if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid {
			l.Extent = domain.NewExtent(minX.Float64, minY.Float64, maxX.Float64, maxY.Float64)
		}
		if len(fields) > 0 {
			if err := decMode.Unmarshal(fields, &l.Fields); err != nil {
				return nil, &domain.StorageError{Operation: "list", Key: l.ID, Err: err}
			}
		}
		l.LoadedAt = time.Unix(0, loadedAt)
		l.Indexed = true

		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	return layers, nil
}

// Candidates returns the features of a layer whose indexed extent
// intersects e, ordered by record number. A limit of zero or less means no
// limit.
func (s *Store) Candidates(ctx context.Context, layerID string, e domain.Extent, limit int) ([]domain.Feature, error) {
	if e.IsEmpty() {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.fid, l.name, f.geom, f.props
		FROM features f
		INNER JOIN features_rtree r ON f.id = r.id
		INNER JOIN layers l ON l.id = f.layer_id
		WHERE f.layer_id = ?
		  AND r.minx <= ? AND r.maxx >= ? AND r.miny <= ? AND r.maxy >= ?
		ORDER BY f.fid
		LIMIT ?`,
		layerID, e.MaxX(), e.MinX(), e.MaxY(), e.MinY(), limit,
	)
	if err != nil {
		return nil, &domain.QueryError{Layer: layerID, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var features []domain.Feature
	for rows.Next() {
		var (
			fid         int64
			name        string
			geom, props []byte
		)
		if err := rows.Scan(&fid, &name, &geom, &props); err != nil {
			return nil, &domain.QueryError{Layer: layerID, Err: err}
		}

		f, err := s.feature(layerID, name, fid, geom, props)
		if err != nil {
			return nil, &domain.QueryError{Layer: layerID, Err: err}
		}
		features = append(features, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.QueryError{Layer: layerID, Err: err}
	}
	return features, nil
}

// Feature returns a single feature by record number.
func (s *Store) Feature(ctx context.Context, layerID string, id int64) (*domain.Feature, error) {
	if f, ok := s.cache.get(layerID, id); ok {
		return &f, nil
	}

	var (
		name        string
		geom, props []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT l.name, f.geom, f.props
		FROM features f INNER JOIN layers l ON l.id = f.layer_id
		WHERE f.layer_id = ? AND f.fid = ?`, layerID, id,
	).Scan(&name, &geom, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFeatureNotFound
	}
	if err != nil {
		return nil, &domain.QueryError{Layer: layerID, Err: err}
	}

	f, err := s.feature(layerID, name, id, geom, props)
	if err != nil {
		return nil, &domain.QueryError{Layer: layerID, Err: err}
	}
	return f, nil
}

// feature decodes a stored row, serving it from the cache when possible.
func (s *Store) feature(layerID, layerName string, fid int64, geom, props []byte) (*domain.Feature, error) {
	if f, ok := s.cache.get(layerID, fid); ok {
		return &f, nil
	}

	rng, err := decodeShape(geom)
	if err != nil {
		return nil, fmt.Errorf("decoding feature %d: %w", fid, err)
	}
	properties, err := decodeProperties(props)
	if err != nil {
		return nil, fmt.Errorf("decoding feature %d attributes: %w", fid, err)
	}

	f := domain.Feature{
		ID:         fid,
		LayerName:  layerName,
		Range:      rng,
		Properties: properties,
	}
	s.cache.add(layerID, f)
	return &f, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.cache.clear()
	return s.db.Close()
}
