package output

import (
	"context"

	"github.com/jobrunner/meridian/internal/domain"
)

// ShapeStore defines the secondary port for indexed shape persistence.
type ShapeStore interface {
	// SaveLayer replaces a layer and all of its features.
	SaveLayer(ctx context.Context, layer *domain.Layer, features []domain.Feature) error

	// DeleteLayer removes a layer and its features.
	DeleteLayer(ctx context.Context, layerID string) error

	// Layers returns the metadata of every stored layer.
	Layers(ctx context.Context) ([]domain.Layer, error)

	// Candidates returns the features of a layer whose extent intersects e.
	// A limit of zero or less means no limit.
	Candidates(ctx context.Context, layerID string, e domain.Extent, limit int) ([]domain.Feature, error)

	// Feature returns a single feature by record number.
	Feature(ctx context.Context, layerID string, id int64) (*domain.Feature, error)

	// Close releases the underlying database.
	Close() error
}

// ShapeReader defines the secondary port for reading shapefiles.
type ShapeReader interface {
	// Read parses the .shp at path together with its .dbf and .prj siblings.
	// Coordinates are returned in WGS84 longitude/latitude.
	Read(ctx context.Context, path string) (*domain.Layer, []domain.Feature, error)
}

// CoordinateTransformer defines the secondary port for coordinate transformations.
type CoordinateTransformer interface {
	// ToWGS84 returns a function converting x/y in sourceSRID to WGS84
	// longitude/latitude.
	ToWGS84(sourceSRID int) (func(x, y float64) (lon, lat float64), error)

	// IsSupported checks if a source SRID can be transformed.
	IsSupported(sourceSRID int) bool
}
