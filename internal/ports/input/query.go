// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/meridian/internal/domain"
)

// ShapeQueryService defines the primary port for shape intersection queries.
type ShapeQueryService interface {
	// QueryPoint finds the features of one layer, or of every ready layer
	// when layerID is empty, that lie within tolerance degrees of pos.
	QueryPoint(ctx context.Context, layerID string, pos domain.Position, tolerance float64) (*domain.QueryResponse, error)

	// QueryRange finds the features of a layer intersecting a shape.
	QueryRange(ctx context.Context, layerID string, shape *domain.ShapeRange) (*domain.QueryResult, error)

	// FeatureAt returns a single feature by record number.
	FeatureAt(ctx context.Context, layerID string, id int64) (*domain.Feature, error)
}

// LayerRegistry defines the primary port for layer management.
type LayerRegistry interface {
	// ListLayers returns all registered layers.
	ListLayers(ctx context.Context) ([]domain.Layer, error)

	// GetLayer returns a specific layer by ID.
	GetLayer(ctx context.Context, id string) (*domain.Layer, error)

	// GetLayerStatus returns the lifecycle state of a layer.
	GetLayerStatus(ctx context.Context, id string) (domain.LayerStatus, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Ready to accept requests
	LayersLoaded int               // Number of loaded layers
	LayersReady  int               // Number of indexed layers
	Components   map[string]string // Component statuses
}
