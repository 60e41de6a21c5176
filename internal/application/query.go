package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// DefaultTolerance is the point query search radius in degrees.
const DefaultTolerance = 1e-9

// QueryService handles shape intersection queries across layers.
type QueryService struct {
	registry    *LayerRegistry
	store       output.ShapeStore
	metrics     output.MetricsCollector
	logger      *slog.Logger
	maxFeatures int
}

// QueryServiceConfig holds configuration for the query service.
type QueryServiceConfig struct {
	MaxFeatures int
}

// NewQueryService creates a new query service.
func NewQueryService(
	registry *LayerRegistry,
	store output.ShapeStore,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg QueryServiceConfig,
) *QueryService {
	if cfg.MaxFeatures == 0 {
		cfg.MaxFeatures = 1000
	}

	return &QueryService{
		registry:    registry,
		store:       store,
		metrics:     metrics,
		logger:      logger,
		maxFeatures: cfg.MaxFeatures,
	}
}

// QueryPoint finds the features containing pos, within tolerance degrees,
// in one layer or in every ready layer when layerID is empty.
func (s *QueryService) QueryPoint(ctx context.Context, layerID string, pos domain.Position, tolerance float64) (*domain.QueryResponse, error) {
	start := time.Now()

	if err := pos.Validate(); err != nil {
		return nil, err
	}
	pos = pos.Normalize()
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	layerIDs := s.registry.ReadyLayerIDs()
	if layerID != "" {
		if !s.registry.IsReady(layerID) {
			if s.registry.IsLoaded(layerID) {
				return nil, &domain.QueryError{Layer: layerID, Err: domain.ErrNotReady}
			}
			return nil, domain.ErrLayerNotFound
		}
		layerIDs = []string{layerID}
	}

	probe := pointProbe(pos, tolerance)
	response := &domain.QueryResponse{Position: pos}

	for _, id := range layerIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := s.queryLayer(ctx, id, probe)
		if err != nil {
			s.logger.Warn("query failed for layer", "layer", id, "error", err)
			s.metrics.IncQueryCount(id, false)
			continue
		}
		s.metrics.IncQueryCount(id, true)

		if result.HasFeatures() {
			response.AddResult(*result)
		}
	}

	response.ProcessingTime = time.Since(start)
	return response, nil
}

// QueryRange finds the features of a layer that intersect shape.
func (s *QueryService) QueryRange(ctx context.Context, layerID string, shape *domain.ShapeRange) (*domain.QueryResult, error) {
	if shape == nil || shape.NumParts() == 0 {
		return nil, &domain.ValidationError{
			Field:      "shape",
			Constraint: "parts > 0",
			Message:    "query shape must have at least one part",
		}
	}
	if !s.registry.IsReady(layerID) {
		if s.registry.IsLoaded(layerID) {
			return nil, &domain.QueryError{Layer: layerID, Err: domain.ErrNotReady}
		}
		return nil, domain.ErrLayerNotFound
	}

	result, err := s.queryLayer(ctx, layerID, shape)
	s.metrics.IncQueryCount(layerID, err == nil)
	if err != nil {
		return nil, &domain.QueryError{Layer: layerID, Err: err}
	}
	return result, nil
}

// FeatureAt returns a feature of a layer by record number.
func (s *QueryService) FeatureAt(ctx context.Context, layerID string, id int64) (*domain.Feature, error) {
	if !s.registry.IsLoaded(layerID) {
		return nil, domain.ErrLayerNotFound
	}
	return s.store.Feature(ctx, layerID, id)
}

// queryLayer runs the index search for the probe's extent and keeps the
// candidates whose exact geometry intersects the probe.
func (s *QueryService) queryLayer(ctx context.Context, layerID string, probe *domain.ShapeRange) (*domain.QueryResult, error) {
	start := time.Now()

	layer, err := s.registry.GetLayer(ctx, layerID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.Candidates(ctx, layerID, probe.Extent(), 0)
	if err != nil {
		return nil, err
	}

	result := &domain.QueryResult{
		LayerID:    layer.ID,
		LayerName:  layer.Name,
		Candidates: len(candidates),
	}

	for _, f := range candidates {
		if f.Range == nil || !probe.Intersects(f.Range) {
			continue
		}
		if len(result.Features) >= s.maxFeatures {
			s.logger.Debug("max features reached", "layer", layerID, "max", s.maxFeatures)
			break
		}
		result.Features = append(result.Features, f)
	}

	s.registry.Touch(layerID)
	result.QueryTime = time.Since(start)
	s.metrics.ObserveQueryDuration(layerID, result.QueryTime)

	return result, nil
}

// pointProbe builds the query shape for a position. A positive tolerance
// turns the point into a small square so near misses on boundaries count.
func pointProbe(pos domain.Position, tolerance float64) *domain.ShapeRange {
	x, y := pos.Longitude.Degrees(), pos.Latitude.Degrees()
	if tolerance <= domain.Epsilon {
		probe := domain.NewShapeRangeOfType(domain.ShapePoint)
		probe.AddPart([]float64{x, y}, 0, 1)
		return probe
	}

	probe := domain.NewShapeRangeOfType(domain.ShapePolygon)
	probe.AddPart([]float64{
		x - tolerance, y - tolerance,
		x - tolerance, y + tolerance,
		x + tolerance, y + tolerance,
		x + tolerance, y - tolerance,
		x - tolerance, y - tolerance,
	}, 0, 5)
	return probe
}
