package application

import (
	"context"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry  *LayerRegistry
	minLayers int
	emulator  *EmulatorService
}

// NewHealthService creates a new health service. The service reports ready
// once the registry finished its initial load and at least minLayers layers
// are queryable.
func NewHealthService(registry *LayerRegistry, minLayers int) *HealthService {
	return &HealthService{
		registry:  registry,
		minLayers: minLayers,
	}
}

// WithEmulator adds the NMEA emulator to the component report.
func (s *HealthService) WithEmulator(e *EmulatorService) *HealthService {
	s.emulator = e
	return s
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true if the service is ready to accept requests.
func (s *HealthService) IsReady(_ context.Context) bool {
	if !s.registry.Ready() {
		return false
	}
	return len(s.registry.ReadyLayerIDs()) >= s.minLayers
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	layers, _ := s.registry.ListLayers(ctx)

	ready := 0
	failed := 0
	for _, l := range layers {
		status, _ := s.registry.GetLayerStatus(ctx, l.ID)
		switch status {
		case domain.StatusReady:
			ready++
		case domain.StatusError:
			failed++
		}
	}

	components := map[string]string{
		"geodesy": "ok",
		"layers":  "ok",
	}
	if !s.registry.Ready() {
		components["layers"] = "loading"
	} else if failed > 0 {
		components["layers"] = "degraded"
	}
	if s.emulator != nil {
		if s.emulator.Running() {
			components["emulator"] = "running"
		} else {
			components["emulator"] = "stopped"
		}
	}

	return input.HealthDetails{
		Healthy:      s.IsHealthy(ctx),
		Ready:        s.IsReady(ctx),
		LayersLoaded: len(layers),
		LayersReady:  ready,
		Components:   components,
	}
}

// LayerHealth contains health info for a single layer.
type LayerHealth struct {
	ID     string
	Status domain.LayerStatus
	Ready  bool
	Error  string
}

// GetLayerHealth returns health info for all layers.
func (s *HealthService) GetLayerHealth(ctx context.Context) []LayerHealth {
	layers, _ := s.registry.ListLayers(ctx)

	health := make([]LayerHealth, len(layers))
	for i, l := range layers {
		status, _ := s.registry.GetLayerStatus(ctx, l.ID)
		health[i] = LayerHealth{
			ID:     l.ID,
			Status: status,
			Ready:  status == domain.StatusReady,
		}
		if err := s.registry.LayerError(l.ID); err != nil {
			health[i].Error = err.Error()
		}
	}

	return health
}
