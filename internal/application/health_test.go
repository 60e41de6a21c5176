package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

func registryWith(entries map[string]domain.LayerStatus) *LayerRegistry {
	registry := newTestRegistry()
	registry.MarkInitialized()

	registry.mu.Lock()
	for id, status := range entries {
		entry := &layerEntry{Layer: &domain.Layer{ID: id, Name: id}, Status: status}
		if status == domain.StatusError {
			entry.Error = errors.New("corrupt .shx")
		}
		registry.layers[id] = entry
	}
	registry.mu.Unlock()
	return registry
}

func TestHealthServiceIsHealthy(t *testing.T) {
	svc := NewHealthService(newTestRegistry(), 0)

	if !svc.IsHealthy(context.Background()) {
		t.Error("IsHealthy() = false, want true")
	}
}

func TestHealthServiceIsReady(t *testing.T) {
	tests := []struct {
		name        string
		initialized bool
		layers      map[string]domain.LayerStatus
		minLayers   int
		want        bool
	}{
		{
			name:        "not initialized",
			initialized: false,
			minLayers:   0,
			want:        false,
		},
		{
			name:        "initialized without layers",
			initialized: true,
			minLayers:   0,
			want:        true,
		},
		{
			name:        "below minimum",
			initialized: true,
			layers:      map[string]domain.LayerStatus{"a": domain.StatusReady},
			minLayers:   2,
			want:        false,
		},
		{
			name:        "minimum reached",
			initialized: true,
			layers:      map[string]domain.LayerStatus{"a": domain.StatusReady, "b": domain.StatusReady},
			minLayers:   2,
			want:        true,
		},
		{
			name:        "layer still indexing",
			initialized: true,
			layers:      map[string]domain.LayerStatus{"a": domain.StatusReady, "b": domain.StatusIndexing},
			minLayers:   1,
			want:        false,
		},
		{
			name:        "failed layers do not count",
			initialized: true,
			layers:      map[string]domain.LayerStatus{"a": domain.StatusError},
			minLayers:   1,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := registryWith(tt.layers)
			if !tt.initialized {
				registry.mu.Lock()
				registry.initialized = false
				registry.mu.Unlock()
			}

			svc := NewHealthService(registry, tt.minLayers)
			if got := svc.IsReady(context.Background()); got != tt.want {
				t.Errorf("IsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	registry := registryWith(map[string]domain.LayerStatus{
		"parcels": domain.StatusReady,
		"roads":   domain.StatusReady,
		"broken":  domain.StatusError,
	})
	svc := NewHealthService(registry, 1)

	details := svc.GetHealthDetails(context.Background())

	if !details.Healthy {
		t.Error("Healthy = false, want true")
	}
	if !details.Ready {
		t.Error("Ready = false, want true")
	}
	if details.LayersLoaded != 3 {
		t.Errorf("LayersLoaded = %d, want 3", details.LayersLoaded)
	}
	if details.LayersReady != 2 {
		t.Errorf("LayersReady = %d, want 2", details.LayersReady)
	}
	if details.Components["layers"] != "degraded" {
		t.Errorf("Components[layers] = %q, want degraded", details.Components["layers"])
	}
	if details.Components["geodesy"] != "ok" {
		t.Errorf("Components[geodesy] = %q, want ok", details.Components["geodesy"])
	}
	if _, ok := details.Components["emulator"]; ok {
		t.Error("emulator component reported without an emulator")
	}
}

func TestHealthServiceEmulatorComponent(t *testing.T) {
	emulator, err := NewEmulatorService(&output.NoOpMetrics{}, testLogger(), EmulatorConfig{
		Start:    domain.NewPosition(52.5, 13.4),
		Speed:    domain.NewSpeed(10, domain.MetersPerSecond),
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewEmulatorService() error = %v", err)
	}

	svc := NewHealthService(registryWith(nil), 0).WithEmulator(emulator)
	ctx := context.Background()

	if got := svc.GetHealthDetails(ctx).Components["emulator"]; got != "stopped" {
		t.Errorf("Components[emulator] = %q, want stopped", got)
	}

	if err := emulator.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer emulator.Stop()

	if got := svc.GetHealthDetails(ctx).Components["emulator"]; got != "running" {
		t.Errorf("Components[emulator] = %q, want running", got)
	}
}

func TestHealthServiceGetLayerHealth(t *testing.T) {
	registry := registryWith(map[string]domain.LayerStatus{
		"parcels": domain.StatusReady,
		"broken":  domain.StatusError,
	})
	svc := NewHealthService(registry, 0)

	health := svc.GetLayerHealth(context.Background())
	if len(health) != 2 {
		t.Fatalf("len(health) = %d, want 2", len(health))
	}

	// ListLayers sorts by ID
	if health[0].ID != "broken" || health[0].Ready || health[0].Error == "" {
		t.Errorf("health[0] = %+v", health[0])
	}
	if health[1].ID != "parcels" || !health[1].Ready || health[1].Status != domain.StatusReady {
		t.Errorf("health[1] = %+v", health[1])
	}
}
