package application

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockReader implements output.ShapeReader for testing.
type mockReader struct {
	layers   map[string]*domain.Layer
	features map[string][]domain.Feature
	readErr  error
}

func (m *mockReader) Read(_ context.Context, path string) (*domain.Layer, []domain.Feature, error) {
	if m.readErr != nil {
		return nil, nil, m.readErr
	}
	if l, ok := m.layers[path]; ok {
		copied := *l
		return &copied, m.features[path], nil
	}
	return &domain.Layer{Path: path, ShapeType: domain.ShapePolygon}, nil, nil
}

// mockStore implements output.ShapeStore in memory.
type mockStore struct {
	mu       sync.Mutex
	layers   map[string]domain.Layer
	features map[string][]domain.Feature
	saveErr  error
	deleted  []string
}

func newMockStore() *mockStore {
	return &mockStore{
		layers:   make(map[string]domain.Layer),
		features: make(map[string][]domain.Feature),
	}
}

func (m *mockStore) SaveLayer(_ context.Context, layer *domain.Layer, features []domain.Feature) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layers[layer.ID] = *layer
	m.features[layer.ID] = features
	return nil
}

func (m *mockStore) DeleteLayer(_ context.Context, layerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.layers, layerID)
	delete(m.features, layerID)
	m.deleted = append(m.deleted, layerID)
	return nil
}

func (m *mockStore) Layers(_ context.Context) ([]domain.Layer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Layer, 0, len(m.layers))
	for _, l := range m.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) Candidates(_ context.Context, layerID string, e domain.Extent, limit int) ([]domain.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Feature
	for _, f := range m.features[layerID] {
		if f.Extent().Intersects(e) {
			out = append(out, f)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) Feature(_ context.Context, layerID string, id int64) (*domain.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.features[layerID] {
		if f.ID == id {
			f := f
			return &f, nil
		}
	}
	return nil, domain.ErrFeatureNotFound
}

func (m *mockStore) Close() error { return nil }

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu          sync.Mutex
	objects     []output.StorageObject
	missing     map[string]bool // keys reported as absent
	downloadErr error
	listErr     error
	downloaded  []string
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, _ string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.mu.Lock()
	m.downloaded = append(m.downloaded, key)
	m.mu.Unlock()
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(key)), nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	return !m.missing[key], nil
}

// recordingMetrics implements output.MetricsCollector and keeps counters.
type recordingMetrics struct {
	output.NoOpMetrics

	mu           sync.Mutex
	calls        map[string]int
	failures     map[string]int
	nonConverged int
	iterations   []int
	layersLoaded int
	layersReady  int
	subscribers  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{calls: map[string]int{}, failures: map[string]int{}}
}

func (m *recordingMetrics) IncGeodesicCalls(method string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if !success {
		m.failures[method]++
	}
}

func (m *recordingMetrics) ObserveIterations(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.iterations = append(m.iterations, n)
}

func (m *recordingMetrics) IncNonConverged(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonConverged++
}

func (m *recordingMetrics) SetLayersLoaded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layersLoaded = n
}

func (m *recordingMetrics) SetLayersReady(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layersReady = n
}

func (m *recordingMetrics) SetEmulatorSubscribers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = n
}

// square returns a closed ring around (x, y) with half-width r.
func square(x, y, r float64) []float64 {
	return []float64{x - r, y - r, x - r, y + r, x + r, y + r, x + r, y - r, x - r, y - r}
}

func polygonFeature(layer string, id int64, ring []float64) domain.Feature {
	s := domain.NewShapeRangeOfType(domain.ShapePolygon)
	s.AddPart(ring, 0, len(ring)/2)
	return domain.Feature{
		ID:         id,
		LayerName:  layer,
		Range:      s,
		Properties: map[string]interface{}{"NAME": layer + "-" + string(rune('a'+id))},
	}
}
