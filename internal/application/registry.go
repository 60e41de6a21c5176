// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// LayerRegistry manages the loaded shapefile layers.
type LayerRegistry struct {
	mu          sync.RWMutex
	layers      map[string]*layerEntry
	reader      output.ShapeReader
	store       output.ShapeStore
	storage     output.ObjectStorage
	metrics     output.MetricsCollector
	logger      *slog.Logger
	localPath   string
	initialized bool
}

type layerEntry struct {
	Layer  *domain.Layer
	Status domain.LayerStatus
	Error  error
}

// NewLayerRegistry creates a new layer registry.
func NewLayerRegistry(
	reader output.ShapeReader,
	store output.ShapeStore,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *LayerRegistry {
	return &LayerRegistry{
		layers:    make(map[string]*layerEntry),
		reader:    reader,
		store:     store,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
}

// LoadLayer reads the shapefile at path and indexes it into the shape store.
func (r *LayerRegistry) LoadLayer(ctx context.Context, path string) error {
	id := deriveLayerID(path)
	r.logger.Info("loading layer", "path", path, "layer", id)

	r.setStatus(id, &domain.Layer{ID: id, Name: id, Path: path}, domain.StatusLoading, nil)

	layer, features, err := r.reader.Read(ctx, path)
	if err != nil {
		r.logger.Error("failed to read shapefile", "path", path, "error", err)
		r.setStatus(id, nil, domain.StatusError, err)
		r.updateMetrics()
		return err
	}
	layer.ID = id
	layer.Path = path
	if layer.Name == "" {
		layer.Name = id
	}

	r.setStatus(id, layer, domain.StatusIndexing, nil)

	r.logger.Debug("building spatial index", "layer", id, "features", len(features))
	if err := r.store.SaveLayer(ctx, layer, features); err != nil {
		r.logger.Error("failed to index layer", "layer", id, "error", err)
		err = fmt.Errorf("%w: %s: %v", domain.ErrIndexFailed, id, err)
		r.setStatus(id, nil, domain.StatusError, err)
		r.updateMetrics()
		return err
	}

	r.mu.Lock()
	if entry, ok := r.layers[id]; ok {
		entry.Status = domain.StatusReady
		entry.Layer.Indexed = true
		entry.Layer.LoadedAt = time.Now()
	}
	r.mu.Unlock()

	r.updateMetrics()
	r.logger.Info("layer loaded", "layer", id, "features", layer.FeatureCount, "shape_type", layer.ShapeType)

	return nil
}

// setStatus registers or updates an entry. A nil layer keeps the current one.
func (r *LayerRegistry) setStatus(id string, layer *domain.Layer, status domain.LayerStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.layers[id]
	if !ok {
		entry = &layerEntry{Layer: &domain.Layer{ID: id, Name: id}}
		r.layers[id] = entry
	}
	if layer != nil {
		entry.Layer = layer
	}
	entry.Status = status
	entry.Error = err
}

// UnloadLayer removes a layer from the registry and the shape store.
func (r *LayerRegistry) UnloadLayer(ctx context.Context, layerID string) error {
	r.logger.Info("unloading layer", "layer", layerID)

	r.mu.Lock()
	entry, ok := r.layers[layerID]
	if ok {
		entry.Status = domain.StatusUnloading
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrLayerNotFound
	}

	if err := r.store.DeleteLayer(ctx, layerID); err != nil {
		r.logger.Error("failed to delete layer", "layer", layerID, "error", err)
		return err
	}

	r.mu.Lock()
	delete(r.layers, layerID)
	r.mu.Unlock()

	r.updateMetrics()
	return nil
}

// Reload drops a layer if it is loaded and reads it again from path.
func (r *LayerRegistry) Reload(ctx context.Context, path string) error {
	id := deriveLayerID(path)
	if r.IsLoaded(id) {
		if err := r.UnloadLayer(ctx, id); err != nil && !errors.Is(err, domain.ErrLayerNotFound) {
			return err
		}
	}
	return r.LoadLayer(ctx, path)
}

// UnloadPath unloads the layer read from path. Paths that were never
// loaded are ignored.
func (r *LayerRegistry) UnloadPath(ctx context.Context, path string) error {
	err := r.UnloadLayer(ctx, deriveLayerID(path))
	if errors.Is(err, domain.ErrLayerNotFound) {
		return nil
	}
	return err
}

// ListLayers returns all registered layers ordered by ID.
func (r *LayerRegistry) ListLayers(_ context.Context) ([]domain.Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layers := make([]domain.Layer, 0, len(r.layers))
	for _, entry := range r.layers {
		layers = append(layers, *entry.Layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })

	return layers, nil
}

// GetLayer returns a specific layer by ID.
func (r *LayerRegistry) GetLayer(_ context.Context, id string) (*domain.Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[id]
	if !ok {
		return nil, domain.ErrLayerNotFound
	}

	layer := *entry.Layer
	return &layer, nil
}

// GetLayerStatus returns the status of a layer.
func (r *LayerRegistry) GetLayerStatus(_ context.Context, id string) (domain.LayerStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[id]
	if !ok {
		return "", domain.ErrLayerNotFound
	}

	return entry.Status, nil
}

// LayerError returns the error that put a layer into the error state.
func (r *LayerRegistry) LayerError(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.layers[id]; ok {
		return entry.Error
	}
	return domain.ErrLayerNotFound
}

// IsReady returns true if a layer is ready for queries.
func (r *LayerRegistry) IsReady(layerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[layerID]
	if !ok {
		return false
	}

	return entry.Status == domain.StatusReady
}

// Ready reports whether the initial load has finished and no layer is
// still being read or indexed.
func (r *LayerRegistry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return false
	}
	for _, entry := range r.layers {
		if entry.Status == domain.StatusLoading || entry.Status == domain.StatusIndexing {
			return false
		}
	}
	return true
}

// MarkInitialized flags the initial load as done. LoadFromStorage calls it;
// it is exported for setups that register layers by hand.
func (r *LayerRegistry) MarkInitialized() {
	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()
}

// ReadyLayerIDs returns IDs of all ready layers, sorted.
func (r *LayerRegistry) ReadyLayerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, entry := range r.layers {
		if entry.Status == domain.StatusReady {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Touch records a query against a layer.
func (r *LayerRegistry) Touch(layerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.layers[layerID]; ok {
		entry.Layer.LastQueried = time.Now()
	}
}

// updateMetrics updates the metrics collector with current layer counts.
func (r *LayerRegistry) updateMetrics() {
	r.mu.RLock()
	total := len(r.layers)
	ready := 0
	for _, entry := range r.layers {
		if entry.Status == domain.StatusReady {
			ready++
		}
	}
	r.mu.RUnlock()

	r.metrics.SetLayersLoaded(total)
	r.metrics.SetLayersReady(ready)
}

// LoadFromStorage downloads every shapefile in storage together with its
// sibling files and loads it.
func (r *LayerRegistry) LoadFromStorage(ctx context.Context) error {
	r.logger.Info("loading all layers from storage")
	defer r.MarkInitialized()

	objects, err := r.storage.List(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		localPath, err := r.download(ctx, obj)
		if err != nil {
			r.logger.Error("failed to download shapefile", "key", obj.Key, "error", err)
			continue
		}

		if err := r.LoadLayer(ctx, localPath); err != nil {
			r.logger.Error("failed to load layer", "path", localPath, "error", err)
		}
	}

	return nil
}

// download fetches a .shp object and its siblings into the local path.
// Optional siblings are skipped when the storage does not have them; the
// listing answers that where it can, otherwise the storage is asked.
func (r *LayerRegistry) download(ctx context.Context, obj output.StorageObject) (string, error) {
	localPath := filepath.Join(r.localPath, obj.Key)
	if err := r.storage.Download(ctx, obj.Key, localPath); err != nil {
		return "", err
	}

	for _, sib := range output.Siblings {
		key := output.SiblingKey(obj.Key, sib.Ext)
		if !sib.Required {
			present, known := obj.HasSibling(sib.Ext)
			if !known {
				var err error
				if present, err = r.storage.Exists(ctx, key); err != nil {
					r.logger.Debug("cannot check optional sibling", "key", key, "error", err)
				}
			}
			if !present {
				continue
			}
		}
		if err := r.storage.Download(ctx, key, filepath.Join(r.localPath, key)); err != nil {
			return "", fmt.Errorf("downloading %s: %w", key, err)
		}
	}

	return localPath, nil
}

// IsLoaded returns true if a layer with the given ID is registered.
func (r *LayerRegistry) IsLoaded(layerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.layers[layerID]
	return ok
}

// LayerCount returns the number of registered layers.
func (r *LayerRegistry) LayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
}

// Sync synchronizes with remote storage, downloading new shapefiles and
// removing layers whose shapefile no longer exists in remote storage.
func (r *LayerRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing layers from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remoteLayers := make(map[string]output.StorageObject)
	for _, obj := range objects {
		remoteLayers[deriveLayerID(obj.Key)] = obj
	}

	stats := SyncStats{}

	for layerID, obj := range remoteLayers {
		if r.IsLoaded(layerID) {
			r.logger.Debug("layer already loaded, skipping", "layer", layerID)
			continue
		}

		localPath, err := r.download(ctx, obj)
		if err != nil {
			r.logger.Error("failed to download shapefile", "key", obj.Key, "error", err)
			continue
		}

		if err := r.LoadLayer(ctx, localPath); err != nil {
			r.logger.Error("failed to load layer", "path", localPath, "error", err)
			continue
		}

		stats.Added++
		r.logger.Info("new layer synced", "layer", layerID)
	}

	for _, layerID := range r.findLayersToRemove(remoteLayers) {
		r.logger.Info("removing layer not in remote storage", "layer", layerID)

		localPath := r.getLayerPath(layerID)

		if err := r.UnloadLayer(ctx, layerID); err != nil {
			r.logger.Error("failed to unload removed layer", "layer", layerID, "error", err)
			continue
		}

		if localPath != "" {
			r.removeLocalFiles(localPath)
		}

		stats.Removed++
	}

	r.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", r.LayerCount())
	return stats, nil
}

// removeLocalFiles deletes a cached shapefile and its siblings.
func (r *LayerRegistry) removeLocalFiles(localPath string) {
	paths := []string{localPath}
	for _, sib := range output.Siblings {
		paths = append(paths, output.SiblingKey(localPath, sib.Ext))
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to delete local cache file", "path", p, "error", err)
		}
	}
}

// findLayersToRemove returns layer IDs that are loaded but not in remote storage.
func (r *LayerRegistry) findLayersToRemove(remoteLayers map[string]output.StorageObject) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for layerID := range r.layers {
		if _, exists := remoteLayers[layerID]; !exists {
			toRemove = append(toRemove, layerID)
		}
	}
	sort.Strings(toRemove)
	return toRemove
}

// getLayerPath returns the local file path for a loaded layer.
func (r *LayerRegistry) getLayerPath(layerID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.layers[layerID]; ok && entry.Layer != nil {
		return entry.Layer.Path
	}
	return ""
}

// deriveLayerID extracts a layer ID from a file path or object key.
func deriveLayerID(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
