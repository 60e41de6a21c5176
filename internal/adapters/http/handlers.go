package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/meridian/internal/application"
	"github.com/jobrunner/meridian/internal/domain"
)

// handleQuery answers GET /api/v1/query with a GeoJSON FeatureCollection of
// the features containing the position.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pos, err := positionParam(r, "position", "lat", "lon")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tolerance, err := optionalFloatParam(q, "tolerance", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.svc.Query.QueryPoint(r.Context(), q.Get("layer"), pos, tolerance)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	fc := resultsGeoJSON(resp.Results, renderParams(q))
	fc.ExtraMembers = geojson.Properties{
		"position":           positionJSON(resp.Position),
		"total_features":     resp.TotalFeatures,
		"processing_time_ms": resp.ProcessingTime.Milliseconds(),
		"layers":             layerSummaries(resp.Results),
	}
	s.writeGeoJSON(w, http.StatusOK, fc)
}

// handleQueryRange answers POST /api/v1/layers/{layerId}/query. The body
// is a GeoJSON geometry, Feature or bbox.
func (s *Server) handleQueryRange(w http.ResponseWriter, r *http.Request) {
	layerID := mux.Vars(r)["layerId"]

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	shape, err := decodeQueryShape(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.svc.Query.QueryRange(r.Context(), layerID, shape)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	fc := resultsGeoJSON([]domain.QueryResult{*result}, renderParams(r.URL.Query()))
	fc.ExtraMembers = geojson.Properties{
		"layers": layerSummaries([]domain.QueryResult{*result}),
	}
	s.writeGeoJSON(w, http.StatusOK, fc)
}

// decodeQueryShape accepts a bare geometry or a Feature wrapping one.
func decodeQueryShape(data []byte) (*domain.ShapeRange, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.New("invalid GeoJSON: " + err.Error())
	}

	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, errors.New("invalid GeoJSON feature: " + err.Error())
		}
		return geometryShape(f.Geometry)
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, errors.New("invalid GeoJSON geometry: " + err.Error())
	}
	return geometryShape(g.Geometry())
}

// handleGetFeature answers GET /api/v1/layers/{layerId}/features/{featureId}.
func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := int64Param("featureId", vars["featureId"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := s.svc.Query.FeatureAt(r.Context(), vars["layerId"], id)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeGeoJSON(w, http.StatusOK, featureGeoJSON(vars["layerId"], f, renderParams(r.URL.Query())))
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.svc.Health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"layers_loaded": details.LayersLoaded,
		"layers_ready":  details.LayersReady,
		"components":    details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListLayers returns all registered layers.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.svc.Layers.ListLayers(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	response := make([]map[string]interface{}, len(layers))
	for i := range layers {
		response[i] = s.formatLayer(r.Context(), &layers[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": response,
		"count":  len(layers),
	})
}

// handleGetLayer returns a specific layer.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.svc.Layers.GetLayer(r.Context(), mux.Vars(r)["layerId"])
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out := s.formatLayer(r.Context(), layer)
	out["fields"] = layer.Fields
	s.writeJSON(w, http.StatusOK, out)
}

// formatLayer formats a layer for JSON output.
func (s *Server) formatLayer(ctx context.Context, l *domain.Layer) map[string]interface{} {
	status, _ := s.svc.Layers.GetLayerStatus(ctx, l.ID)
	out := map[string]interface{}{
		"id":            l.ID,
		"name":          l.Name,
		"size":          l.Size,
		"shape_type":    l.ShapeType.String(),
		"geometry_type": l.FeatureType().String(),
		"source_srid":   l.SourceSRID,
		"feature_count": l.FeatureCount,
		"field_count":   len(l.Fields),
		"indexed":       l.Indexed,
		"ready":         l.IsReady(),
		"status":        status,
		"loaded_at":     l.LoadedAt,
	}
	if !l.LastQueried.IsZero() {
		out["last_queried"] = l.LastQueried
	}
	if !l.Extent.IsEmpty() {
		out["extent"] = map[string]interface{}{
			"min_x": l.Extent.MinX(),
			"min_y": l.Extent.MinY(),
			"max_x": l.Extent.MaxX(),
			"max_y": l.Extent.MaxY(),
		}
	}
	return out
}

func layerSummaries(results []domain.QueryResult) []map[string]interface{} {
	out := make([]map[string]interface{}, len(results))
	for i := range results {
		r := &results[i]
		out[i] = map[string]interface{}{
			"id":            r.LayerID,
			"name":          r.LayerName,
			"feature_count": r.FeatureCount(),
			"candidates":    r.Candidates,
			"query_time_ms": r.QueryTime.Milliseconds(),
		}
	}
	return out
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// handleOpenAPIYAML returns the OpenAPI specification as authored.
func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIYAML)
}

// handleError maps domain errors to HTTP statuses.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *domain.ValidationError
		formatErr     *domain.FormatError
		paramErr      *paramError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &formatErr), errors.As(err, &paramErr):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownEllipsoid), errors.Is(err, domain.ErrUnknownMethod):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLayerNotFound):
		s.writeError(w, http.StatusNotFound, "Layer not found")
	case errors.Is(err, domain.ErrFeatureNotFound):
		s.writeError(w, http.StatusNotFound, "Feature not found")
	case errors.Is(err, domain.ErrNotReady):
		w.Header().Set("Retry-After", "5")
		s.writeError(w, http.StatusServiceUnavailable, "Layer is not ready")
	case errors.Is(err, domain.ErrStorageError):
		s.logger.Warn("storage backend failed", "error", err, "request_id", RequestID(r.Context()))
		s.writeError(w, http.StatusBadGateway, "Storage backend failed")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrPrecondition), errors.Is(err, domain.ErrUnsupported):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "Request timed out")
	case errors.Is(err, context.Canceled):
		s.logger.Debug("request canceled", "path", r.URL.Path, "request_id", RequestID(r.Context()))
		s.writeError(w, http.StatusServiceUnavailable, "Request canceled")
	default:
		s.logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
		s.writeError(w, http.StatusInternalServerError, "Request failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeGeoJSON writes a GeoJSON response.
func (s *Server) writeGeoJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
