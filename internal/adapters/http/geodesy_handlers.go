package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/input"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// latLon is the JSON form of a position.
type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p latLon) position() domain.Position {
	return domain.NewPosition(p.Lat, p.Lon)
}

func positionJSON(p domain.Position) latLon {
	return latLon{Lat: p.Latitude.Degrees(), Lon: p.Longitude.Degrees()}
}

func positionsFrom(in []latLon) []domain.Position {
	out := make([]domain.Position, len(in))
	for i, p := range in {
		out[i] = p.position()
	}
	return out
}

// distanceJSON renders a distance with its unit name and symbol.
func distanceJSON(d domain.Distance) map[string]interface{} {
	return map[string]interface{}{
		"value":  finiteOrNil(d.Value),
		"unit":   d.Unit.String(),
		"symbol": d.Unit.Symbol(),
	}
}

// bearingJSON returns nil for the invalid sentinel so it encodes as null.
func bearingJSON(a domain.Azimuth) interface{} {
	if a.IsInvalid() {
		return nil
	}
	return a.Degrees()
}

// handleInverse answers GET /api/v1/inverse.
func (s *Server) handleInverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := positionParam(r, "from", "lat1", "lon1")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := positionParam(r, "to", "lat2", "lon2")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	unit, err := unitParam(q, "unit", s.defaultUnit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.svc.Geodesy.Inverse(r.Context(), input.InverseRequest{
		From:      from,
		To:        to,
		Ellipsoid: q.Get("ellipsoid"),
		Method:    q.Get("method"),
		Unit:      unit,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":            positionJSON(from),
		"to":              positionJSON(to),
		"distance":        distanceJSON(res.Distance),
		"initial_bearing": bearingJSON(res.InitialBearing),
		"final_bearing":   bearingJSON(res.FinalBearing),
		"iterations":      res.Iterations,
		"converged":       res.Converged,
		"method":          res.Method,
		"ellipsoid":       res.Ellipsoid,
	})
}

// handleDirect answers GET /api/v1/direct.
func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := positionParam(r, "from", "lat", "lon")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bearing, err := azimuthParam(q, "bearing")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := floatParam(q, "distance")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	unit, err := unitParam(q, "unit", s.defaultUnit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.svc.Geodesy.Direct(r.Context(), input.DirectRequest{
		From:      from,
		Bearing:   bearing,
		Distance:  domain.NewDistance(value, unit),
		Ellipsoid: q.Get("ellipsoid"),
		Method:    q.Get("method"),
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":        positionJSON(from),
		"bearing":     bearing.Degrees(),
		"distance":    distanceJSON(domain.NewDistance(value, unit)),
		"destination": positionJSON(res.Destination),
		"method":      res.Method,
		"ellipsoid":   res.Ellipsoid,
	})
}

// handleIntersection answers GET /api/v1/intersection.
func (s *Server) handleIntersection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	first, err := positionParam(r, "", "lat1", "lon1")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	firstBearing, err := azimuthParam(q, "bearing1")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	second, err := positionParam(r, "", "lat2", "lon2")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	secondBearing, err := azimuthParam(q, "bearing2")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.svc.Geodesy.Intersection(r.Context(), input.IntersectionRequest{
		First:         first,
		FirstBearing:  firstBearing,
		Second:        second,
		SecondBearing: secondBearing,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	body := map[string]interface{}{"found": res.Found}
	if res.Found {
		body["position"] = positionJSON(res.Position)
	} else {
		body["reason"] = res.Reason
	}
	s.writeJSON(w, http.StatusOK, body)
}

// matrixBody is the JSON body of POST /api/v1/matrix.
type matrixBody struct {
	Origins      []latLon `json:"origins"`
	Destinations []latLon `json:"destinations"`
	Ellipsoid    string   `json:"ellipsoid"`
	Method       string   `json:"method"`
	Unit         string   `json:"unit"`
}

// handleMatrix answers POST /api/v1/matrix.
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	var body matrixBody
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if body.Unit == "" {
		body.Unit = s.defaultUnit
	}
	unit, err := domain.ParseDistanceUnit(body.Unit)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.svc.Geodesy.Matrix(r.Context(), input.MatrixRequest{
		Origins:      positionsFrom(body.Origins),
		Destinations: positionsFrom(body.Destinations),
		Ellipsoid:    body.Ellipsoid,
		Method:       body.Method,
		Unit:         unit,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	// NaN cells (antipodal non-convergence is not an error) encode as null.
	rows := make([][]interface{}, len(res.Distances))
	for i, row := range res.Distances {
		rows[i] = make([]interface{}, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			rows[i][j] = v
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"distances": rows,
		"unit":      res.Unit.String(),
		"method":    res.Method,
		"ellipsoid": res.Ellipsoid,
	})
}

// areaBody is the JSON body of POST /api/v1/area.
type areaBody struct {
	Ring      []latLon `json:"ring"`
	Ellipsoid string   `json:"ellipsoid"`
}

// handleArea answers POST /api/v1/area.
func (s *Server) handleArea(w http.ResponseWriter, r *http.Request) {
	var body areaBody
	if !s.decodeJSON(w, r, &body) {
		return
	}

	res, err := s.svc.Geodesy.Area(r.Context(), input.AreaRequest{
		Ring:      positionsFrom(body.Ring),
		Ellipsoid: body.Ellipsoid,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"area_m2":   res.Area,
		"perimeter": distanceJSON(res.Perimeter),
		"ellipsoid": res.Ellipsoid,
	})
}

// handleEllipsoids lists the ellipsoid catalog.
func (s *Server) handleEllipsoids(w http.ResponseWriter, _ *http.Request) {
	catalog := domain.Ellipsoids()
	out := make([]map[string]interface{}, len(catalog))
	for i, e := range catalog {
		out[i] = map[string]interface{}{
			"name":               e.Name(),
			"equatorial_radius":  e.EquatorialRadiusMeters(),
			"polar_radius":       e.PolarRadiusMeters(),
			"flattening":         e.Flattening(),
			"inverse_flattening": finiteOrNil(e.InverseFlattening()),
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ellipsoids": out,
		"count":      len(out),
	})
}

func finiteOrNil(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// decodeJSON decodes a bounded JSON body, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
