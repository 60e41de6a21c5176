package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/tidwall/geodesic"
	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/input"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// GeodesyConfig holds configuration for the geodesy service.
type GeodesyConfig struct {
	Ellipsoid      string // Default ellipsoid name
	Method         string // Default inverse method
	MatrixWorkers  int    // Parallel matrix rows, 0 means GOMAXPROCS
	MaxMatrixCells int    // Upper bound for origins × destinations
}

// GeodesyService answers geodesic questions on the catalog ellipsoids.
type GeodesyService struct {
	metrics          output.MetricsCollector
	logger           *slog.Logger
	defaultEllipsoid *domain.Ellipsoid
	defaultMethod    string
	workers          int
	maxCells         int

	karney sync.Map // *domain.Ellipsoid -> *geodesic.Ellipsoid
}

// NewGeodesyService creates a geodesy service. Unknown default names are
// configuration errors.
func NewGeodesyService(metrics output.MetricsCollector, logger *slog.Logger, cfg GeodesyConfig) (*GeodesyService, error) {
	if cfg.Ellipsoid == "" {
		cfg.Ellipsoid = domain.WGS84.Name()
	}
	if cfg.Method == "" {
		cfg.Method = input.MethodVincenty
	}
	if cfg.MatrixWorkers <= 0 {
		cfg.MatrixWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxMatrixCells <= 0 {
		cfg.MaxMatrixCells = 10000
	}

	e, ok := domain.LookupEllipsoid(cfg.Ellipsoid)
	if !ok {
		return nil, &domain.ConfigError{Field: "geodesy.ellipsoid", Message: fmt.Sprintf("unknown ellipsoid %q", cfg.Ellipsoid)}
	}
	method, err := parseMethod(cfg.Method, "")
	if err != nil {
		return nil, &domain.ConfigError{Field: "geodesy.method", Message: err.Error()}
	}

	return &GeodesyService{
		metrics:          metrics,
		logger:           logger,
		defaultEllipsoid: e,
		defaultMethod:    method,
		workers:          cfg.MatrixWorkers,
		maxCells:         cfg.MaxMatrixCells,
	}, nil
}

// DefaultEllipsoid returns the ellipsoid used when a request names none.
func (s *GeodesyService) DefaultEllipsoid() *domain.Ellipsoid {
	return s.defaultEllipsoid
}

func parseMethod(name, fallback string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(name))
	if m == "" {
		m = fallback
	}
	switch m {
	case input.MethodVincenty, input.MethodKarney, input.MethodApproximate:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownMethod, name)
}

func (s *GeodesyService) ellipsoid(name string) (*domain.Ellipsoid, error) {
	if strings.TrimSpace(name) == "" {
		return s.defaultEllipsoid, nil
	}
	e, ok := domain.LookupEllipsoid(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEllipsoid, name)
	}
	return e, nil
}

// karneyFor returns the Karney solver for e, building it on first use.
func (s *GeodesyService) karneyFor(e *domain.Ellipsoid) *geodesic.Ellipsoid {
	if g, ok := s.karney.Load(e); ok {
		return g.(*geodesic.Ellipsoid)
	}
	g, _ := s.karney.LoadOrStore(e, geodesic.NewEllipsoid(e.EquatorialRadiusMeters(), e.Flattening()))
	return g.(*geodesic.Ellipsoid)
}

// Inverse implements input.GeodesyService.
func (s *GeodesyService) Inverse(ctx context.Context, req input.InverseRequest) (*input.InverseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method, err := parseMethod(req.Method, s.defaultMethod)
	if err != nil {
		return nil, err
	}
	e, err := s.ellipsoid(req.Ellipsoid)
	if err != nil {
		return nil, err
	}
	if err := validatePositions(req.From, req.To); err != nil {
		s.metrics.IncGeodesicCalls(method, false)
		return nil, err
	}

	res, err := s.inverse(method, req.From, req.To, e)
	s.metrics.IncGeodesicCalls(method, err == nil)
	if err != nil {
		return nil, err
	}
	res.Distance = res.Distance.ToUnit(req.Unit)
	return res, nil
}

// inverse dispatches one inverse computation and records solver metrics.
func (s *GeodesyService) inverse(method string, from, to domain.Position, e *domain.Ellipsoid) (*input.InverseResult, error) {
	res := &input.InverseResult{
		FinalBearing: domain.InvalidAzimuth,
		Method:       method,
		Ellipsoid:    e.Name(),
		Converged:    true,
	}

	switch method {
	case input.MethodKarney:
		var s12, azi1, azi2 float64
		from, to = from.Normalize(), to.Normalize()
		s.karneyFor(e).Inverse(
			from.Latitude.Degrees(), from.Longitude.Degrees(),
			to.Latitude.Degrees(), to.Longitude.Degrees(),
			&s12, &azi1, &azi2)
		res.Distance = domain.MetersDistance(s12)
		res.InitialBearing = domain.Azimuth(azi1).Normalize()
		res.FinalBearing = domain.Azimuth(azi2).Normalize()

	case input.MethodApproximate:
		d, err := domain.ApproximateDistance(from, to, e)
		if err != nil {
			return nil, err
		}
		az, err := from.BearingToOn(to, e)
		if err != nil {
			return nil, err
		}
		res.Distance, res.InitialBearing = d, az

	default:
		g, err := domain.Inverse(from, to, e)
		if err != nil {
			return nil, err
		}
		res.Distance, res.InitialBearing = g.Distance, g.Azimuth
		res.Iterations, res.Converged = g.Iterations, g.Converged
		s.metrics.ObserveIterations(method, g.Iterations)
		if !g.Converged {
			s.metrics.IncNonConverged(method)
			s.logger.Warn("vincenty inverse did not converge",
				"from", from.DecimalString(),
				"to", to.DecimalString(),
				"ellipsoid", e.Name(),
				"iterations", g.Iterations,
			)
		}
	}

	return res, nil
}

// Direct implements input.GeodesyService.
func (s *GeodesyService) Direct(ctx context.Context, req input.DirectRequest) (*input.DirectResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	method, err := parseMethod(req.Method, input.MethodVincenty)
	if err != nil {
		return nil, err
	}
	if method == input.MethodApproximate {
		return nil, fmt.Errorf("%w: %q has no direct solution", domain.ErrUnknownMethod, method)
	}
	e, err := s.ellipsoid(req.Ellipsoid)
	if err != nil {
		return nil, err
	}
	if err := validatePositions(req.From); err != nil {
		s.metrics.IncGeodesicCalls(method, false)
		return nil, err
	}
	if req.Bearing.IsInvalid() || req.Distance.IsInvalid() {
		s.metrics.IncGeodesicCalls(method, false)
		return nil, domain.ErrInvalidCoordinate
	}

	var dest domain.Position
	if method == input.MethodKarney {
		from := req.From.Normalize()
		var lat2, lon2 float64
		s.karneyFor(e).Direct(from.Latitude.Degrees(), from.Longitude.Degrees(),
			req.Bearing.Degrees(), req.Distance.ToMeters(), &lat2, &lon2, nil)
		dest = domain.NewPosition(lat2, lon2).Normalize()
	} else {
		dest, err = domain.Direct(req.From, req.Bearing, req.Distance, e)
	}
	s.metrics.IncGeodesicCalls(method, err == nil)
	if err != nil {
		return nil, err
	}

	return &input.DirectResult{Destination: dest, Method: method, Ellipsoid: e.Name()}, nil
}

// Intersection implements input.GeodesyService.
func (s *GeodesyService) Intersection(ctx context.Context, req input.IntersectionRequest) (*input.IntersectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validatePositions(req.First, req.Second); err != nil {
		return nil, err
	}

	p := req.First.IntersectionOf(req.FirstBearing, req.Second, req.SecondBearing)
	s.metrics.IncGeodesicCalls("intersection", true)

	switch {
	case p.IsInvalid():
		return &input.IntersectionResult{Position: p, Reason: "paths are parallel or diverge"}, nil
	case p.IsEmpty() && !req.First.Normalize().IsEmpty():
		return &input.IntersectionResult{Position: p, Reason: "paths lie on the same great circle"}, nil
	}
	return &input.IntersectionResult{Position: p, Found: true}, nil
}

// Matrix implements input.GeodesyService. Rows are computed in parallel.
func (s *GeodesyService) Matrix(ctx context.Context, req input.MatrixRequest) (*input.MatrixResult, error) {
	method, err := parseMethod(req.Method, s.defaultMethod)
	if err != nil {
		return nil, err
	}
	e, err := s.ellipsoid(req.Ellipsoid)
	if err != nil {
		return nil, err
	}
	cells := len(req.Origins) * len(req.Destinations)
	if cells == 0 || cells > s.maxCells {
		return nil, &domain.ValidationError{
			Field:      "matrix",
			Value:      cells,
			Constraint: fmt.Sprintf("1..%d cells", s.maxCells),
			Message:    "origins × destinations out of range",
		}
	}
	if err := validatePositions(req.Origins...); err != nil {
		return nil, err
	}
	if err := validatePositions(req.Destinations...); err != nil {
		return nil, err
	}

	out := make([][]float64, len(req.Origins))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range req.Origins {
		g.Go(func() error {
			row := make([]float64, len(req.Destinations))
			for j, dest := range req.Destinations {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := s.inverse(method, req.Origins[i], dest, e)
				if err != nil {
					return fmt.Errorf("origin %d destination %d: %w", i, j, err)
				}
				row[j] = res.Distance.ToUnit(req.Unit).Value
			}
			out[i] = row
			return nil
		})
	}
	err = g.Wait()
	s.metrics.IncGeodesicCalls("matrix", err == nil)
	if err != nil {
		return nil, err
	}

	return &input.MatrixResult{Distances: out, Unit: req.Unit, Method: method, Ellipsoid: e.Name()}, nil
}

// Area implements input.GeodesyService using Karney's polygon accumulator.
func (s *GeodesyService) Area(ctx context.Context, req input.AreaRequest) (*input.AreaResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := s.ellipsoid(req.Ellipsoid)
	if err != nil {
		return nil, err
	}
	if len(req.Ring) < 3 {
		return nil, &domain.ValidationError{
			Field:      "ring",
			Value:      len(req.Ring),
			Constraint: ">= 3",
			Message:    "a ring needs at least three positions",
		}
	}
	if err := validatePositions(req.Ring...); err != nil {
		return nil, err
	}

	ring := req.Ring
	if ring[0].Equal(ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}

	poly := s.karneyFor(e).PolygonInit(false)
	for _, p := range ring {
		p = p.Normalize()
		poly.AddPoint(p.Latitude.Degrees(), p.Longitude.Degrees())
	}
	var area, perimeter float64
	poly.Compute(false, true, &area, &perimeter)
	s.metrics.IncGeodesicCalls("area", true)

	return &input.AreaResult{
		Area:      math.Abs(area),
		Perimeter: domain.MetersDistance(perimeter),
		Ellipsoid: e.Name(),
	}, nil
}

func validatePositions(ps ...domain.Position) error {
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
