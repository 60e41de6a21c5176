package input

import (
	"context"

	"github.com/jobrunner/meridian/internal/domain"
)

// Geodesic solution methods.
const (
	MethodVincenty    = "vincenty"
	MethodKarney      = "karney"
	MethodApproximate = "approximate"
)

// GeodesyService defines the primary port for geodesic computations.
type GeodesyService interface {
	// Inverse computes distance and bearings between two positions.
	Inverse(ctx context.Context, req InverseRequest) (*InverseResult, error)

	// Direct computes the destination reached from a start position.
	Direct(ctx context.Context, req DirectRequest) (*DirectResult, error)

	// Intersection computes where two bearings cross.
	Intersection(ctx context.Context, req IntersectionRequest) (*IntersectionResult, error)

	// Matrix computes the distances between every origin and destination.
	Matrix(ctx context.Context, req MatrixRequest) (*MatrixResult, error)

	// Area computes the geodesic area and perimeter of a ring.
	Area(ctx context.Context, req AreaRequest) (*AreaResult, error)
}

// InverseRequest asks for the geodesic between two positions.
type InverseRequest struct {
	From      domain.Position
	To        domain.Position
	Ellipsoid string              // Catalog name, empty for the default
	Method    string              // vincenty, karney or approximate; empty for the default
	Unit      domain.DistanceUnit // Unit of the returned distance
}

// InverseResult is the answer to an InverseRequest.
type InverseResult struct {
	Distance       domain.Distance
	InitialBearing domain.Azimuth
	FinalBearing   domain.Azimuth // karney only, invalid otherwise
	Iterations     int
	Converged      bool
	Method         string
	Ellipsoid      string
}

// DirectRequest asks for the destination of a geodesic.
type DirectRequest struct {
	From      domain.Position
	Bearing   domain.Azimuth
	Distance  domain.Distance
	Ellipsoid string
	Method    string // vincenty or karney
}

// DirectResult is the answer to a DirectRequest.
type DirectResult struct {
	Destination domain.Position
	Method      string
	Ellipsoid   string
}

// IntersectionRequest describes two positions with their bearings.
type IntersectionRequest struct {
	First         domain.Position
	FirstBearing  domain.Azimuth
	Second        domain.Position
	SecondBearing domain.Azimuth
}

// IntersectionResult is the crossing point. Found is false when the paths
// share a great circle or never meet.
type IntersectionResult struct {
	Position domain.Position
	Found    bool
	Reason   string
}

// MatrixRequest asks for all origin/destination distances.
type MatrixRequest struct {
	Origins      []domain.Position
	Destinations []domain.Position
	Ellipsoid    string
	Method       string
	Unit         domain.DistanceUnit
}

// MatrixResult holds Distances[i][j] from origin i to destination j.
type MatrixResult struct {
	Distances [][]float64
	Unit      domain.DistanceUnit
	Method    string
	Ellipsoid string
}

// AreaRequest describes a ring of positions. The ring is closed implicitly.
type AreaRequest struct {
	Ring      []domain.Position
	Ellipsoid string
}

// AreaResult holds the unsigned area in square meters and the perimeter.
type AreaResult struct {
	Area      float64
	Perimeter domain.Distance
	Ellipsoid string
}
