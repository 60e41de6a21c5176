package domain

import "math"

// Solver limits.
const (
	InverseMaxIterations = 50
	DirectMaxIterations  = 30
	TargetAccuracy       = 1e-12
	PoleEpsilon          = 1e-10

	intersectionTolerance = 1e-15
	directDecimals        = 10
)

// Geodesic is the solution of the inverse problem between two positions.
type Geodesic struct {
	Distance   Distance // Ellipsoidal distance in meters
	Azimuth    Azimuth  // Initial bearing, degrees clockwise from north
	Iterations int      // λ refinements performed
	Converged  bool     // False when the iteration cap was reached
}

// Inverse solves the inverse geodesic problem on e with Vincenty's
// formulae. Antipodal pairs that do not converge within InverseMaxIterations
// still yield a finite, lower precision result with Converged set to false.
func Inverse(from, to Position, e *Ellipsoid) (Geodesic, error) {
	if e == nil {
		return Geodesic{}, ErrNilEllipsoid
	}
	if from.IsInvalid() || to.IsInvalid() {
		return Geodesic{Distance: InvalidDistance, Azimuth: InvalidAzimuth}, ErrInvalidCoordinate
	}
	from, to = from.Normalize(), to.Normalize()
	if from.Equal(to) {
		return Geodesic{Distance: EmptyDistance, Azimuth: EmptyAzimuth, Converged: true}, nil
	}

	sol := vincentyInverse(
		from.Latitude.Radians(), from.Longitude.Radians(),
		to.Latitude.Radians(), to.Longitude.Radians(), e)

	az := sol.azimuth
	switch {
	case from.Latitude <= -90:
		az = 0
	case from.Latitude >= 90:
		az = math.Pi
	}

	return Geodesic{
		Distance:   MetersDistance(sol.meters),
		Azimuth:    AzimuthFromRadians(az).Normalize(),
		Iterations: sol.iterations,
		Converged:  sol.converged,
	}, nil
}

// Direct solves the direct geodesic problem: the position reached after
// travelling d from start along the initial bearing azimuth on e.
func Direct(from Position, azimuth Azimuth, d Distance, e *Ellipsoid) (Position, error) {
	if e == nil {
		return InvalidPosition, ErrNilEllipsoid
	}
	if from.IsInvalid() || azimuth.IsInvalid() || d.IsInvalid() {
		return InvalidPosition, ErrInvalidCoordinate
	}
	from = from.Normalize()
	lat, lon := vincentyDirect(from.Latitude.Radians(), from.Longitude.Radians(),
		azimuth.Radians(), d.ToMeters(), e)
	return Position{
		Latitude:  Latitude(roundTo(fromRadians(lat), directDecimals)),
		Longitude: Longitude(roundTo(fromRadians(lon), directDecimals)),
	}.Normalize(), nil
}

// ApproximateDistance computes the haversine central angle scaled by the
// Gaussian mean radius of curvature at the mean latitude. It is much faster
// than Inverse and accurate to a few tenths of a percent.
func ApproximateDistance(from, to Position, e *Ellipsoid) (Distance, error) {
	if e == nil {
		return InvalidDistance, ErrNilEllipsoid
	}
	if from.IsInvalid() || to.IsInvalid() {
		return InvalidDistance, ErrInvalidCoordinate
	}
	from, to = from.Normalize(), to.Normalize()
	if from.Equal(to) {
		return EmptyDistance, nil
	}
	lat1, lat2 := from.Latitude.Radians(), to.Latitude.Radians()
	central := haversine(lat1, from.Longitude.Radians(), lat2, to.Longitude.Radians())
	mean := (lat1 + lat2) / 2
	r := math.Sqrt(e.MeridionalRadius(mean) * e.PrimeVerticalRadius(mean))
	return MetersDistance(r * central), nil
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	sinDLat := math.Sin((lat2 - lat1) / 2)
	sinDLon := math.Sin((lon2 - lon1) / 2)
	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// nudgePole keeps a latitude at least PoleEpsilon away from ±π/2.
func nudgePole(lat float64) float64 {
	if math.Abs(lat) > math.Pi/2-PoleEpsilon {
		return math.Copysign(math.Pi/2-PoleEpsilon, lat)
	}
	return lat
}

// wrapTwoPi folds a radian longitude into [0, 2π).
func wrapTwoPi(lon float64) float64 {
	lon = math.Mod(lon, 2*math.Pi)
	if lon < 0 {
		lon += 2 * math.Pi
	}
	return lon
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// inverseTerms are the trigonometric terms of one λ refinement.
type inverseTerms struct {
	sinSigma   float64
	cosSigma   float64
	sigma      float64
	cosSqAlpha float64
	cos2SigmaM float64
	lambda     float64
}

func (t inverseTerms) finite() bool {
	for _, v := range [...]float64{t.sinSigma, t.cosSigma, t.sigma, t.cosSqAlpha, t.cos2SigmaM, t.lambda} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// lastGood holds the most recent finite set of terms. It is written only
// with finite candidates and read after the loop has exited.
type lastGood struct {
	terms inverseTerms
	ok    bool
}

func (g *lastGood) offer(t inverseTerms) bool {
	if !t.finite() {
		return false
	}
	g.terms, g.ok = t, true
	return true
}

// get returns the recorded terms, or the meridional terms of an exactly
// antipodal pair when nothing finite was ever recorded.
func (g *lastGood) get(sinU1, sinU2 float64) inverseTerms {
	if g.ok {
		return g.terms
	}
	return inverseTerms{
		sinSigma:   0,
		cosSigma:   -1,
		sigma:      math.Pi,
		cosSqAlpha: 1,
		cos2SigmaM: -1 - 2*sinU1*sinU2,
		lambda:     math.Pi,
	}
}

type inverseSolution struct {
	meters     float64
	azimuth    float64 // radians in [0, 2π)
	iterations int
	converged  bool
}

// vincentyInverse takes radian coordinates.
func vincentyInverse(lat1, lon1, lat2, lon2 float64, e *Ellipsoid) inverseSolution {
	a, b, f := e.a, e.b, e.f

	u1 := math.Atan((1 - f) * math.Tan(nudgePole(lat1)))
	u2 := math.Atan((1 - f) * math.Tan(nudgePole(lat2)))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	l := math.Abs(wrapTwoPi(lon2) - wrapTwoPi(lon1))
	if l > math.Pi {
		l = 2*math.Pi - l
	}

	var (
		good       lastGood
		lambda     = l
		iterations int
		converged  bool
	)
	for iterations < InverseMaxIterations {
		iterations++
		sinLambda, cosLambda := math.Sincos(lambda)

		var t inverseTerms
		t.sinSigma = math.Hypot(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)
		t.cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		t.sigma = math.Atan2(t.sinSigma, t.cosSigma)

		sinAlpha := 0.0
		if t.sinSigma != 0 {
			sinAlpha = cosU1 * cosU2 * sinLambda / t.sinSigma
		}
		cosAlpha := math.Cos(math.Asin(sinAlpha))
		t.cosSqAlpha = cosAlpha * cosAlpha
		if t.cosSqAlpha != 0 {
			t.cos2SigmaM = t.cosSigma - 2*sinU1*sinU2/t.cosSqAlpha
		}

		c := f / 16 * t.cosSqAlpha * (4 + f*(4-3*t.cosSqAlpha))
		prev := lambda
		lambda = l + (1-c)*f*sinAlpha*
			(t.sigma+c*t.sinSigma*(t.cos2SigmaM+c*t.cosSigma*(-1+2*t.cos2SigmaM*t.cos2SigmaM)))

		if lambda > math.Pi {
			lambda = math.Pi
			converged = true
		} else if math.Abs(lambda-prev) <= TargetAccuracy {
			converged = true
		}
		t.lambda = lambda
		if !good.offer(t) {
			break
		}
		if converged {
			break
		}
	}

	terms := good.get(sinU1, sinU2)
	if !converged {
		terms.lambda = math.Pi
	}

	uSq := terms.cosSqAlpha * (a*a - b*b) / (b * b)
	bigA := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	bigB := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	c2m := terms.cos2SigmaM
	deltaSigma := bigB * terms.sinSigma * (c2m + bigB/4*(terms.cosSigma*(-1+2*c2m*c2m)-
		bigB/6*c2m*(-3+4*terms.sinSigma*terms.sinSigma)*(-3+4*c2m*c2m)))
	meters := b * bigA * (terms.sigma - deltaSigma)

	sinLambda, cosLambda := math.Sincos(terms.lambda)
	az := math.Atan2(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)
	if sign(math.Sin(lon2-lon1))*sign(sinLambda) < 0 {
		az = -az
	}
	az = wrapTwoPi(az)

	return inverseSolution{
		meters:     meters,
		azimuth:    az,
		iterations: iterations,
		converged:  converged,
	}
}

// vincentyDirect takes and returns radians. The series follows the classic
// forward solution with intermediate terms sy, cy, cz and e.
func vincentyDirect(lat1, lon1, faz, s float64, ell *Ellipsoid) (lat2, lon2 float64) {
	a, f := ell.a, ell.f
	r := 1 - f
	lat1 = nudgePole(lat1)

	tu := r * math.Sin(lat1) / math.Cos(lat1)
	sf, cf := math.Sincos(faz)
	baz := 0.0
	if cf != 0 {
		baz = 2 * math.Atan2(tu, cf)
	}
	cu := 1 / math.Sqrt(1+tu*tu)
	su := tu * cu
	sa := cu * sf
	c2a := 1 - sa*sa
	x := 1 + math.Sqrt((1/(r*r)-1)*c2a+1)
	x = (x - 2) / x
	c := 1 - x
	c = (x*x/4 + 1) / c
	d := x * (0.375*x*x - 1)
	tu = s / r / a / c
	y := tu
	c = y + 1

	var sy, cy, cz, e float64
	for i := 0; math.Abs(y-c) > TargetAccuracy && i < DirectMaxIterations; i++ {
		sy, cy = math.Sincos(y)
		cz = math.Cos(baz + y)
		e = 2*cz*cz - 1
		c = y
		x = e * cy
		y = 2*e - 1
		y = (((sy*sy*4-3)*y*cz*d/6+x)*d/4-cz)*sy*d + tu
	}

	baz = cu*cy*cf - su*sy
	c = r * math.Sqrt(sa*sa+baz*baz)
	d = su*cy + cu*sy*cf
	lat2 = math.Atan2(d, c)

	c = cu*cy - su*sy*cf
	x = math.Atan2(sy*sf, c)
	c = ((-3*c2a+4)*f + 4) * c2a * f / 16
	d = ((e*cy*c+cz)*sy*c + y) * sa
	lon2 = lon1 + x - (1-c)*d*f
	lon2 -= 2 * math.Pi * math.Floor(lon2/(2*math.Pi)+0.5)
	return lat2, lon2
}

// IntersectionOf returns the point where the great circle leaving p1 on
// bearing b1 crosses the one leaving p2 on bearing b2. The computation is
// spherical. EmptyPosition is returned when both paths lie on the same great
// circle and InvalidPosition when they are parallel or diverge.
func IntersectionOf(p1 Position, b1 Azimuth, p2 Position, b2 Azimuth) Position {
	if p1.IsInvalid() || p2.IsInvalid() || b1.IsInvalid() || b2.IsInvalid() {
		return InvalidPosition
	}
	p1, p2 = p1.Normalize(), p2.Normalize()
	if p1.Equal(p2) {
		return p1
	}

	lat1, lon1 := p1.Latitude.Radians(), p1.Longitude.Radians()
	lat2, lon2 := p2.Latitude.Radians(), p2.Longitude.Radians()
	theta13, theta23 := b1.Radians(), b2.Radians()

	d12 := haversine(lat1, lon1, lat2, lon2)
	sinD12, cosD12 := math.Sincos(d12)
	if sinD12 == 0 {
		return InvalidPosition
	}

	cosThetaA := (math.Sin(lat2) - math.Sin(lat1)*cosD12) / (sinD12 * math.Cos(lat1))
	cosThetaB := (math.Sin(lat1) - math.Sin(lat2)*cosD12) / (sinD12 * math.Cos(lat2))
	thetaA := math.Acos(clamp(cosThetaA, -1, 1))
	thetaB := math.Acos(clamp(cosThetaB, -1, 1))

	var theta12, theta21 float64
	if math.Sin(lon2-lon1) > 0 {
		theta12, theta21 = thetaA, 2*math.Pi-thetaB
	} else {
		theta12, theta21 = 2*math.Pi-thetaA, thetaB
	}

	alpha1 := theta13 - theta12
	alpha2 := theta21 - theta23
	sinA1, cosA1 := math.Sincos(alpha1)
	sinA2, cosA2 := math.Sincos(alpha2)

	if math.Abs(sinA1) < intersectionTolerance && math.Abs(sinA2) < intersectionTolerance {
		return EmptyPosition
	}
	if sinA1*sinA2 <= math.Sqrt(intersectionTolerance) {
		return InvalidPosition
	}

	alpha3 := math.Acos(clamp(-cosA1*cosA2+sinA1*sinA2*cosD12, -1, 1))
	d13 := math.Atan2(sinD12*sinA1*sinA2, cosA2+cosA1*math.Cos(alpha3))
	sinD13, cosD13 := math.Sincos(d13)
	lat3 := math.Asin(clamp(math.Sin(lat1)*cosD13+math.Cos(lat1)*sinD13*math.Cos(theta13), -1, 1))
	dLon13 := math.Atan2(math.Sin(theta13)*sinD13*math.Cos(lat1), cosD13-math.Sin(lat1)*math.Sin(lat3))

	return Position{
		Latitude:  LatitudeFromRadians(lat3),
		Longitude: LongitudeFromRadians(lon1 + dLon13),
	}.Normalize()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
