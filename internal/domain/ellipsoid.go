package domain

import (
	"math"
	"sort"
	"strings"
)

// Ellipsoid is a reference model of the Earth's shape. Instances are
// immutable after construction.
type Ellipsoid struct {
	name string
	a    float64 // equatorial radius, meters
	b    float64 // polar radius, meters
	f    float64 // flattening
}

// Catalog of frozen reference ellipsoids.
var (
	WGS84             = mustEllipsoid("WGS84", 6378137, 0, 1/298.257223563)
	GRS80             = mustEllipsoid("GRS80", 6378137, 0, 1/298.257222101)
	WGS72             = mustEllipsoid("WGS72", 6378135, 0, 1/298.26)
	Clarke1866        = mustEllipsoid("Clarke1866", 6378206.4, 6356583.8, 0)
	Airy1830          = mustEllipsoid("Airy1830", 6377563.396, 6356256.909, 0)
	Bessel1841        = mustEllipsoid("Bessel1841", 6377397.155, 0, 1/299.1528128)
	International1924 = mustEllipsoid("International1924", 6378388, 0, 1/297.0)
	Krassovsky1940    = mustEllipsoid("Krassovsky1940", 6378245, 0, 1/298.3)
	Sphere            = mustEllipsoid("Sphere", 6371008.8, 6371008.8, 0)
)

var catalog = map[string]*Ellipsoid{}

func init() {
	for _, e := range []*Ellipsoid{
		WGS84, GRS80, WGS72, Clarke1866, Airy1830,
		Bessel1841, International1924, Krassovsky1940, Sphere,
	} {
		catalog[strings.ToLower(e.name)] = e
	}
}

func mustEllipsoid(name string, a, b, f float64) *Ellipsoid {
	var (
		e   *Ellipsoid
		err error
	)
	if b != 0 {
		e, err = NewEllipsoidFromRadii(name, a, b)
	} else {
		e, err = NewEllipsoidFromFlattening(name, a, f)
	}
	if err != nil {
		panic(err)
	}
	return e
}

// LookupEllipsoid finds a catalog entry by name, ignoring case. Dashes,
// underscores and spaces are ignored, so "wgs-84" matches WGS84.
func LookupEllipsoid(name string) (*Ellipsoid, bool) {
	key := strings.ToLower(name)
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	e, ok := catalog[key]
	return e, ok
}

// Ellipsoids returns the catalog sorted by name.
func Ellipsoids() []*Ellipsoid {
	out := make([]*Ellipsoid, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// NewEllipsoidFromFlattening builds an ellipsoid from the equatorial radius
// and the flattening.
func NewEllipsoidFromFlattening(name string, a, f float64) (*Ellipsoid, error) {
	if err := checkRadius("equatorial_radius", a); err != nil {
		return nil, err
	}
	if err := checkFlattening(f); err != nil {
		return nil, err
	}
	return &Ellipsoid{name: name, a: a, b: a * (1 - f), f: f}, nil
}

// NewEllipsoidFromInverseFlattening builds an ellipsoid from the equatorial
// radius and 1/f. An inverse flattening of zero describes a sphere.
func NewEllipsoidFromInverseFlattening(name string, a, invf float64) (*Ellipsoid, error) {
	if invf == 0 {
		return NewEllipsoidFromFlattening(name, a, 0)
	}
	return NewEllipsoidFromFlattening(name, a, 1/invf)
}

// NewEllipsoidFromRadii builds an ellipsoid from the equatorial and polar
// radii.
func NewEllipsoidFromRadii(name string, a, b float64) (*Ellipsoid, error) {
	if err := checkRadius("equatorial_radius", a); err != nil {
		return nil, err
	}
	if err := checkRadius("polar_radius", b); err != nil {
		return nil, err
	}
	if b > a {
		return nil, &ValidationError{
			Field:      "polar_radius",
			Value:      b,
			Constraint: "<= equatorial radius",
			Message:    "polar radius exceeds equatorial radius",
		}
	}
	return &Ellipsoid{name: name, a: a, b: b, f: (a - b) / a}, nil
}

// NewEllipsoidFromPolarRadius builds an ellipsoid from the polar radius and
// the flattening.
func NewEllipsoidFromPolarRadius(name string, b, f float64) (*Ellipsoid, error) {
	if err := checkRadius("polar_radius", b); err != nil {
		return nil, err
	}
	if err := checkFlattening(f); err != nil {
		return nil, err
	}
	return &Ellipsoid{name: name, a: b / (1 - f), b: b, f: f}, nil
}

func checkRadius(field string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return &ValidationError{
			Field:      field,
			Value:      v,
			Constraint: "> 0",
			Message:    "radius must be a positive finite number",
		}
	}
	return nil
}

func checkFlattening(f float64) error {
	if !(f >= 0 && f < 1) {
		return &ValidationError{
			Field:      "flattening",
			Value:      f,
			Constraint: "[0, 1)",
			Message:    "flattening must be in [0, 1)",
		}
	}
	return nil
}

// Name returns the ellipsoid's name.
func (e *Ellipsoid) Name() string { return e.name }

// EquatorialRadiusMeters returns a, the semi-major axis.
func (e *Ellipsoid) EquatorialRadiusMeters() float64 { return e.a }

// SemiMajorAxisMeters is an alias of EquatorialRadiusMeters.
func (e *Ellipsoid) SemiMajorAxisMeters() float64 { return e.a }

// PolarRadiusMeters returns b, the semi-minor axis.
func (e *Ellipsoid) PolarRadiusMeters() float64 { return e.b }

func (e *Ellipsoid) EquatorialRadius() Distance { return MetersDistance(e.a) }
func (e *Ellipsoid) PolarRadius() Distance { return MetersDistance(e.b) }

// Flattening returns (a-b)/a.
func (e *Ellipsoid) Flattening() float64 { return e.f }

// InverseFlattening returns 1/f, or 0 for a sphere.
func (e *Ellipsoid) InverseFlattening() float64 {
	if e.f == 0 {
		return 0
	}
	return 1 / e.f
}

// Eccentricity returns sqrt(1 - (b/a)^2).
func (e *Ellipsoid) Eccentricity() float64 {
	return math.Sqrt(e.EccentricitySquared())
}

// EccentricitySquared returns 1 - (b/a)^2.
func (e *Ellipsoid) EccentricitySquared() float64 {
	r := e.b / e.a
	return 1 - r*r
}

// A and Fi satisfy the spheroid contract of the coordinate transformer.
func (e *Ellipsoid) A() float64 { return e.a }
func (e *Ellipsoid) Fi() float64 { return e.InverseFlattening() }

// MeridionalRadius returns the radius of curvature in the meridian at lat
// (radians).
func (e *Ellipsoid) MeridionalRadius(lat float64) float64 {
	e2 := e.EccentricitySquared()
	w := 1 - e2*math.Sin(lat)*math.Sin(lat)
	return e.a * (1 - e2) / (w * math.Sqrt(w))
}

// PrimeVerticalRadius returns the radius of curvature in the prime vertical
// at lat (radians).
func (e *Ellipsoid) PrimeVerticalRadius(lat float64) float64 {
	e2 := e.EccentricitySquared()
	return e.a / math.Sqrt(1-e2*math.Sin(lat)*math.Sin(lat))
}

func (e *Ellipsoid) String() string { return e.name }
