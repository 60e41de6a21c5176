package domain

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Position is an ordered latitude/longitude pair.
type Position struct {
	Latitude  Latitude
	Longitude Longitude
}

// Sentinels.
var (
	EmptyPosition   = Position{}
	InvalidPosition = Position{Latitude: InvalidLatitude, Longitude: InvalidLongitude}
)

// NewPosition builds a position from decimal degrees.
func NewPosition(lat, lon float64) Position {
	return Position{Latitude: Latitude(lat), Longitude: Longitude(lon)}
}

// IsEmpty reports whether both components are the empty sentinel.
func (p Position) IsEmpty() bool {
	return p.Latitude.IsEmpty() && p.Longitude.IsEmpty()
}

// IsInvalid reports whether either component is the invalid sentinel.
func (p Position) IsInvalid() bool {
	return p.Latitude.IsInvalid() || p.Longitude.IsInvalid()
}

// IsNormalized reports whether both components lie in their canonical range.
func (p Position) IsNormalized() bool {
	return p.Latitude.IsNormalized() && p.Longitude.IsNormalized()
}

// Normalize folds both components into their canonical ranges. A latitude
// reflected over a pole moves the longitude to the other side of the globe.
func (p Position) Normalize() Position {
	if p.IsInvalid() || p.IsNormalized() {
		return p
	}
	lat := Latitude(wrap180(float64(p.Latitude)))
	lon := p.Longitude
	if lat > 90 || lat < -90 {
		lon += 180
	}
	return Position{Latitude: lat.Normalize(), Longitude: lon.Normalize()}
}

// Equal compares both components exactly.
func (p Position) Equal(o Position) bool {
	return p.Latitude.Equal(o.Latitude) && p.Longitude.Equal(o.Longitude)
}

// EqualDecimals compares both components after rounding them.
func (p Position) EqualDecimals(o Position, decimals int) bool {
	return p.Latitude.EqualDecimals(o.Latitude, decimals) &&
		p.Longitude.EqualDecimals(o.Longitude, decimals)
}

// DistanceTo returns the Vincenty distance to dest on WGS84.
func (p Position) DistanceTo(dest Position) Distance {
	d, err := p.DistanceToOn(dest, WGS84, false)
	if err != nil {
		return InvalidDistance
	}
	return d
}

// DistanceToOn returns the distance to dest on e. When approximate is set,
// the closed form mean radius formula is used instead of Vincenty.
func (p Position) DistanceToOn(dest Position, e *Ellipsoid, approximate bool) (Distance, error) {
	if approximate {
		return ApproximateDistance(p, dest, e)
	}
	g, err := Inverse(p, dest, e)
	if err != nil {
		return InvalidDistance, err
	}
	return g.Distance, nil
}

// BearingTo returns the initial bearing towards dest on WGS84.
func (p Position) BearingTo(dest Position) Azimuth {
	az, err := p.BearingToOn(dest, WGS84)
	if err != nil {
		return InvalidAzimuth
	}
	return az
}

// BearingToOn returns the initial bearing towards dest on e.
func (p Position) BearingToOn(dest Position, e *Ellipsoid) (Azimuth, error) {
	g, err := Inverse(p, dest, e)
	if err != nil {
		return InvalidAzimuth, err
	}
	return g.Azimuth, nil
}

// TranslateTo returns the position reached after travelling d on bearing
// on WGS84.
func (p Position) TranslateTo(bearing Azimuth, d Distance) Position {
	dest, err := p.TranslateToOn(bearing, d, WGS84)
	if err != nil {
		return InvalidPosition
	}
	return dest
}

// TranslateToOn is TranslateTo on an explicit ellipsoid.
func (p Position) TranslateToOn(bearing Azimuth, d Distance, e *Ellipsoid) (Position, error) {
	return Direct(p, bearing, d, e)
}

// TranslateAt dead-reckons the position after travelling at speed on
// bearing for elapsed.
func (p Position) TranslateAt(bearing Azimuth, speed Speed, elapsed time.Duration) (Position, error) {
	if !(speed.ToMetersPerSecond() > 0) {
		return InvalidPosition, ErrNonPositiveSpeed
	}
	return Direct(p, bearing, speed.DistanceIn(elapsed), WGS84)
}

// TimeTo returns the travel time to dest at speed.
func (p Position) TimeTo(dest Position, speed Speed) (time.Duration, error) {
	if !(speed.ToMetersPerSecond() > 0) {
		return 0, ErrNonPositiveSpeed
	}
	d := p.DistanceTo(dest)
	if d.IsInvalid() {
		return 0, ErrInvalidCoordinate
	}
	return d.TimeAt(speed)
}

// IntersectionOf returns where the path leaving p on bearing crosses the
// path leaving other on otherBearing. Callers must check the result against
// EmptyPosition and InvalidPosition.
func (p Position) IntersectionOf(bearing Azimuth, other Position, otherBearing Azimuth) Position {
	return IntersectionOf(p, bearing, other, otherBearing)
}

// String formats the position as 39°44'20.8"N 104°59'4.9"W.
func (p Position) String() string {
	if p.IsInvalid() {
		return "Invalid"
	}
	return p.Latitude.String() + " " + p.Longitude.String()
}

// DecimalString formats the position as "lat,lon" in decimal degrees.
func (p Position) DecimalString() string {
	return strconv.FormatFloat(float64(p.Latitude), 'f', -1, 64) + "," +
		strconv.FormatFloat(float64(p.Longitude), 'f', -1, 64)
}

// ParsePosition parses "<lat><hemi> <lon><hemi>" or "<lat>,<lon>" using
// the separators of loc.
func ParsePosition(s string, loc Locale) (Position, error) {
	latText, lonText, ok := splitPosition(s, loc)
	if !ok {
		return InvalidPosition, &FormatError{Kind: "position", Input: s, Msg: "expected two components"}
	}
	lat, err := ParseLatitude(latText, loc)
	if err != nil {
		return InvalidPosition, &FormatError{Kind: "position", Input: s, Msg: err.Error()}
	}
	lon, err := ParseLongitude(lonText, loc)
	if err != nil {
		return InvalidPosition, &FormatError{Kind: "position", Input: s, Msg: err.Error()}
	}
	return Position{Latitude: lat, Longitude: lon}, nil
}

// ParsePositionOrInvalid is the lenient form of ParsePosition.
func ParsePositionOrInvalid(s string, loc Locale) Position {
	p, err := ParsePosition(s, loc)
	if err != nil {
		return InvalidPosition
	}
	return p
}

func splitPosition(s string, loc Locale) (string, string, bool) {
	text := strings.TrimSpace(s)
	list := loc.List
	if list == 0 {
		list = ','
	}
	if list != loc.Decimal && strings.ContainsRune(text, list) {
		parts := strings.Split(text, string(list))
		if len(parts) != 2 {
			return "", "", false
		}
		return parts[0], parts[1], true
	}

	upper := strings.ToUpper(text)
	if i := strings.IndexAny(upper, "NS"); i > 0 {
		return text[:i+1], text[i+1:], true
	} else if i == 0 {
		if j := strings.IndexAny(upper, "EW"); j > 0 {
			return text[:j], text[j:], true
		}
	}

	fields := strings.FieldsFunc(text, unicode.IsSpace)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// xmlPosition covers the GML 3 form and the two legacy forms accepted on
// input.
type xmlPosition struct {
	Pos         string `xml:"pos"`
	Coordinates string `xml:"coordinates"`
	Coord       *struct {
		X string `xml:"X"`
		Y string `xml:"Y"`
	} `xml:"coord"`
}

// MarshalXML writes <pos>LON LAT</pos> inside start.
func (p Position) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	out := struct {
		Pos string `xml:"pos"`
	}{
		Pos: strconv.FormatFloat(float64(p.Longitude), 'f', -1, 64) + " " +
			strconv.FormatFloat(float64(p.Latitude), 'f', -1, 64),
	}
	return enc.EncodeElement(out, start)
}

// UnmarshalXML reads <pos>LON LAT</pos>, <coordinates>LON,LAT</coordinates>
// or <coord><X>LON</X><Y>LAT</Y></coord>.
func (p *Position) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	var in xmlPosition
	if err := dec.DecodeElement(&in, &start); err != nil {
		return err
	}

	var x, y string
	switch {
	case strings.TrimSpace(in.Pos) != "":
		f := strings.Fields(in.Pos)
		if len(f) != 2 {
			return &FormatError{Kind: "position", Input: in.Pos, Msg: "pos needs two values"}
		}
		x, y = f[0], f[1]
	case strings.TrimSpace(in.Coordinates) != "":
		f := strings.Split(strings.TrimSpace(in.Coordinates), ",")
		if len(f) < 2 {
			return &FormatError{Kind: "position", Input: in.Coordinates, Msg: "coordinates needs two values"}
		}
		x, y = f[0], f[1]
	case in.Coord != nil:
		x, y = in.Coord.X, in.Coord.Y
	default:
		return &FormatError{Kind: "position", Input: start.Name.Local, Msg: "no pos, coordinates or coord element"}
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
	if err != nil {
		return &FormatError{Kind: "position", Input: x, Msg: "longitude is not a number"}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(y), 64)
	if err != nil {
		return &FormatError{Kind: "position", Input: y, Msg: "latitude is not a number"}
	}
	*p = NewPosition(lat, lon)
	return nil
}

// Validate checks that both components are finite and within range.
func (p Position) Validate() error {
	if p.IsInvalid() || math.IsInf(float64(p.Latitude), 0) || math.IsInf(float64(p.Longitude), 0) {
		return &ValidationError{
			Field:      "position",
			Value:      p.DecimalString(),
			Constraint: "finite",
			Message:    "position must be finite",
		}
	}
	if !p.Latitude.IsNormalized() {
		return &ValidationError{
			Field:      "latitude",
			Value:      float64(p.Latitude),
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return &ValidationError{
			Field:      "longitude",
			Value:      float64(p.Longitude),
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	return nil
}
