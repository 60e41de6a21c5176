// Package domain contains the geodesy value types, the Vincenty solver and
// the shape range intersection core.
package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/golang/geo/s1"
	"gonum.org/v1/gonum/floats/scalar"
)

// Angle is an angular quantity in decimal degrees. Values are immutable;
// every operation returns a new value.
type Angle float64

// Latitude is an angle north (positive) or south (negative) of the equator.
type Latitude float64

// Longitude is an angle east (positive) or west (negative) of Greenwich.
type Longitude float64

// Sentinel values.
const (
	EmptyAngle     Angle     = 0
	EmptyLatitude  Latitude  = 0
	EmptyLongitude Longitude = 0
)

// Invalid sentinels are NaN backed and therefore cannot be constants.
var (
	InvalidAngle     = Angle(math.NaN())
	InvalidLatitude  = Latitude(math.NaN())
	InvalidLongitude = Longitude(math.NaN())
)

// Locale describes the numeric conventions used when parsing and formatting
// angles and positions.
type Locale struct {
	Decimal rune // Decimal separator
	Group   rune // Thousands separator, 0 for none
	List    rune // Separator between the components of a position
}

// Common locales.
var (
	InvariantLocale = Locale{Decimal: '.', Group: ',', List: ','}
	GermanLocale    = Locale{Decimal: ',', Group: '.', List: ';'}
	FrenchLocale    = Locale{Decimal: ',', Group: '\u202f', List: ';'}
)

// LocaleFor returns the locale for a language tag such as "de" or "en-US".
// Unknown tags fall back to the invariant locale.
func LocaleFor(tag string) Locale {
	lang := strings.ToLower(tag)
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	switch lang {
	case "de", "nl", "da", "es", "it", "pt", "ru", "pl", "sv", "nb", "fi", "cs":
		return GermanLocale
	case "fr":
		return FrenchLocale
	default:
		return InvariantLocale
	}
}

// toRadians converts decimal degrees to radians.
func toRadians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

// fromRadians converts radians to decimal degrees.
func fromRadians(rad float64) float64 {
	return s1.Angle(rad).Degrees()
}

func roundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return scalar.Round(v, decimals)
}

// sameValue reports exact equality, treating two NaN sentinels as equal.
func sameValue(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}

func sameValueDecimals(a, b float64, decimals int) bool {
	return sameValue(roundTo(a, decimals), roundTo(b, decimals))
}

// wrap180 folds v into (-180, 180].
func wrap180(v float64) float64 {
	v = math.Mod(v, 360)
	if v > 180 {
		v -= 360
	} else if v <= -180 {
		v += 360
	}
	return v
}

// wrap360 folds v into [0, 360).
func wrap360(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	if v >= 360 {
		v = 0
	}
	return v
}

// dms splits an absolute value into whole degrees, whole minutes and seconds,
// after rounding the seconds to the requested precision.
func dms(v float64, secondDecimals int) (deg, min int, sec float64) {
	total := roundTo(math.Abs(v)*3600, secondDecimals)
	d := math.Floor(total / 3600)
	m := math.Floor((total - d*3600) / 60)
	s := roundTo(total-d*3600-m*60, secondDecimals)
	return int(d), int(m), s
}

func formatDMS(v float64) string {
	d, m, s := dms(v, 1)
	return fmt.Sprintf("%d°%d'%.1f\"", d, m, s)
}

func fromDMS(deg, min int, sec float64) float64 {
	v := math.Abs(float64(deg)) + float64(min)/60 + sec/3600
	if deg < 0 {
		return -v
	}
	return v
}

// NewAngleDMS builds an angle from degree, minute and second components.
// The sign is taken from the degree component.
func NewAngleDMS(deg, min int, sec float64) Angle {
	return Angle(fromDMS(deg, min, sec))
}

// AngleFromRadians builds an angle from a radian value.
func AngleFromRadians(rad float64) Angle { return Angle(fromRadians(rad)) }

// Degrees returns the decimal degree value.
func (a Angle) Degrees() float64 { return float64(a) }

// Radians returns the radian value.
func (a Angle) Radians() float64 { return toRadians(float64(a)) }

// IsEmpty reports whether a is the empty sentinel.
func (a Angle) IsEmpty() bool { return a == EmptyAngle }

// IsInvalid reports whether a is the invalid sentinel.
func (a Angle) IsInvalid() bool { return math.IsNaN(float64(a)) }

// Normalize folds a into [0, 360).
func (a Angle) Normalize() Angle {
	if a.IsInvalid() {
		return a
	}
	return Angle(wrap360(float64(a)))
}

// IsNormalized reports whether a lies in [0, 360).
func (a Angle) IsNormalized() bool { return a >= 0 && a < 360 }

func (a Angle) Add(b Angle) Angle { return a + b }

func (a Angle) Subtract(b Angle) Angle { return a - b }

func (a Angle) Multiply(f float64) Angle { return Angle(float64(a) * f) }

func (a Angle) Divide(f float64) Angle { return Angle(float64(a) / f) }

// Round rounds a to the given number of decimal digits.
func (a Angle) Round(decimals int) Angle { return Angle(roundTo(float64(a), decimals)) }

// Equal compares exactly; two invalid sentinels are equal.
func (a Angle) Equal(b Angle) bool { return sameValue(float64(a), float64(b)) }

// EqualDecimals rounds both values to the given number of fractional digits
// before comparing them.
func (a Angle) EqualDecimals(b Angle, decimals int) bool {
	return sameValueDecimals(float64(a), float64(b), decimals)
}

// Hours returns the signed whole degree component.
func (a Angle) Hours() int {
	d, _, _ := dms(float64(a), 9)
	return signed(d, float64(a))
}

// Minutes returns the whole minute component.
func (a Angle) Minutes() int {
	_, m, _ := dms(float64(a), 9)
	return m
}

// Seconds returns the second component.
func (a Angle) Seconds() float64 {
	_, _, sec := dms(float64(a), 9)
	return sec
}

// String formats the angle as degrees, minutes and seconds.
func (a Angle) String() string {
	if a.IsInvalid() {
		return "NaN"
	}
	if a < 0 {
		return "-" + formatDMS(float64(a))
	}
	return formatDMS(float64(a))
}

func signed(d int, v float64) int {
	if v < 0 {
		return -d
	}
	return d
}

// NewLatitudeDMS builds a latitude from degree, minute and second components.
func NewLatitudeDMS(deg, min int, sec float64) Latitude {
	return Latitude(fromDMS(deg, min, sec))
}

// LatitudeFromRadians builds a latitude from a radian value.
func LatitudeFromRadians(rad float64) Latitude { return Latitude(fromRadians(rad)) }

func (l Latitude) Degrees() float64 { return float64(l) }
func (l Latitude) Radians() float64 { return toRadians(float64(l)) }
func (l Latitude) IsEmpty() bool { return l == EmptyLatitude }
func (l Latitude) IsInvalid() bool { return math.IsNaN(float64(l)) }

// IsNormalized reports whether l lies in [-90, 90].
func (l Latitude) IsNormalized() bool { return l >= -90 && l <= 90 }

// Normalize folds l into [-90, 90]. Values past a pole are reflected back
// through it, so 100° becomes 80°.
func (l Latitude) Normalize() Latitude {
	if l.IsInvalid() || l.IsNormalized() {
		return l
	}
	v := wrap180(float64(l))
	if v > 90 {
		v = 180 - v
	} else if v < -90 {
		v = -180 - v
	}
	return Latitude(v)
}

func (l Latitude) Add(b Latitude) Latitude { return l + b }
func (l Latitude) Subtract(b Latitude) Latitude { return l - b }
func (l Latitude) Multiply(f float64) Latitude { return Latitude(float64(l) * f) }
func (l Latitude) Divide(f float64) Latitude { return Latitude(float64(l) / f) }
func (l Latitude) Round(decimals int) Latitude { return Latitude(roundTo(float64(l), decimals)) }
func (l Latitude) Equal(b Latitude) bool { return sameValue(float64(l), float64(b)) }
func (l Latitude) EqualDecimals(b Latitude, decimals int) bool {
	return sameValueDecimals(float64(l), float64(b), decimals)
}

// Hemisphere returns 'N' or 'S'.
func (l Latitude) Hemisphere() rune {
	if l < 0 {
		return 'S'
	}
	return 'N'
}

// String formats the latitude as 39°44'20.8"N.
func (l Latitude) String() string {
	if l.IsInvalid() {
		return "NaN"
	}
	return formatDMS(float64(l)) + string(l.Hemisphere())
}

// NewLongitudeDMS builds a longitude from degree, minute and second components.
func NewLongitudeDMS(deg, min int, sec float64) Longitude {
	return Longitude(fromDMS(deg, min, sec))
}

// LongitudeFromRadians builds a longitude from a radian value.
func LongitudeFromRadians(rad float64) Longitude { return Longitude(fromRadians(rad)) }

func (l Longitude) Degrees() float64 { return float64(l) }
func (l Longitude) Radians() float64 { return toRadians(float64(l)) }
func (l Longitude) IsEmpty() bool { return l == EmptyLongitude }
func (l Longitude) IsInvalid() bool { return math.IsNaN(float64(l)) }

// IsNormalized reports whether l lies in (-180, 180].
func (l Longitude) IsNormalized() bool { return l > -180 && l <= 180 }

// Normalize wraps l modulo 360 into (-180, 180].
func (l Longitude) Normalize() Longitude {
	if l.IsInvalid() || l.IsNormalized() {
		return l
	}
	return Longitude(wrap180(float64(l)))
}

func (l Longitude) Add(b Longitude) Longitude { return l + b }
func (l Longitude) Subtract(b Longitude) Longitude { return l - b }
func (l Longitude) Multiply(f float64) Longitude { return Longitude(float64(l) * f) }
func (l Longitude) Divide(f float64) Longitude { return Longitude(float64(l) / f) }
func (l Longitude) Round(decimals int) Longitude { return Longitude(roundTo(float64(l), decimals)) }
func (l Longitude) Equal(b Longitude) bool { return sameValue(float64(l), float64(b)) }
func (l Longitude) EqualDecimals(b Longitude, decimals int) bool {
	return sameValueDecimals(float64(l), float64(b), decimals)
}

// Hemisphere returns 'E' or 'W'.
func (l Longitude) Hemisphere() rune {
	if l < 0 {
		return 'W'
	}
	return 'E'
}

// String formats the longitude as 104°59'4.9"W.
func (l Longitude) String() string {
	if l.IsInvalid() {
		return "NaN"
	}
	return formatDMS(float64(l)) + string(l.Hemisphere())
}

// ParseAngle parses decimal degrees or D M S text without hemisphere letters.
func ParseAngle(s string, loc Locale) (Angle, error) {
	v, err := parseDegrees(s, loc, "angle", "")
	return Angle(v), err
}

// ParseLatitude parses a latitude such as "39.7391", "-39 44 20.8",
// "39°44'20.8\"N" or "S 39.5".
func ParseLatitude(s string, loc Locale) (Latitude, error) {
	v, err := parseDegrees(s, loc, "latitude", "NS")
	return Latitude(v), err
}

// ParseLongitude parses a longitude such as "-104.9847" or "104°59'4.9\"W".
func ParseLongitude(s string, loc Locale) (Longitude, error) {
	v, err := parseDegrees(s, loc, "longitude", "EW")
	return Longitude(v), err
}

// ParseLatitudeOrInvalid is the lenient form of ParseLatitude.
func ParseLatitudeOrInvalid(s string, loc Locale) Latitude {
	l, err := ParseLatitude(s, loc)
	if err != nil {
		return InvalidLatitude
	}
	return l
}

// ParseLongitudeOrInvalid is the lenient form of ParseLongitude.
func ParseLongitudeOrInvalid(s string, loc Locale) Longitude {
	l, err := ParseLongitude(s, loc)
	if err != nil {
		return InvalidLongitude
	}
	return l
}

func isDMSSeparator(r rune) bool {
	switch r {
	case '°', 'º', '\'', '"', '′', '″', ':':
		return true
	}
	return unicode.IsSpace(r)
}

// parseDegrees decomposes s into an optional sign, an optional hemisphere
// letter at either end, and one to three numeric components.
func parseDegrees(s string, loc Locale, kind, hemispheres string) (float64, error) {
	fail := func(msg string) (float64, error) {
		return math.NaN(), &FormatError{Kind: kind, Input: s, Msg: msg}
	}

	text := strings.TrimSpace(s)
	if text == "" {
		return fail("empty input")
	}

	hemiSign := 0.0
	if hemispheres != "" {
		first, last := unicode.ToUpper(rune(text[0])), unicode.ToUpper(rune(text[len(text)-1]))
		switch {
		case strings.ContainsRune(hemispheres, last):
			hemiSign = hemisphereSign(last, hemispheres)
			text = strings.TrimSpace(text[:len(text)-1])
		case strings.ContainsRune(hemispheres, first):
			hemiSign = hemisphereSign(first, hemispheres)
			text = strings.TrimSpace(text[1:])
		}
	}

	negative := false
	if strings.HasPrefix(text, "-") {
		negative = true
		text = strings.TrimSpace(text[1:])
	} else if strings.HasPrefix(text, "+") {
		text = strings.TrimSpace(text[1:])
	}

	text = stripGroups(text, loc.Group)
	if loc.Decimal != 0 && loc.Decimal != '.' {
		text = strings.ReplaceAll(text, string(loc.Decimal), ".")
	}

	fields := strings.FieldsFunc(text, isDMSSeparator)
	if len(fields) == 0 || len(fields) > 3 {
		return fail("expected one to three numeric components")
	}

	parts := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fail(fmt.Sprintf("component %q is not a number", f))
		}
		parts[i] = v
	}

	value := parts[0]
	if len(parts) > 1 {
		if value != math.Trunc(value) {
			return fail("fractional degrees with minutes")
		}
		if parts[1] >= 60 {
			return fail("minutes out of range")
		}
		value += parts[1] / 60
	}
	if len(parts) > 2 {
		if parts[1] != math.Trunc(parts[1]) {
			return fail("fractional minutes with seconds")
		}
		if parts[2] >= 60 {
			return fail("seconds out of range")
		}
		value += parts[2] / 3600
	}

	switch {
	case hemiSign != 0:
		value *= hemiSign
	case negative:
		value = -value
	}
	return value, nil
}

// stripGroups drops group separators that sit between a digit and exactly
// three digits. Other occurrences are kept for the number parser to reject.
func stripGroups(text string, group rune) string {
	if group == 0 || !strings.ContainsRune(text, group) {
		return text
	}
	rs := []rune(text)
	var b strings.Builder
	for i, r := range rs {
		if r == group && i > 0 && unicode.IsDigit(rs[i-1]) && digitRun(rs[i+1:]) == 3 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func digitRun(rs []rune) int {
	n := 0
	for n < len(rs) && unicode.IsDigit(rs[n]) {
		n++
	}
	return n
}

func hemisphereSign(r rune, hemispheres string) float64 {
	if r == rune(hemispheres[1]) {
		return -1
	}
	return 1
}
