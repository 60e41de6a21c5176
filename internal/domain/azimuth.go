package domain

import "math"

// Azimuth is a bearing in decimal degrees clockwise from true north.
type Azimuth float64

// EmptyAzimuth is returned for bearings between identical positions.
const EmptyAzimuth Azimuth = 0

// InvalidAzimuth is the NaN backed sentinel.
var InvalidAzimuth = Azimuth(math.NaN())

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// AzimuthFromRadians builds an azimuth from a radian value.
func AzimuthFromRadians(rad float64) Azimuth { return Azimuth(fromRadians(rad)) }

func (a Azimuth) Degrees() float64 { return float64(a) }
func (a Azimuth) Radians() float64 { return toRadians(float64(a)) }
func (a Azimuth) IsEmpty() bool { return a == EmptyAzimuth }
func (a Azimuth) IsInvalid() bool { return math.IsNaN(float64(a)) }

// Normalize wraps a into [0, 360).
func (a Azimuth) Normalize() Azimuth {
	if a.IsInvalid() {
		return a
	}
	return Azimuth(wrap360(float64(a)))
}

// Mirror returns the opposite bearing.
func (a Azimuth) Mirror() Azimuth {
	return (a + 180).Normalize()
}

func (a Azimuth) Add(b Azimuth) Azimuth { return a + b }

func (a Azimuth) Subtract(b Azimuth) Azimuth { return a - b }

func (a Azimuth) Round(decimals int) Azimuth {
	return Azimuth(roundTo(float64(a), decimals))
}

func (a Azimuth) Equal(b Azimuth) bool { return sameValue(float64(a), float64(b)) }

func (a Azimuth) EqualDecimals(b Azimuth, decimals int) bool {
	return sameValueDecimals(float64(a), float64(b), decimals)
}

// Direction returns the nearest of the 16 compass points.
func (a Azimuth) Direction() string {
	if a.IsInvalid() {
		return ""
	}
	i := int(math.Floor(float64(a.Normalize())/22.5+0.5)) % 16
	return compassPoints[i]
}

// String formats the azimuth in degrees, minutes and seconds.
func (a Azimuth) String() string {
	if a.IsInvalid() {
		return "NaN"
	}
	return formatDMS(float64(a))
}
