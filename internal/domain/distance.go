package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DistanceUnit identifies the unit a Distance value is expressed in.
type DistanceUnit int

// Supported units.
const (
	Meters DistanceUnit = iota
	Centimeters
	Kilometers
	Inches
	Feet
	StatuteMiles
	NauticalMiles
)

var distanceUnits = [...]struct {
	name    string
	symbol  string
	toMeter float64
}{
	Meters:        {"meters", "m", 1},
	Centimeters:   {"centimeters", "cm", 0.01},
	Kilometers:    {"kilometers", "km", 1000},
	Inches:        {"inches", "in", 0.0254},
	Feet:          {"feet", "ft", 0.3048},
	StatuteMiles:  {"statute_miles", "mi", 1609.344},
	NauticalMiles: {"nautical_miles", "nmi", 1852},
}

// String returns the unit name.
func (u DistanceUnit) String() string {
	if u < 0 || int(u) >= len(distanceUnits) {
		return fmt.Sprintf("DistanceUnit(%d)", int(u))
	}
	return distanceUnits[u].name
}

// Symbol returns the short unit symbol.
func (u DistanceUnit) Symbol() string {
	if u < 0 || int(u) >= len(distanceUnits) {
		return "?"
	}
	return distanceUnits[u].symbol
}

// ParseDistanceUnit accepts a unit name or symbol.
func ParseDistanceUnit(s string) (DistanceUnit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, u := range distanceUnits {
		if key == u.name || key == u.symbol {
			return DistanceUnit(i), nil
		}
	}
	switch key {
	case "", "meter", "metre", "metres":
		return Meters, nil
	case "kilometer", "kilometre":
		return Kilometers, nil
	case "miles", "mile":
		return StatuteMiles, nil
	case "nm", "nautical":
		return NauticalMiles, nil
	}
	return Meters, &ValidationError{
		Field:      "unit",
		Value:      s,
		Constraint: "m|cm|km|in|ft|mi|nmi",
		Message:    "unknown distance unit",
	}
}

// Distance is a length with a unit tag.
type Distance struct {
	Value float64
	Unit  DistanceUnit
}

// EmptyDistance is zero meters.
var EmptyDistance = Distance{}

// InvalidDistance is the NaN backed sentinel.
var InvalidDistance = Distance{Value: math.NaN()}

// NewDistance builds a distance in the given unit.
func NewDistance(v float64, u DistanceUnit) Distance {
	return Distance{Value: v, Unit: u}
}

// MetersDistance is a shorthand for NewDistance(v, Meters).
func MetersDistance(v float64) Distance { return Distance{Value: v, Unit: Meters} }

// KilometersDistance is a shorthand for NewDistance(v, Kilometers).
func KilometersDistance(v float64) Distance { return Distance{Value: v, Unit: Kilometers} }

// ToMeters returns the distance in meters.
func (d Distance) ToMeters() float64 {
	return d.Value * distanceUnits[d.Unit].toMeter
}

// ToUnit converts d into unit u.
func (d Distance) ToUnit(u DistanceUnit) Distance {
	if d.Unit == u {
		return d
	}
	return Distance{Value: d.ToMeters() / distanceUnits[u].toMeter, Unit: u}
}

// Add returns d + o expressed in d's unit.
func (d Distance) Add(o Distance) Distance {
	return Distance{Value: d.Value + o.ToUnit(d.Unit).Value, Unit: d.Unit}
}

// Subtract returns d - o expressed in d's unit.
func (d Distance) Subtract(o Distance) Distance {
	return Distance{Value: d.Value - o.ToUnit(d.Unit).Value, Unit: d.Unit}
}

func (d Distance) IsEmpty() bool { return d.Value == 0 }
func (d Distance) IsInvalid() bool { return math.IsNaN(d.Value) }

// Round rounds the value to the given number of decimal digits.
func (d Distance) Round(decimals int) Distance {
	return Distance{Value: roundTo(d.Value, decimals), Unit: d.Unit}
}

// Equal compares two distances in meters.
func (d Distance) Equal(o Distance) bool {
	return sameValue(d.ToMeters(), o.ToMeters())
}

// EqualDecimals compares two distances in d's unit after rounding.
func (d Distance) EqualDecimals(o Distance, decimals int) bool {
	return sameValueDecimals(d.Value, o.ToUnit(d.Unit).Value, decimals)
}

// TimeAt returns how long it takes to cover d at speed s.
func (d Distance) TimeAt(s Speed) (time.Duration, error) {
	mps := s.ToMetersPerSecond()
	if !(mps > 0) {
		return 0, ErrNonPositiveSpeed
	}
	return time.Duration(d.ToMeters() / mps * float64(time.Second)), nil
}

func (d Distance) String() string {
	return fmt.Sprintf("%g %s", d.Value, d.Unit.Symbol())
}
