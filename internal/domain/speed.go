package domain

import (
	"fmt"
	"strings"
	"time"
)

// SpeedUnit identifies the unit of a Speed.
type SpeedUnit int

// Supported speed units.
const (
	MetersPerSecond SpeedUnit = iota
	KilometersPerHour
	StatuteMilesPerHour
	Knots
	FeetPerSecond
)

var speedUnits = [...]struct {
	symbol string
	toMPS  float64
}{
	MetersPerSecond:     {"m/s", 1},
	KilometersPerHour:   {"km/h", 1000.0 / 3600},
	StatuteMilesPerHour: {"mph", 1609.344 / 3600},
	Knots:               {"kn", 1852.0 / 3600},
	FeetPerSecond:       {"ft/s", 0.3048},
}

// MinimumTimeSpan is the shortest interval a speed can be derived from.
const MinimumTimeSpan = time.Millisecond

func (u SpeedUnit) String() string {
	if u < 0 || int(u) >= len(speedUnits) {
		return fmt.Sprintf("SpeedUnit(%d)", int(u))
	}
	return speedUnits[u].symbol
}

// ParseSpeedUnit accepts m/s, km/h, mph, kn (or knots) and ft/s.
func ParseSpeedUnit(s string) (SpeedUnit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, u := range speedUnits {
		if key == u.symbol {
			return SpeedUnit(i), nil
		}
	}
	switch key {
	case "knots", "kt", "kts":
		return Knots, nil
	case "kph", "kmh":
		return KilometersPerHour, nil
	case "mps":
		return MetersPerSecond, nil
	}
	return MetersPerSecond, &ValidationError{
		Field:      "speed_unit",
		Value:      s,
		Constraint: "m/s|km/h|mph|kn|ft/s",
		Message:    "unknown speed unit",
	}
}

// Speed is a rate of travel with a unit tag.
type Speed struct {
	Value float64
	Unit  SpeedUnit
}

// NewSpeed builds a speed in the given unit.
func NewSpeed(v float64, u SpeedUnit) Speed { return Speed{Value: v, Unit: u} }

// SpeedFromDistance derives the speed needed to cover d in dt. Intervals
// shorter than MinimumTimeSpan are rejected.
func SpeedFromDistance(d Distance, dt time.Duration) (Speed, error) {
	if dt < MinimumTimeSpan {
		return Speed{}, ErrTimeSpanTooSmall
	}
	return Speed{Value: d.ToMeters() / dt.Seconds(), Unit: MetersPerSecond}, nil
}

// ToMetersPerSecond returns the speed in m/s.
func (s Speed) ToMetersPerSecond() float64 {
	return s.Value * speedUnits[s.Unit].toMPS
}

// ToUnit converts s into unit u.
func (s Speed) ToUnit(u SpeedUnit) Speed {
	if s.Unit == u {
		return s
	}
	return Speed{Value: s.ToMetersPerSecond() / speedUnits[u].toMPS, Unit: u}
}

// DistanceIn returns the distance covered at s during dt.
func (s Speed) DistanceIn(dt time.Duration) Distance {
	return MetersDistance(s.ToMetersPerSecond() * dt.Seconds())
}

func (s Speed) IsEmpty() bool { return s.Value == 0 }

func (s Speed) String() string {
	return fmt.Sprintf("%g %s", s.Value, s.Unit)
}
