package domain

import (
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// ExtentKind tags which auxiliary ordinates an Extent tracks.
type ExtentKind int

const (
	ExtentPlanar ExtentKind = iota // X/Y only
	ExtentWithM                    // X/Y plus a measure range
	ExtentWithMZ                   // X/Y plus measure and elevation ranges
)

func (k ExtentKind) String() string {
	switch k {
	case ExtentPlanar:
		return "planar"
	case ExtentWithM:
		return "m"
	case ExtentWithMZ:
		return "mz"
	}
	return fmt.Sprintf("ExtentKind(%d)", int(k))
}

// Extent is an axis-aligned bounding box. M and Z are only meaningful when
// Kind says so.
type Extent struct {
	Kind ExtentKind
	XY   r2.Rect
	M    r1.Interval
	Z    r1.Interval
}

// EmptyExtent returns a planar extent containing no points.
func EmptyExtent() Extent {
	return Extent{XY: r2.EmptyRect(), M: r1.EmptyInterval(), Z: r1.EmptyInterval()}
}

// NewExtent builds a planar extent from its corners.
func NewExtent(minX, minY, maxX, maxY float64) Extent {
	return Extent{
		XY: r2.RectFromPoints(r2.Point{X: minX, Y: minY}, r2.Point{X: maxX, Y: maxY}),
		M:  r1.EmptyInterval(),
		Z:  r1.EmptyInterval(),
	}
}

// UpgradeTo returns e widened to track the auxiliary ordinates of kind.
// The 2-D bounds and any existing M range are carried over. Asking for a
// kind e already covers returns e unchanged.
func (e Extent) UpgradeTo(kind ExtentKind) Extent {
	if kind <= e.Kind {
		return e
	}
	out := Extent{Kind: kind, XY: e.XY, M: r1.EmptyInterval(), Z: r1.EmptyInterval()}
	if e.Kind >= ExtentWithM {
		out.M = e.M
	}
	return out
}

func (e Extent) IsEmpty() bool { return e.XY.IsEmpty() }
func (e Extent) MinX() float64 { return e.XY.X.Lo }
func (e Extent) MinY() float64 { return e.XY.Y.Lo }
func (e Extent) MaxX() float64 { return e.XY.X.Hi }
func (e Extent) MaxY() float64 { return e.XY.Y.Hi }
func (e Extent) Width() float64 { return e.XY.X.Length() }
func (e Extent) Height() float64 { return e.XY.Y.Length() }

// Center returns the midpoint of the 2-D box.
func (e Extent) Center() (x, y float64) {
	c := e.XY.Center()
	return c.X, c.Y
}

// HasM reports whether e tracks a measure range.
func (e Extent) HasM() bool { return e.Kind >= ExtentWithM }

// HasZ reports whether e tracks an elevation range.
func (e Extent) HasZ() bool { return e.Kind == ExtentWithMZ }

// Intersects reports whether the 2-D boxes share at least one point.
// Touching edges count.
func (e Extent) Intersects(o Extent) bool {
	return e.XY.Intersects(o.XY)
}

// Contains reports whether (x, y) lies inside or on the box.
func (e Extent) Contains(x, y float64) bool {
	return e.XY.ContainsPoint(r2.Point{X: x, Y: y})
}

// ExpandToInclude returns e grown to contain (x, y).
func (e Extent) ExpandToInclude(x, y float64) Extent {
	e.XY = e.XY.AddPoint(r2.Point{X: x, Y: y})
	return e
}

// ExpandToIncludeM returns e grown to contain the measure m. Planar extents
// are returned unchanged.
func (e Extent) ExpandToIncludeM(m float64) Extent {
	if e.HasM() {
		e.M = e.M.AddPoint(m)
	}
	return e
}

// ExpandToIncludeZ returns e grown to contain the elevation z.
func (e Extent) ExpandToIncludeZ(z float64) Extent {
	if e.HasZ() {
		e.Z = e.Z.AddPoint(z)
	}
	return e
}

// Union returns the smallest extent containing e and o, of the richer kind.
func (e Extent) Union(o Extent) Extent {
	kind := e.Kind
	if o.Kind > kind {
		kind = o.Kind
	}
	a, b := e.UpgradeTo(kind), o.UpgradeTo(kind)
	a.XY = a.XY.Union(b.XY)
	a.M = a.M.Union(b.M)
	a.Z = a.Z.Union(b.Z)
	return a
}

// Buffer returns e grown by d on every side.
func (e Extent) Buffer(d float64) Extent {
	if e.IsEmpty() {
		return e
	}
	e.XY = e.XY.ExpandedByMargin(d)
	return e
}

func (e Extent) String() string {
	if e.IsEmpty() {
		return "EMPTY"
	}
	return fmt.Sprintf("BOX(%g %g, %g %g)", e.MinX(), e.MinY(), e.MaxX(), e.MaxY())
}
