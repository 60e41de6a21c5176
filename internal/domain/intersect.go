package domain

import (
	"math"

	"github.com/golang/geo/r2"
)

// Epsilon is the tolerance for coincident points and collinearity.
const Epsilon = 1e-12

// Intersects reports whether the geometries of a and b share a point. The
// bounding extents are compared first; the per-type tests run only when
// they overlap.
func Intersects(a, b *ShapeRange) bool {
	if a == nil || b == nil || len(a.Parts) == 0 || len(b.Parts) == 0 {
		return false
	}
	if !a.Extent().Intersects(b.Extent()) {
		return false
	}

	// Order the pair so that a has the lower-dimensional type.
	if a.FeatureType > b.FeatureType {
		a, b = b, a
	}

	switch a.FeatureType {
	case FeaturePoint:
		switch b.FeatureType {
		case FeaturePoint:
			return pointsCoincide(a, b)
		case FeatureLine:
			return anyPoint(a, func(p r2.Point) bool { return pointOnLines(p, b) })
		case FeaturePolygon:
			return anyPoint(a, func(p r2.Point) bool { return pointInPolygon(p, b) })
		}
	case FeatureLine:
		switch b.FeatureType {
		case FeatureLine:
			return edgesCross(a, b)
		case FeaturePolygon:
			return edgesCross(a, b) || anyPoint(a, func(p r2.Point) bool { return pointInPolygon(p, b) })
		}
	case FeaturePolygon:
		return edgesCross(a, b) ||
			anyPoint(a, func(p r2.Point) bool { return pointInPolygon(p, b) }) ||
			anyPoint(b, func(p r2.Point) bool { return pointInPolygon(p, a) })
	}
	return false
}

// ContainsPoint reports whether (x, y) lies on or inside s.
func (s *ShapeRange) ContainsPoint(x, y float64) bool {
	p := r2.Point{X: x, Y: y}
	if len(s.Parts) == 0 || !s.Extent().Contains(x, y) {
		return false
	}
	switch s.FeatureType {
	case FeaturePoint:
		return anyPoint(s, func(q r2.Point) bool { return coincide(p, q) })
	case FeatureLine:
		return pointOnLines(p, s)
	case FeaturePolygon:
		return pointInPolygon(p, s)
	}
	return false
}

func anyPoint(s *ShapeRange, fn func(r2.Point) bool) bool {
	for _, part := range s.Parts {
		for i := 0; i < part.NumVertices; i++ {
			if fn(part.Point(i)) {
				return true
			}
		}
	}
	return false
}

func coincide(p, q r2.Point) bool {
	return math.Abs(p.X-q.X) <= Epsilon && math.Abs(p.Y-q.Y) <= Epsilon
}

func pointsCoincide(a, b *ShapeRange) bool {
	return anyPoint(a, func(p r2.Point) bool {
		return anyPoint(b, func(q r2.Point) bool { return coincide(p, q) })
	})
}

func pointOnLines(p r2.Point, s *ShapeRange) bool {
	for _, part := range s.Parts {
		if part.NumVertices == 1 && coincide(p, part.Point(0)) {
			return true
		}
		for i := 0; i < part.NumSegments(); i++ {
			a, b := part.Segment(i)
			if math.Abs(orientation(a, b, p)) <= Epsilon && withinBox(a, b, p) {
				return true
			}
		}
	}
	return false
}

// pointInPolygon applies the even-odd ray crossing rule over every ring, so
// holes are excluded. Points on a ring boundary count as inside.
func pointInPolygon(p r2.Point, s *ShapeRange) bool {
	inside := false
	for _, ring := range s.Parts {
		n := ring.NumVertices
		if n < 3 {
			continue
		}
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			vi, vj := ring.Point(i), ring.Point(j)
			if math.Abs(orientation(vj, vi, p)) <= Epsilon && withinBox(vj, vi, p) {
				return true
			}
			if (vi.Y > p.Y) != (vj.Y > p.Y) &&
				p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
				inside = !inside
			}
		}
	}
	return inside
}

func edgesCross(a, b *ShapeRange) bool {
	for _, pa := range a.Parts {
		for i := 0; i < pa.NumSegments(); i++ {
			a1, a2 := pa.Segment(i)
			for _, pb := range b.Parts {
				for j := 0; j < pb.NumSegments(); j++ {
					b1, b2 := pb.Segment(j)
					if segmentsIntersect(a1, a2, b1, b2) {
						return true
					}
				}
			}
		}
	}
	return false
}

// orientation is twice the signed area of the triangle abc.
func orientation(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

func withinBox(a, b, p r2.Point) bool {
	return p.X >= math.Min(a.X, b.X)-Epsilon && p.X <= math.Max(a.X, b.X)+Epsilon &&
		p.Y >= math.Min(a.Y, b.Y)-Epsilon && p.Y <= math.Max(a.Y, b.Y)+Epsilon
}

func segmentsIntersect(p1, p2, p3, p4 r2.Point) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)

	if ((d1 > Epsilon && d2 < -Epsilon) || (d1 < -Epsilon && d2 > Epsilon)) &&
		((d3 > Epsilon && d4 < -Epsilon) || (d3 < -Epsilon && d4 > Epsilon)) {
		return true
	}

	switch {
	case math.Abs(d1) <= Epsilon && withinBox(p3, p4, p1):
		return true
	case math.Abs(d2) <= Epsilon && withinBox(p3, p4, p2):
		return true
	case math.Abs(d3) <= Epsilon && withinBox(p1, p2, p3):
		return true
	case math.Abs(d4) <= Epsilon && withinBox(p1, p2, p4):
		return true
	}
	return false
}
