package domain

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

// shape builds a range whose parts are laid out back to back in one buffer.
func shape(ft FeatureType, parts ...[]float64) *ShapeRange {
	var buf []float64
	for _, p := range parts {
		buf = append(buf, p...)
	}
	s := NewShapeRange(ft)
	offset := 0
	for _, p := range parts {
		s.AddPart(buf, offset, len(p)/2)
		offset += len(p) / 2
	}
	return s
}

func square(minX, minY, maxX, maxY float64) []float64 {
	return []float64{minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY}
}

func TestIntersects(t *testing.T) {
	donut := shape(FeaturePolygon, square(0, 0, 10, 10), square(3, 3, 6, 6))

	tests := []struct {
		name string
		a, b *ShapeRange
		want bool
	}{
		{"coincident points", shape(FeaturePoint, []float64{1, 1}), shape(FeaturePoint, []float64{1, 1}), true},
		{"distinct points", shape(FeaturePoint, []float64{1, 1}), shape(FeaturePoint, []float64{1, 1.5}), false},
		{"multipoint shares one point", shape(FeaturePoint, []float64{0, 0, 5, 5, 9, 9}), shape(FeaturePoint, []float64{5, 5}), true},
		{"point on line", shape(FeaturePoint, []float64{1, 1}), shape(FeatureLine, []float64{0, 0, 2, 2}), true},
		{"point off line", shape(FeaturePoint, []float64{1, 1.1}), shape(FeatureLine, []float64{0, 0, 2, 2}), false},
		{"point in polygon", shape(FeaturePoint, []float64{1, 1}), donut, true},
		{"point in hole", shape(FeaturePoint, []float64{4, 4}), donut, false},
		{"point on hole boundary", shape(FeaturePoint, []float64{3, 4}), donut, true},
		{"point on outer boundary", shape(FeaturePoint, []float64{10, 5}), donut, true},
		{"crossing lines", shape(FeatureLine, []float64{0, 0, 2, 2}), shape(FeatureLine, []float64{0, 2, 2, 0}), true},
		{"lines touching at an end", shape(FeatureLine, []float64{0, 0, 1, 0}), shape(FeatureLine, []float64{1, 0, 2, 0}), true},
		{"parallel lines", shape(FeatureLine, []float64{0, 0, 2, 2}), shape(FeatureLine, []float64{0, 1, 2, 3}), false},
		{"line crossing polygon", shape(FeatureLine, []float64{-5, 1, 5, 1}), donut, true},
		{"line inside polygon", shape(FeatureLine, []float64{1, 1, 2, 1.5}), donut, true},
		{"line inside hole", shape(FeatureLine, []float64{3.5, 3.5, 5, 5}), donut, false},
		{"polygon inside polygon", shape(FeaturePolygon, square(1, 1, 2, 2)), donut, true},
		{"polygon containing polygon", shape(FeaturePolygon, square(-1, -1, 20, 20)), donut, true},
		{"overlapping polygons", shape(FeaturePolygon, square(8, 8, 12, 12)), donut, true},
		{
			"disjoint triangles with overlapping boxes",
			shape(FeaturePolygon, []float64{0, 0, 4, 0, 0, 4, 0, 0}),
			shape(FeaturePolygon, []float64{4, 4, 4, 1, 1, 4, 4, 4}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersects(tt.a, tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(tt.a), "intersection should be symmetric")
		})
	}
}

func TestIntersectsRejectsOnExtentFirst(t *testing.T) {
	a := shape(FeaturePoint, []float64{1, 1})
	b := shape(FeaturePoint, []float64{1, 1})
	assert.True(t, Intersects(a, b))

	// A fixed extent that disagrees with the geometry wins.
	b.SetExtent(NewExtent(50, 50, 60, 60))
	assert.False(t, Intersects(a, b))
}

func TestIntersectsEmptyInputs(t *testing.T) {
	p := shape(FeaturePoint, []float64{1, 1})
	assert.False(t, Intersects(nil, p))
	assert.False(t, Intersects(p, nil))
	assert.False(t, Intersects(NewShapeRange(FeaturePolygon), p))
}

func TestContainsPoint(t *testing.T) {
	donut := shape(FeaturePolygon, square(0, 0, 10, 10), square(3, 3, 6, 6))
	assert.True(t, donut.ContainsPoint(1, 1))
	assert.False(t, donut.ContainsPoint(4.5, 4.5))
	assert.True(t, donut.ContainsPoint(0, 0))
	assert.False(t, donut.ContainsPoint(11, 5))

	line := shape(FeatureLine, []float64{0, 0, 10, 0, 10, 10})
	assert.True(t, line.ContainsPoint(10, 5))
	assert.False(t, line.ContainsPoint(5, 5))

	pts := shape(FeaturePoint, []float64{2, 3, 4, 5})
	assert.True(t, pts.ContainsPoint(4, 5))
	assert.False(t, pts.ContainsPoint(3, 4))
}

func TestOrientation(t *testing.T) {
	pt := func(x, y float64) r2.Point { return r2.Point{X: x, Y: y} }

	assert.Greater(t, orientation(pt(0, 0), pt(1, 0), pt(0, 1)), 0.0, "counter-clockwise turn is positive")
	assert.Less(t, orientation(pt(0, 0), pt(0, 1), pt(1, 0)), 0.0)
	assert.Zero(t, orientation(pt(0, 0), pt(1, 1), pt(2, 2)))
}
