package domain

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedBuffer holds twelve vertices. The shape under test starts at
// vertex 2 and owns three parts: vertices 2-4, 5-8 and 9.
func sharedBuffer() []float64 {
	return []float64{
		-50, -50, -40, -40, // vertices 0-1 belong to another shape
		0, 0, 1, 0, 1, 1, // part 0
		10, 10, 12, 10, 12, 12, 10, 10, // part 1 (closed)
		-3, 7, // part 2
		99, 99, 98, 98, // vertices 10-11 belong to another shape
	}
}

func threePartShape() *ShapeRange {
	buf := sharedBuffer()
	s := NewShapeRangeOfType(ShapePolyLine)
	s.StartIndex = 2
	s.AddPart(buf, 0, 3)
	s.AddPart(buf, 3, 4)
	s.AddPart(buf, 7, 1)
	return s
}

func TestPartRangeIndexes(t *testing.T) {
	s := threePartShape()
	require.Equal(t, 3, s.NumParts())

	p := s.Parts[1]
	assert.Equal(t, 5, p.StartIndex)
	assert.Equal(t, 3, p.PartOffset)
	assert.Equal(t, 8, p.EndIndex())
	assert.True(t, p.IsClosed())
	assert.Equal(t, 3, p.NumSegments())
	assert.Equal(t, []float64{10, 10, 12, 10, 12, 12, 10, 10}, p.Coordinates())
	assert.Equal(t, r2.Point{X: 12, Y: 12}, p.Point(2))

	a, b := p.Segment(0)
	assert.Equal(t, r2.Point{X: 10, Y: 10}, a)
	assert.Equal(t, r2.Point{X: 12, Y: 10}, b)

	single := s.Parts[2]
	assert.Equal(t, single.StartIndex, single.EndIndex())
	assert.Zero(t, single.NumSegments())
	assert.False(t, single.IsClosed())
}

func TestPartIndex(t *testing.T) {
	s := threePartShape()
	tests := []struct {
		offset int
		want   int
	}{
		{0, -1},
		{1, -1},
		{2, 0},
		{4, 0},
		{5, 1},
		{8, 1},
		{9, 2},
		{10, -1},
		{-1, -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.PartIndex(tt.offset), "offset %d", tt.offset)
	}
}

func TestNumPoints(t *testing.T) {
	s := threePartShape()
	assert.Equal(t, 8, s.NumPoints())

	s.SetNumPoints(20)
	assert.Equal(t, 20, s.NumPoints())

	s.AddPart(sharedBuffer(), 8, 2)
	assert.Equal(t, 20, s.NumPoints(), "override survives new parts")
}

func TestShapeRangeExtentIsCachedAndInvalidated(t *testing.T) {
	s := threePartShape()
	e := s.Extent()
	assert.Equal(t, NewExtent(-3, 0, 12, 12).XY, e.XY)
	assert.False(t, s.ExtentIsFixed())

	// Adding a part drops the cached extent.
	s.AddPart(sharedBuffer(), 8, 2)
	assert.Equal(t, NewExtent(-3, 0, 99, 99).XY, s.Extent().XY)

	// Rebinding the buffer drops it too.
	moved := sharedBuffer()
	for i := range moved {
		moved[i] += 100
	}
	s.SetVertices(moved)
	assert.Equal(t, NewExtent(97, 100, 199, 199).XY, s.Extent().XY)
	assert.Equal(t, moved, s.Vertices())
}

func TestShapeRangeFixedExtent(t *testing.T) {
	s := threePartShape()
	fixed := NewExtent(-1000, -1000, 1000, 1000)
	s.SetExtent(fixed)
	assert.True(t, s.ExtentIsFixed())

	s.AddPart(sharedBuffer(), 8, 2)
	s.SetVertices(sharedBuffer())
	assert.Equal(t, fixed.XY, s.Extent().XY)
}

func TestShapeRangeMeasuresAndElevations(t *testing.T) {
	buf := sharedBuffer()
	s := NewShapeRangeOfType(ShapePolyLineZ)
	s.StartIndex = 2
	s.AddPart(buf, 0, 3)
	s.M = []float64{100, 100, 1, 2, 3}
	s.Z = []float64{-9, -9, 50, 40, 60}

	e := s.Extent()
	require.Equal(t, ExtentWithMZ, e.Kind)
	assert.Equal(t, 1.0, e.M.Lo)
	assert.Equal(t, 3.0, e.M.Hi)
	assert.Equal(t, 40.0, e.Z.Lo)
	assert.Equal(t, 60.0, e.Z.Hi)
}

func TestSetShapeTypeUpgradesExtent(t *testing.T) {
	s := threePartShape()
	before := s.Extent()
	require.Equal(t, ExtentPlanar, before.Kind)

	s.SetShapeType(ShapePolyLineM)
	after := s.Extent()
	assert.Equal(t, ExtentWithM, after.Kind)
	assert.Equal(t, before.XY, after.XY)
	assert.Equal(t, ShapePolyLineM, s.ShapeType())
	assert.Equal(t, FeatureLine, s.FeatureType)
}

func TestShapeRangeClone(t *testing.T) {
	s := threePartShape()
	s.SetNumPoints(5)
	c := s.Clone()

	assert.Equal(t, s.Extent(), c.Extent())
	assert.Equal(t, 5, c.NumPoints())

	c.AddPart(sharedBuffer(), 8, 2)
	assert.Equal(t, 3, s.NumParts(), "clone parts are independent")
	assert.Equal(t, 4, c.NumParts())

	// The vertex buffer is shared.
	c.Parts[0].Coordinates()[0] = 42
	assert.Equal(t, 42.0, s.Parts[0].Point(0).X)
}

func TestShapeTypes(t *testing.T) {
	tests := []struct {
		st   ShapeType
		ft   FeatureType
		kind ExtentKind
		name string
	}{
		{ShapePoint, FeaturePoint, ExtentPlanar, "Point"},
		{ShapeMultiPointM, FeaturePoint, ExtentWithM, "MultiPointM"},
		{ShapePolyLine, FeatureLine, ExtentPlanar, "PolyLine"},
		{ShapePolyLineZ, FeatureLine, ExtentWithMZ, "PolyLineZ"},
		{ShapePolygonM, FeaturePolygon, ExtentWithM, "PolygonM"},
		{ShapeMultiPatch, FeaturePolygon, ExtentWithMZ, "MultiPatch"},
		{ShapeNull, FeatureUnspecified, ExtentPlanar, "Null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ft, tt.st.FeatureType())
			assert.Equal(t, tt.kind, tt.st.ExtentKind())
			assert.Equal(t, tt.name, tt.st.String())
		})
	}
	assert.Equal(t, "ShapeType(99)", ShapeType(99).String())
}

func TestParseFeatureType(t *testing.T) {
	assert.Equal(t, FeaturePoint, ParseFeatureType("MultiPoint"))
	assert.Equal(t, FeatureLine, ParseFeatureType("LineString"))
	assert.Equal(t, FeaturePolygon, ParseFeatureType(FeaturePolygon.String()))
	assert.Equal(t, FeatureUnspecified, ParseFeatureType("Curve"))
}
