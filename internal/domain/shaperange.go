package domain

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// FeatureType is the geometric category of a shape.
type FeatureType int

const (
	FeatureUnspecified FeatureType = iota
	FeaturePoint
	FeatureLine
	FeaturePolygon
)

func (f FeatureType) String() string {
	switch f {
	case FeaturePoint:
		return "Point"
	case FeatureLine:
		return "Line"
	case FeaturePolygon:
		return "Polygon"
	}
	return "Unspecified"
}

// ParseFeatureType accepts the names returned by String, case-sensitively,
// plus the common GeoJSON spellings.
func ParseFeatureType(s string) FeatureType {
	switch s {
	case "Point", "MultiPoint", "point":
		return FeaturePoint
	case "Line", "LineString", "MultiLineString", "line":
		return FeatureLine
	case "Polygon", "MultiPolygon", "polygon":
		return FeaturePolygon
	}
	return FeatureUnspecified
}

// ShapeType is the shapefile geometry type code.
type ShapeType int

// Shapefile geometry codes.
const (
	ShapeNull        ShapeType = 0
	ShapePoint       ShapeType = 1
	ShapePolyLine    ShapeType = 3
	ShapePolygon     ShapeType = 5
	ShapeMultiPoint  ShapeType = 8
	ShapePointZ      ShapeType = 11
	ShapePolyLineZ   ShapeType = 13
	ShapePolygonZ    ShapeType = 15
	ShapeMultiPointZ ShapeType = 18
	ShapePointM      ShapeType = 21
	ShapePolyLineM   ShapeType = 23
	ShapePolygonM    ShapeType = 25
	ShapeMultiPointM ShapeType = 28
	ShapeMultiPatch  ShapeType = 31
)

// HasZ reports whether the type carries elevations.
func (t ShapeType) HasZ() bool {
	switch t {
	case ShapePointZ, ShapePolyLineZ, ShapePolygonZ, ShapeMultiPointZ, ShapeMultiPatch:
		return true
	}
	return false
}

// HasM reports whether the type carries measures. Z types always do.
func (t ShapeType) HasM() bool {
	switch t {
	case ShapePointM, ShapePolyLineM, ShapePolygonM, ShapeMultiPointM:
		return true
	}
	return t.HasZ()
}

// ExtentKind returns the extent representation the type requires.
func (t ShapeType) ExtentKind() ExtentKind {
	switch {
	case t.HasZ():
		return ExtentWithMZ
	case t.HasM():
		return ExtentWithM
	}
	return ExtentPlanar
}

// FeatureType maps the shape type to its geometric category.
func (t ShapeType) FeatureType() FeatureType {
	switch t {
	case ShapePoint, ShapePointZ, ShapePointM, ShapeMultiPoint, ShapeMultiPointZ, ShapeMultiPointM:
		return FeaturePoint
	case ShapePolyLine, ShapePolyLineZ, ShapePolyLineM:
		return FeatureLine
	case ShapePolygon, ShapePolygonZ, ShapePolygonM, ShapeMultiPatch:
		return FeaturePolygon
	}
	return FeatureUnspecified
}

func (t ShapeType) String() string {
	names := map[ShapeType]string{
		ShapeNull: "Null", ShapePoint: "Point", ShapePolyLine: "PolyLine", ShapePolygon: "Polygon",
		ShapeMultiPoint: "MultiPoint", ShapePointZ: "PointZ", ShapePolyLineZ: "PolyLineZ",
		ShapePolygonZ: "PolygonZ", ShapeMultiPointZ: "MultiPointZ", ShapePointM: "PointM",
		ShapePolyLineM: "PolyLineM", ShapePolygonM: "PolygonM", ShapeMultiPointM: "MultiPointM",
		ShapeMultiPatch: "MultiPatch",
	}
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("ShapeType(%d)", int(t))
}

// PartRange is one ring or line of a shape: a window of NumVertices
// vertices into a flat X/Y buffer that is shared with the other parts.
type PartRange struct {
	StartIndex  int // absolute vertex offset into the buffer
	PartOffset  int // vertex offset relative to the shape's StartIndex
	NumVertices int

	vertices []float64
}

// NewPartRange creates a part over vertices beginning partOffset vertices
// after shapeStart.
func NewPartRange(vertices []float64, shapeStart, partOffset, count int) PartRange {
	return PartRange{
		StartIndex:  shapeStart + partOffset,
		PartOffset:  partOffset,
		NumVertices: count,
		vertices:    vertices,
	}
}

// EndIndex is the absolute offset of the last vertex, inclusive.
func (p PartRange) EndIndex() int { return p.StartIndex + p.NumVertices - 1 }

// Contains reports whether the absolute vertex offset lies in
// [StartIndex, EndIndex].
func (p PartRange) Contains(offset int) bool {
	return offset >= p.StartIndex && offset <= p.EndIndex()
}

// Point returns the i-th vertex of the part.
func (p PartRange) Point(i int) r2.Point {
	k := 2 * (p.StartIndex + i)
	return r2.Point{X: p.vertices[k], Y: p.vertices[k+1]}
}

// Coordinates returns the part's window of the shared buffer. The slice
// aliases the buffer.
func (p PartRange) Coordinates() []float64 {
	return p.vertices[2*p.StartIndex : 2*(p.EndIndex()+1)]
}

// NumSegments returns the number of consecutive vertex pairs.
func (p PartRange) NumSegments() int {
	if p.NumVertices < 2 {
		return 0
	}
	return p.NumVertices - 1
}

// Segment returns the i-th edge.
func (p PartRange) Segment(i int) (a, b r2.Point) {
	return p.Point(i), p.Point(i + 1)
}

// IsClosed reports whether the first and last vertex coincide.
func (p PartRange) IsClosed() bool {
	if p.NumVertices < 2 {
		return false
	}
	return p.Point(0) == p.Point(p.NumVertices-1)
}

// Extent returns the part's planar bounding box.
func (p PartRange) Extent() Extent {
	e := EmptyExtent()
	for i := 0; i < p.NumVertices; i++ {
		pt := p.Point(i)
		e = e.ExpandToInclude(pt.X, pt.Y)
	}
	return e
}

// ShapeRange describes a shape's geometry as parts of a shared vertex
// buffer without materializing a geometry object.
type ShapeRange struct {
	FeatureType FeatureType
	StartIndex  int         // first vertex of the shape in the buffer
	Parts       []PartRange // in shapefile order
	M           []float64   // optional measures, indexed by absolute vertex
	Z           []float64   // optional elevations, indexed by absolute vertex

	shapeType ShapeType

	extent      Extent
	hasExtent   bool // extent holds a cached or explicit value
	extentFixed bool // extent was set explicitly and must not be recomputed

	numPoints    int
	hasNumPoints bool
}

// NewShapeRange creates an empty range of the given feature type.
func NewShapeRange(ft FeatureType) *ShapeRange {
	return &ShapeRange{FeatureType: ft}
}

// NewShapeRangeOfType creates an empty range for a shapefile type.
func NewShapeRangeOfType(st ShapeType) *ShapeRange {
	s := &ShapeRange{FeatureType: st.FeatureType()}
	s.SetShapeType(st)
	return s
}

// ShapeType returns the shapefile type tag.
func (s *ShapeRange) ShapeType() ShapeType { return s.shapeType }

// SetShapeType sets the type tag. When the tag carries M or Z ordinates the
// extent is upgraded in place, keeping its 2-D bounds.
func (s *ShapeRange) SetShapeType(t ShapeType) {
	s.shapeType = t
	if s.FeatureType == FeatureUnspecified {
		s.FeatureType = t.FeatureType()
	}
	if s.hasExtent {
		s.extent = s.extent.UpgradeTo(t.ExtentKind())
	}
}

// AddPart appends a part of count vertices starting partOffset vertices
// after the shape's StartIndex.
func (s *ShapeRange) AddPart(vertices []float64, partOffset, count int) {
	s.Parts = append(s.Parts, NewPartRange(vertices, s.StartIndex, partOffset, count))
	s.invalidateExtent()
}

func (s *ShapeRange) NumParts() int { return len(s.Parts) }

// NumPoints returns the overridden count when SetNumPoints was called and
// the sum of the part sizes otherwise.
func (s *ShapeRange) NumPoints() int {
	if s.hasNumPoints {
		return s.numPoints
	}
	n := 0
	for _, p := range s.Parts {
		n += p.NumVertices
	}
	return n
}

// SetNumPoints overrides the computed point count.
func (s *ShapeRange) SetNumPoints(n int) {
	s.numPoints, s.hasNumPoints = n, true
}

// Extent returns the cached extent, computing and caching it first when
// there is none.
func (s *ShapeRange) Extent() Extent {
	if s.hasExtent {
		return s.extent
	}
	s.extent = s.computeExtent()
	s.hasExtent = true
	return s.extent
}

// SetExtent fixes the extent. It is never recomputed afterwards.
func (s *ShapeRange) SetExtent(e Extent) {
	s.extent = e.UpgradeTo(s.shapeType.ExtentKind())
	s.hasExtent, s.extentFixed = true, true
}

// ExtentIsFixed reports whether the extent was set explicitly.
func (s *ShapeRange) ExtentIsFixed() bool { return s.extentFixed }

func (s *ShapeRange) invalidateExtent() {
	if !s.extentFixed {
		s.hasExtent = false
	}
}

func (s *ShapeRange) computeExtent() Extent {
	e := EmptyExtent().UpgradeTo(s.shapeType.ExtentKind())
	for _, p := range s.Parts {
		for i := 0; i < p.NumVertices; i++ {
			pt := p.Point(i)
			e = e.ExpandToInclude(pt.X, pt.Y)
			abs := p.StartIndex + i
			if abs < len(s.M) {
				e = e.ExpandToIncludeM(s.M[abs])
			}
			if abs < len(s.Z) {
				e = e.ExpandToIncludeZ(s.Z[abs])
			}
		}
	}
	return e
}

// SetVertices rebinds every part to buf.
func (s *ShapeRange) SetVertices(buf []float64) {
	for i := range s.Parts {
		s.Parts[i].vertices = buf
	}
	s.invalidateExtent()
}

// Vertices returns the shared buffer, or nil when there are no parts.
func (s *ShapeRange) Vertices() []float64 {
	if len(s.Parts) == 0 {
		return nil
	}
	return s.Parts[0].vertices
}

// Clone copies the scalar fields, the parts list and the extent. The vertex
// buffer and the M/Z arrays remain shared.
func (s *ShapeRange) Clone() *ShapeRange {
	c := *s
	c.Parts = append([]PartRange(nil), s.Parts...)
	return &c
}

// PartIndex returns the index of the part whose [StartIndex, EndIndex]
// range contains the absolute vertex offset, or -1.
func (s *ShapeRange) PartIndex(offset int) int {
	for i, p := range s.Parts {
		if p.Contains(offset) {
			return i
		}
	}
	return -1
}

// Intersects reports whether s and o share at least one point.
func (s *ShapeRange) Intersects(o *ShapeRange) bool {
	return Intersects(s, o)
}
