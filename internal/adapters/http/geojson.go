package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/meridian/internal/domain"
)

var errEmptyGeometry = errors.New("geometry has no coordinates")

// shapeGeometry converts a shape into an orb geometry. Polygon rings are
// grouped into polygons by winding: a clockwise ring starts a new polygon,
// counter-clockwise rings are holes of the polygon before them.
func shapeGeometry(s *domain.ShapeRange) orb.Geometry {
	if s == nil || s.NumParts() == 0 {
		return nil
	}

	switch s.FeatureType {
	case domain.FeaturePoint:
		var pts orb.MultiPoint
		for _, p := range s.Parts {
			pts = append(pts, partPoints(p)...)
		}
		if len(pts) == 1 {
			return pts[0]
		}
		return pts

	case domain.FeatureLine:
		lines := make(orb.MultiLineString, len(s.Parts))
		for i, p := range s.Parts {
			lines[i] = orb.LineString(partPoints(p))
		}
		if len(lines) == 1 {
			return lines[0]
		}
		return lines

	case domain.FeaturePolygon:
		var polys orb.MultiPolygon
		for _, p := range s.Parts {
			ring := orb.Ring(partPoints(p))
			if len(polys) == 0 || ring.Orientation() == orb.CW {
				polys = append(polys, orb.Polygon{ring})
				continue
			}
			last := len(polys) - 1
			polys[last] = append(polys[last], ring)
		}
		if len(polys) == 1 {
			return polys[0]
		}
		return polys
	}

	return nil
}

func partPoints(p domain.PartRange) []orb.Point {
	pts := make([]orb.Point, p.NumVertices)
	for i := range pts {
		v := p.Point(i)
		pts[i] = orb.Point{v.X, v.Y}
	}
	return pts
}

// geometryShape converts a GeoJSON geometry into a query shape over one
// freshly allocated vertex buffer.
func geometryShape(g orb.Geometry) (*domain.ShapeRange, error) {
	var (
		st    domain.ShapeType
		parts [][]orb.Point
	)

	switch g := g.(type) {
	case orb.Point:
		st, parts = domain.ShapePoint, [][]orb.Point{{g}}
	case orb.MultiPoint:
		st, parts = domain.ShapeMultiPoint, [][]orb.Point{g}
	case orb.LineString:
		st, parts = domain.ShapePolyLine, [][]orb.Point{g}
	case orb.MultiLineString:
		st = domain.ShapePolyLine
		for _, l := range g {
			parts = append(parts, l)
		}
	case orb.Polygon:
		st = domain.ShapePolygon
		for _, r := range g {
			parts = append(parts, closeRing(r))
		}
	case orb.MultiPolygon:
		st = domain.ShapePolygon
		for _, p := range g {
			for _, r := range p {
				parts = append(parts, closeRing(r))
			}
		}
	case orb.Bound:
		st, parts = domain.ShapePolygon, [][]orb.Point{closeRing(g.ToRing())}
	case nil:
		return nil, errEmptyGeometry
	default:
		return nil, fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	if n == 0 {
		return nil, errEmptyGeometry
	}

	buf := make([]float64, 0, 2*n)
	for _, p := range parts {
		for _, pt := range p {
			buf = append(buf, pt[0], pt[1])
		}
	}

	shape := domain.NewShapeRangeOfType(st)
	offset := 0
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		shape.AddPart(buf, offset, len(p))
		offset += len(p)
	}
	return shape, nil
}

func closeRing(r orb.Ring) []orb.Point {
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

// renderOptions trims features for a response.
type renderOptions struct {
	omitGeometry bool
	properties   []string // nil keeps every attribute
}

// featureGeoJSON renders a feature. The layer id is added as the _layer
// property and the record number becomes the feature id.
func featureGeoJSON(layerID string, f *domain.Feature, opts renderOptions) *geojson.Feature {
	var g orb.Geometry
	if !opts.omitGeometry {
		g = shapeGeometry(f.Range)
	}
	out := geojson.NewFeature(g)
	out.ID = f.ID
	for k, v := range f.Select(opts.properties) {
		out.Properties[k] = v
	}
	out.Properties["_layer"] = layerID
	if e := f.Extent(); !e.IsEmpty() {
		out.BBox = geojson.BBox{e.MinX(), e.MinY(), e.MaxX(), e.MaxY()}
	}
	return out
}

// resultsGeoJSON flattens per-layer results into one collection.
func resultsGeoJSON(results []domain.QueryResult, opts renderOptions) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range results {
		r := &results[i]
		for j := range r.Features {
			fc.Append(featureGeoJSON(r.LayerID, &r.Features[j], opts))
		}
	}
	return fc
}
