// Package shapefile reads ESRI shapefiles into shape ranges over a shared
// vertex buffer.
package shapefile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/spf13/cast"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// checkEvery is the number of records read between context checks.
const checkEvery = 1000

// Reader implements the ShapeReader port using go-shp.
type Reader struct {
	transformer output.CoordinateTransformer
	defaultSRID int
	logger      *slog.Logger
}

// NewReader creates a shapefile reader. defaultSRID applies to files
// without a usable .prj.
func NewReader(transformer output.CoordinateTransformer, defaultSRID int, logger *slog.Logger) *Reader {
	if defaultSRID == 0 {
		defaultSRID = domain.SRIDWGS84
	}
	return &Reader{
		transformer: transformer,
		defaultSRID: defaultSRID,
		logger:      logger,
	}
}

// layerBuffer collects the vertices of all shapes of a layer. Shape ranges
// are bound to the final buffer once reading is complete, since appending
// may move it.
type layerBuffer struct {
	xy   []float64
	m    []float64
	z    []float64
	hasM bool
	hasZ bool
}

func (b *layerBuffer) vertexCount() int { return len(b.xy) / 2 }

// Read parses the .shp at path together with its .dbf and .prj siblings.
func (r *Reader) Read(ctx context.Context, path string) (*domain.Layer, []domain.Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, nil, &domain.ShapefileError{Path: path, Record: -1, Err: fmt.Errorf("%w: %v", domain.ErrShapefileRead, err)}
	}
	defer func() { _ = reader.Close() }()

	srid, ok := readPRJ(path)
	if !ok {
		srid = r.defaultSRID
	}
	project, err := r.transformer.ToWGS84(srid)
	if err != nil {
		return nil, nil, &domain.ShapefileError{Path: path, Record: -1, Err: err}
	}

	shapeType := domain.ShapeType(reader.GeometryType)
	layer := &domain.Layer{
		Name:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:       path,
		ShapeType:  shapeType,
		SourceSRID: srid,
		Extent:     domain.EmptyExtent(),
	}
	if info, err := os.Stat(path); err == nil {
		layer.Size = info.Size()
	}

	fields := reader.Fields()
	for _, f := range fields {
		layer.Fields = append(layer.Fields, fieldName(f))
	}

	buf := &layerBuffer{hasM: shapeType.HasM(), hasZ: shapeType.HasZ()}
	var features []domain.Feature
	skipped := 0

	for reader.Next() {
		row, shape := reader.Shape()
		if row%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		rng, ok := buf.add(shape, project)
		if !ok {
			skipped++
			continue
		}

		feature := domain.Feature{
			ID:         int64(row),
			LayerName:  layer.Name,
			Range:      rng,
			Properties: make(map[string]interface{}, len(fields)),
		}
		for i, f := range fields {
			if v, ok := attributeValue(f, reader.ReadAttribute(row, i)); ok {
				feature.Properties[fieldName(f)] = v
			}
		}
		features = append(features, feature)
	}
	if err := reader.Err(); err != nil {
		return nil, nil, &domain.ShapefileError{Path: path, Record: len(features), Err: fmt.Errorf("%w: %v", domain.ErrShapefileRead, err)}
	}

	for i := range features {
		rng := features[i].Range
		rng.SetVertices(buf.xy)
		if buf.hasM {
			rng.M = buf.m
		}
		if buf.hasZ {
			rng.Z = buf.z
		}
		layer.Extent = layer.Extent.Union(rng.Extent())
	}
	layer.FeatureCount = int64(len(features))

	if skipped > 0 {
		r.logger.Debug("skipped empty or unsupported shapes", "path", path, "count", skipped)
	}
	r.logger.Debug("shapefile read",
		"path", path,
		"shape_type", shapeType,
		"srid", srid,
		"features", len(features),
		"vertices", buf.vertexCount(),
	)

	return layer, features, nil
}

// add appends the shape's vertices and returns its range. Null shapes and
// multipatches are not supported.
func (b *layerBuffer) add(shape shp.Shape, project func(x, y float64) (float64, float64)) (*domain.ShapeRange, bool) {
	switch s := shape.(type) {
	case *shp.Point:
		return b.addParts(domain.ShapePoint, nil, []shp.Point{{X: s.X, Y: s.Y}}, nil, nil, project), true
	case *shp.PointM:
		return b.addParts(domain.ShapePointM, nil, []shp.Point{{X: s.X, Y: s.Y}}, nil, []float64{s.M}, project), true
	case *shp.PointZ:
		return b.addParts(domain.ShapePointZ, nil, []shp.Point{{X: s.X, Y: s.Y}}, []float64{s.Z}, []float64{s.M}, project), true
	case *shp.MultiPoint:
		return b.addParts(domain.ShapeMultiPoint, nil, s.Points, nil, nil, project), len(s.Points) > 0
	case *shp.MultiPointM:
		return b.addParts(domain.ShapeMultiPointM, nil, s.Points, nil, s.MArray, project), len(s.Points) > 0
	case *shp.MultiPointZ:
		return b.addParts(domain.ShapeMultiPointZ, nil, s.Points, s.ZArray, s.MArray, project), len(s.Points) > 0
	case *shp.PolyLine:
		return b.addParts(domain.ShapePolyLine, s.Parts, s.Points, nil, nil, project), len(s.Points) > 0
	case *shp.PolyLineM:
		return b.addParts(domain.ShapePolyLineM, s.Parts, s.Points, nil, s.MArray, project), len(s.Points) > 0
	case *shp.PolyLineZ:
		return b.addParts(domain.ShapePolyLineZ, s.Parts, s.Points, s.ZArray, s.MArray, project), len(s.Points) > 0
	case *shp.Polygon:
		return b.addParts(domain.ShapePolygon, s.Parts, s.Points, nil, nil, project), len(s.Points) > 0
	case *shp.PolygonM:
		return b.addParts(domain.ShapePolygonM, s.Parts, s.Points, nil, s.MArray, project), len(s.Points) > 0
	case *shp.PolygonZ:
		return b.addParts(domain.ShapePolygonZ, s.Parts, s.Points, s.ZArray, s.MArray, project), len(s.Points) > 0
	}
	return nil, false
}

// addParts appends points to the buffer and builds a range over them.
// parts holds the offset of each part within points; nil means one part.
func (b *layerBuffer) addParts(st domain.ShapeType, parts []int32, points []shp.Point, z, m []float64, project func(x, y float64) (float64, float64)) *domain.ShapeRange {
	rng := domain.NewShapeRangeOfType(st)
	rng.StartIndex = b.vertexCount()

	for i, p := range points {
		lon, lat := project(p.X, p.Y)
		b.xy = append(b.xy, lon, lat)
		if b.hasM {
			b.m = append(b.m, valueAt(m, i))
		}
		if b.hasZ {
			b.z = append(b.z, valueAt(z, i))
		}
	}

	if len(parts) == 0 {
		rng.AddPart(b.xy, 0, len(points))
		return rng
	}
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		rng.AddPart(b.xy, int(start), end-int(start))
	}
	return rng
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func fieldName(f shp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00")
}

// attributeValue converts a dBASE attribute to a Go value. Blank values
// are dropped.
func attributeValue(f shp.Field, raw string) (interface{}, bool) {
	v := strings.TrimSpace(strings.Trim(raw, "\x00"))
	if v == "" || strings.Trim(v, "*") == "" {
		return nil, false
	}

	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if i, err := cast.ToInt64E(v); err == nil {
				return i, true
			}
		}
		if x, err := cast.ToFloat64E(v); err == nil {
			return x, true
		}
	case 'F':
		if x, err := cast.ToFloat64E(v); err == nil {
			return x, true
		}
	case 'L':
		switch strings.ToUpper(v) {
		case "T", "Y":
			return true, true
		case "F", "N":
			return false, true
		}
		return nil, false
	}
	return v, true
}
