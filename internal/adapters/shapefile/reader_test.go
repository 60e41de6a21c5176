package shapefile

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"

	"github.com/jobrunner/meridian/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ring(x, y, r float64) []shp.Point {
	return []shp.Point{
		{X: x - r, Y: y - r}, {X: x - r, Y: y + r}, {X: x + r, Y: y + r},
		{X: x + r, Y: y - r}, {X: x - r, Y: y - r},
	}
}

// writeParcels creates a polygon shapefile with attributes and no .prj.
func writeParcels(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "parcels.shp")

	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		t.Fatalf("shp.Create() error = %v", err)
	}
	w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.NumberField("OWNERS", 5),
		shp.FloatField("AREA", 12, 3),
	})

	shapes := [][][]shp.Point{
		{ring(10, 50, 1)},
		{ring(20, 50, 2), ring(20, 50, 0.5)},
	}
	for i, parts := range shapes {
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := int(w.Write(&poly))
		if i == 0 {
			_ = w.WriteAttribute(row, 0, "North Field")
			_ = w.WriteAttribute(row, 1, 3)
			_ = w.WriteAttribute(row, 2, 12.5)
		} else {
			_ = w.WriteAttribute(row, 0, "Lake Plot")
		}
	}
	w.Close()
	return path
}

func TestReaderReadPolygons(t *testing.T) {
	path := writeParcels(t, t.TempDir())
	reader := NewReader(NewTransformer(), 0, testLogger())

	layer, features, err := reader.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if layer.Name != "parcels" || layer.ShapeType != domain.ShapePolygon {
		t.Errorf("layer = %s/%v, want parcels/Polygon", layer.Name, layer.ShapeType)
	}
	if layer.SourceSRID != domain.SRIDWGS84 {
		t.Errorf("SourceSRID = %d, want %d", layer.SourceSRID, domain.SRIDWGS84)
	}
	if layer.FeatureCount != 2 || len(features) != 2 {
		t.Fatalf("FeatureCount = %d, features = %d, want 2", layer.FeatureCount, len(features))
	}
	if !layer.HasField("NAME") || !layer.HasField("OWNERS") || !layer.HasField("AREA") {
		t.Errorf("Fields = %v", layer.Fields)
	}
	if layer.Size == 0 {
		t.Error("Size = 0")
	}

	e := layer.Extent
	if e.MinX() != 9 || e.MaxX() != 22 || e.MinY() != 48 || e.MaxY() != 52 {
		t.Errorf("Extent = %v, want [9 48, 22 52]", e)
	}

	first, second := features[0], features[1]
	if first.GetStringProperty("NAME") != "North Field" {
		t.Errorf("NAME = %q", first.GetStringProperty("NAME"))
	}
	if v, ok := first.GetProperty("OWNERS"); !ok || v != int64(3) {
		t.Errorf("OWNERS = %#v, want int64(3)", v)
	}
	if first.GetFloatProperty("AREA") != 12.5 {
		t.Errorf("AREA = %v, want 12.5", first.GetFloatProperty("AREA"))
	}
	if _, ok := second.GetProperty("OWNERS"); ok {
		t.Error("blank attribute should be dropped")
	}

	// Both shapes index into one layer buffer.
	if second.Range.StartIndex != 5 || second.Range.NumParts() != 2 {
		t.Errorf("second range start/parts = %d/%d, want 5/2", second.Range.StartIndex, second.Range.NumParts())
	}
	if &first.Range.Vertices()[0] != &second.Range.Vertices()[0] {
		t.Error("features do not share the vertex buffer")
	}
	if got := second.Range.PartIndex(12); got != 1 {
		t.Errorf("PartIndex(12) = %d, want 1", got)
	}

	// The hole of the second parcel is not part of it.
	probe := domain.NewShapeRangeOfType(domain.ShapePoint)
	probe.AddPart([]float64{20, 50}, 0, 1)
	if second.Range.Intersects(probe) {
		t.Error("point in hole intersects polygon")
	}
	probe.SetVertices([]float64{21.5, 51.5})
	if !second.Range.Intersects(probe) {
		t.Error("point in ring does not intersect polygon")
	}
}

func TestReaderProjectsUTM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wells.shp")

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		t.Fatalf("shp.Create() error = %v", err)
	}
	w.Write(&shp.Point{X: 500000, Y: 5500000})
	w.Close()

	prj := `PROJCS["ETRS_1989_UTM_Zone_32N",GEOGCS["GCS_ETRS_1989",DATUM["D_ETRS_1989",SPHEROID["GRS_1980",6378137.0,298.257222101]]],PROJECTION["Transverse_Mercator"],PARAMETER["Central_Meridian",9.0],UNIT["Meter",1.0]]`
	if err := os.WriteFile(filepath.Join(dir, "wells.prj"), []byte(prj), 0o600); err != nil {
		t.Fatal(err)
	}

	layer, features, err := NewReader(NewTransformer(), 0, testLogger()).Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if layer.SourceSRID != domain.SRIDETRS89UTM32N {
		t.Errorf("SourceSRID = %d, want %d", layer.SourceSRID, domain.SRIDETRS89UTM32N)
	}
	if len(layer.Fields) != 0 || len(features[0].Properties) != 0 {
		t.Errorf("expected no attributes without a .dbf")
	}

	pt := features[0].Range.Parts[0].Point(0)
	if math.Abs(pt.X-9) > 1e-9 {
		t.Errorf("lon = %v, want 9", pt.X)
	}
	if math.Abs(pt.Y-49.652543) > 1e-5 {
		t.Errorf("lat = %v, want 49.652543", pt.Y)
	}
}

func TestReaderErrors(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader(NewTransformer(), 0, testLogger())

	_, _, err := reader.Read(context.Background(), filepath.Join(dir, "missing.shp"))
	if !errors.Is(err, domain.ErrShapefileRead) {
		t.Errorf("missing file err = %v, want ErrShapefileRead", err)
	}
	var shpErr *domain.ShapefileError
	if !errors.As(err, &shpErr) || shpErr.Record != -1 {
		t.Errorf("err = %#v, want ShapefileError without record", err)
	}

	path := writeParcels(t, dir)
	swiss := `PROJCS["CH1903+ / LV95",GEOGCS["CH1903+",AUTHORITY["EPSG","4150"]],AUTHORITY["EPSG","2056"]]`
	if err := os.WriteFile(filepath.Join(dir, "parcels.prj"), []byte(swiss), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := reader.Read(context.Background(), path); !errors.Is(err, domain.ErrUnsupported) {
		t.Errorf("unsupported projection err = %v, want ErrUnsupported", err)
	}
}

func TestReaderCanceled(t *testing.T) {
	path := writeParcels(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := NewReader(NewTransformer(), 0, testLogger()).Read(ctx, path); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAttributeValue(t *testing.T) {
	tests := []struct {
		name  string
		field shp.Field
		raw   string
		want  interface{}
		ok    bool
	}{
		{"string", shp.StringField("S", 10), "  Main St ", "Main St", true},
		{"integer", shp.NumberField("N", 6), "   42", int64(42), true},
		{"float", shp.FloatField("F", 10, 2), "  3.25", 3.25, true},
		{"blank", shp.NumberField("N", 6), "      ", nil, false},
		{"stars mean null", shp.NumberField("N", 6), "******", nil, false},
		{"padding", shp.StringField("S", 10), "abc\x00\x00", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := attributeValue(tt.field, tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Errorf("attributeValue(%q) = %#v, %v; want %#v, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}
