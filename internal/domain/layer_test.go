package domain

import (
	"testing"
	"time"
)

func TestLayerCategories(t *testing.T) {
	tests := []struct {
		shape   ShapeType
		point   bool
		line    bool
		polygon bool
	}{
		{ShapePoint, true, false, false},
		{ShapeMultiPointZ, true, false, false},
		{ShapePolyLineM, false, true, false},
		{ShapePolygonZ, false, false, true},
		{ShapeNull, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			l := &Layer{ShapeType: tt.shape}
			if l.IsPointLayer() != tt.point || l.IsLineLayer() != tt.line || l.IsPolygonLayer() != tt.polygon {
				t.Errorf("categories = %v/%v/%v, want %v/%v/%v",
					l.IsPointLayer(), l.IsLineLayer(), l.IsPolygonLayer(), tt.point, tt.line, tt.polygon)
			}
		})
	}
}

func TestLayerIsReady(t *testing.T) {
	l := &Layer{ID: "parcels"}
	if l.IsReady() {
		t.Error("unindexed layer reported ready")
	}
	l.Indexed = true
	if !l.IsReady() {
		t.Error("indexed layer reported not ready")
	}
}

func TestLayerHasField(t *testing.T) {
	l := &Layer{Fields: []string{"NAME", "AREA"}}
	if !l.HasField("AREA") {
		t.Error("HasField(AREA) = false")
	}
	if l.HasField("area") {
		t.Error("field names are case sensitive")
	}
}

func TestQueryResponseAddResult(t *testing.T) {
	resp := &QueryResponse{}
	resp.AddResult(QueryResult{LayerID: "a", Features: []Feature{{ID: 1}, {ID: 2}}, QueryTime: time.Millisecond})
	resp.AddResult(QueryResult{LayerID: "b"})

	if resp.TotalFeatures != 2 {
		t.Errorf("TotalFeatures = %d, want 2", resp.TotalFeatures)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(resp.Results))
	}
	if !resp.Results[0].HasFeatures() || resp.Results[1].HasFeatures() {
		t.Error("HasFeatures() misreports")
	}
}
