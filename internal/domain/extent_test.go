package domain

import (
	"testing"
)

func TestExtentBasics(t *testing.T) {
	e := NewExtent(0, 0, 10, 5)

	if e.IsEmpty() {
		t.Fatal("extent should not be empty")
	}
	if e.Width() != 10 || e.Height() != 5 {
		t.Errorf("size = %vx%v, want 10x5", e.Width(), e.Height())
	}
	if x, y := e.Center(); x != 5 || y != 2.5 {
		t.Errorf("Center() = (%v, %v), want (5, 2.5)", x, y)
	}
	if got := e.String(); got != "BOX(0 0, 10 5)" {
		t.Errorf("String() = %q", got)
	}
	if e.HasM() || e.HasZ() {
		t.Error("planar extent should not track M or Z")
	}

	// Corners are sorted regardless of argument order.
	swapped := NewExtent(10, 5, 0, 0)
	if swapped.MinX() != 0 || swapped.MaxY() != 5 {
		t.Errorf("swapped corners = %s", swapped)
	}
}

func TestEmptyExtent(t *testing.T) {
	e := EmptyExtent()
	if !e.IsEmpty() {
		t.Fatal("EmptyExtent() should be empty")
	}
	if e.String() != "EMPTY" {
		t.Errorf("String() = %q", e.String())
	}
	if e.Intersects(NewExtent(-1e9, -1e9, 1e9, 1e9)) {
		t.Error("empty extent should not intersect anything")
	}
	if !e.Buffer(5).IsEmpty() {
		t.Error("buffering an empty extent should keep it empty")
	}

	grown := e.ExpandToInclude(3, 4)
	if grown.IsEmpty() || grown.MinX() != 3 || grown.MaxY() != 4 {
		t.Errorf("ExpandToInclude() = %s", grown)
	}
}

func TestExtentIntersects(t *testing.T) {
	base := NewExtent(0, 0, 1, 1)
	tests := []struct {
		name  string
		other Extent
		want  bool
	}{
		{"overlap", NewExtent(0.5, 0.5, 2, 2), true},
		{"touching corner", NewExtent(1, 1, 2, 2), true},
		{"touching edge", NewExtent(1, 0, 2, 1), true},
		{"contained", NewExtent(0.2, 0.2, 0.4, 0.4), true},
		{"disjoint in x", NewExtent(1.1, 0, 2, 1), false},
		{"disjoint in y", NewExtent(0, -2, 1, -0.5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Intersects(tt.other); got != tt.want {
				t.Errorf("Intersects() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Intersects(base); got != tt.want {
				t.Errorf("reverse Intersects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtentContains(t *testing.T) {
	e := NewExtent(0, 0, 2, 2)
	if !e.Contains(0, 2) {
		t.Error("boundary points should be contained")
	}
	if e.Contains(2.0001, 1) {
		t.Error("outside point reported as contained")
	}
}

func TestExtentUpgrade(t *testing.T) {
	planar := NewExtent(1, 2, 3, 4)

	withM := planar.UpgradeTo(ExtentWithM)
	if withM.Kind != ExtentWithM || !withM.HasM() || withM.HasZ() {
		t.Fatalf("UpgradeTo(M) kind = %v", withM.Kind)
	}
	if withM.XY != planar.XY {
		t.Errorf("UpgradeTo(M) lost the 2-D bounds: %s", withM)
	}
	if !withM.M.IsEmpty() {
		t.Errorf("fresh M range should be empty, got %v", withM.M)
	}

	withM = withM.ExpandToIncludeM(5).ExpandToIncludeM(-1)
	withMZ := withM.UpgradeTo(ExtentWithMZ)
	if withMZ.M != withM.M {
		t.Errorf("UpgradeTo(MZ) dropped the M range: %v", withMZ.M)
	}
	if withMZ.M.Lo != -1 || withMZ.M.Hi != 5 {
		t.Errorf("M range = %v, want [-1, 5]", withMZ.M)
	}
	if !withMZ.HasZ() || !withMZ.Z.IsEmpty() {
		t.Errorf("Z range = %v", withMZ.Z)
	}

	if got := withMZ.UpgradeTo(ExtentPlanar); got != withMZ {
		t.Error("downgrading should return the extent unchanged")
	}
}

func TestExtentAuxiliaryOrdinatesIgnoredWhenUntracked(t *testing.T) {
	e := NewExtent(0, 0, 1, 1).ExpandToIncludeM(7).ExpandToIncludeZ(9)
	if !e.M.IsEmpty() || !e.Z.IsEmpty() {
		t.Errorf("planar extent recorded M %v or Z %v", e.M, e.Z)
	}
}

func TestExtentUnion(t *testing.T) {
	a := NewExtent(0, 0, 1, 1)
	b := NewExtent(2, -1, 3, 0.5).UpgradeTo(ExtentWithM).ExpandToIncludeM(10)

	u := a.Union(b)
	if u.Kind != ExtentWithM {
		t.Errorf("Union() kind = %v, want m", u.Kind)
	}
	if u.MinX() != 0 || u.MinY() != -1 || u.MaxX() != 3 || u.MaxY() != 1 {
		t.Errorf("Union() = %s", u)
	}
	if u.M.Lo != 10 || u.M.Hi != 10 {
		t.Errorf("Union() M = %v", u.M)
	}

	if got := EmptyExtent().Union(a); got.XY != a.XY {
		t.Errorf("union with empty = %s, want %s", got, a)
	}
}

func TestExtentBuffer(t *testing.T) {
	got := NewExtent(0, 0, 1, 1).Buffer(1)
	if got.MinX() != -1 || got.MinY() != -1 || got.MaxX() != 2 || got.MaxY() != 2 {
		t.Errorf("Buffer(1) = %s", got)
	}
}

func TestExtentKindString(t *testing.T) {
	for kind, want := range map[ExtentKind]string{
		ExtentPlanar:   "planar",
		ExtentWithM:    "m",
		ExtentWithMZ:   "mz",
		ExtentKind(42): "ExtentKind(42)",
	} {
		if got := kind.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
