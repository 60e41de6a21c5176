package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/jobrunner/meridian/internal/ports/output"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
}

func TestLocalStorageList(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"roads.shp", "roads.shx", "roads.dbf", "roads.prj",
		"LAKES.SHP",
		"admin/districts.shp", "admin/districts.dbf",
		"readme.txt",
	)

	objects, err := NewLocalStorage(dir).List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var keys []string
	siblings := make(map[string][]string)
	for _, obj := range objects {
		keys = append(keys, obj.Key)
		siblings[obj.Key] = obj.Siblings
		if obj.Size != 4 {
			t.Errorf("object %q size = %d, want 4", obj.Key, obj.Size)
		}
		if obj.LastModified == 0 {
			t.Errorf("object %q LastModified should not be 0", obj.Key)
		}
	}
	sort.Strings(keys)

	want := []string{"LAKES.SHP", "admin/districts.shp", "roads.shp"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if got := siblings["roads.shp"]; len(got) != 3 {
		t.Errorf("roads.shp siblings = %v, want all three", got)
	}
	if got := siblings["LAKES.SHP"]; got == nil || len(got) != 0 {
		t.Errorf("LAKES.SHP siblings = %#v, want empty and known", got)
	}
}

func TestFileSets(t *testing.T) {
	objects := fileSets([]output.StorageObject{
		{Key: "b/ROADS.DBF"},
		{Key: "b/ROADS.SHP", Size: 10},
		{Key: "b/roads.prj"},
		{Key: "a/coast.shp"},
		{Key: "a/coast.cpg"},
		{Key: "a/other.dbf"},
	})

	if len(objects) != 2 {
		t.Fatalf("fileSets() = %+v, want two shapefiles", objects)
	}
	if objects[0].Key != "a/coast.shp" || objects[1].Key != "b/ROADS.SHP" {
		t.Errorf("keys = %q, %q", objects[0].Key, objects[1].Key)
	}
	if objects[1].Size != 10 {
		t.Errorf("size = %d, want the .shp size", objects[1].Size)
	}

	if present, known := objects[0].HasSibling(".dbf"); present || !known {
		t.Errorf("coast.shp .dbf = %v, %v; want absent and known", present, known)
	}
	for _, ext := range []string{".dbf", ".prj"} {
		if present, _ := objects[1].HasSibling(ext); !present {
			t.Errorf("ROADS.SHP should have %s", ext)
		}
	}
	if present, _ := objects[1].HasSibling(".shx"); present {
		t.Error("ROADS.SHP has no .shx")
	}
}

func TestLocalStorageListErrors(t *testing.T) {
	if _, err := NewLocalStorage("/nonexistent/path").List(context.Background()); err == nil {
		t.Error("List() should error for non-existent path")
	}

	dir := t.TempDir()
	writeFiles(t, dir, "a.shp")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocalStorage(dir).List(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("List() err = %v, want context.Canceled", err)
	}
}

func TestLocalStorageExists(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "roads.shp")
	storage := NewLocalStorage(dir)

	tests := []struct {
		key  string
		want bool
	}{
		{"roads.shp", true},
		{"roads.prj", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			exists, err := storage.Exists(context.Background(), tt.key)
			if err != nil {
				t.Errorf("Exists() error = %v", err)
			}
			if exists != tt.want {
				t.Errorf("Exists() = %v, want %v", exists, tt.want)
			}
		})
	}
}

func TestLocalStorageGetReader(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "nested/roads.dbf")
	storage := NewLocalStorage(dir)

	reader, err := storage.GetReader(context.Background(), "nested/roads.dbf")
	if err != nil {
		t.Fatalf("GetReader() error = %v", err)
	}
	defer func() { _ = reader.Close() }()

	content, err := io.ReadAll(reader)
	if err != nil || string(content) != "test" {
		t.Errorf("content = %q, %v", content, err)
	}

	if _, err := storage.GetReader(context.Background(), "missing.dbf"); err == nil {
		t.Error("GetReader() should error for non-existent file")
	}
}

func TestLocalStorageDownload(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeFiles(t, src, "roads.shp")
	storage := NewLocalStorage(src)

	target := filepath.Join(dest, "nested", "deep", "roads.shp")
	if err := storage.Download(context.Background(), "roads.shp", target); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	content, err := os.ReadFile(target)
	if err != nil || string(content) != "test" {
		t.Errorf("content = %q, %v", content, err)
	}

	// No temporary files are left behind.
	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("dest dir holds %d entries, want 1", len(entries))
	}

	// Downloading onto the source is a no-op.
	if err := storage.Download(context.Background(), "roads.shp", filepath.Join(src, "roads.shp")); err != nil {
		t.Errorf("Download() onto source error = %v", err)
	}

	err = storage.Download(context.Background(), "missing.shp", filepath.Join(dest, "missing.shp"))
	if !errors.Is(err, errObjectNotFound) {
		t.Errorf("Download() missing err = %v, want errObjectNotFound", err)
	}
}

func TestLocalStorageFullPath(t *testing.T) {
	storage := NewLocalStorage("/data/shapes")

	tests := []struct {
		key  string
		want string
	}{
		{"roads.shp", "/data/shapes/roads.shp"},
		{"admin/districts.shp", "/data/shapes/admin/districts.shp"},
		{"", "/data/shapes"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := storage.FullPath(tt.key); got != tt.want {
				t.Errorf("FullPath(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
