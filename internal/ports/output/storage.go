// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
	"path"
	"strings"
)

// ObjectStorage is the source of shapefile layers. Keys are slash separated
// paths relative to the storage root.
type ObjectStorage interface {
	// List returns the .shp objects in the storage. Companion files are
	// addressed with SiblingKey and never listed.
	List(ctx context.Context) ([]StorageObject, error)

	// Download copies an object to dest, creating parent directories.
	Download(ctx context.Context, key string, dest string) error

	// GetReader opens an object for streaming.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject describes one listed .shp object.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified int64  // Unix seconds, 0 when the backend does not report it
	ETag         string // Empty for backends without content hashes
	// Siblings holds the companion extensions seen next to the object.
	// It is nil when the backend cannot enumerate them.
	Siblings []string
}

// HasSibling reports whether the listing saw the companion with extension
// ext. known is false when the backend did not enumerate companions.
func (o StorageObject) HasSibling(ext string) (present, known bool) {
	if o.Siblings == nil {
		return false, false
	}
	for _, s := range o.Siblings {
		if strings.EqualFold(s, ext) {
			return true, true
		}
	}
	return false, true
}

// ShapefileExt is the extension of the main shapefile object.
const ShapefileExt = ".shp"

// Sibling is a companion file of a shapefile.
type Sibling struct {
	Ext      string
	Required bool
}

// Siblings lists the companion files a layer is read with. Without an index
// the records are read sequentially and without a projection WGS84 is
// assumed, so only the attribute table is required.
var Siblings = []Sibling{
	{Ext: ".dbf", Required: true},
	{Ext: ".shx"},
	{Ext: ".prj"},
}

// IsShapefile reports whether key names a .shp object.
func IsShapefile(key string) bool {
	return strings.EqualFold(path.Ext(key), ShapefileExt)
}

// SiblingKey returns the key of the companion file with extension ext. The
// extension follows the case of the existing one, so ROADS.SHP pairs with
// ROADS.DBF.
func SiblingKey(key, ext string) string {
	cur := path.Ext(key)
	if cur != "" && cur == strings.ToUpper(cur) {
		ext = strings.ToUpper(ext)
	}
	return strings.TrimSuffix(key, cur) + ext
}

// ShapefileKey maps a shapefile or companion key to the key of its .shp
// object. ok is false for unrelated files.
func ShapefileKey(key string) (shp string, ok bool) {
	if IsShapefile(key) {
		return key, true
	}
	ext := path.Ext(key)
	for _, s := range Siblings {
		if strings.EqualFold(ext, s.Ext) {
			return SiblingKey(key, ShapefileExt), true
		}
	}
	return "", false
}
