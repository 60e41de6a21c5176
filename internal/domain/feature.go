package domain

import "strings"

// Feature is one shape record of a layer together with its attributes.
type Feature struct {
	ID         int64                  // Record number within the layer
	LayerName  string                 // Associated layer name
	Range      *ShapeRange            // Geometry as parts of a vertex buffer
	Properties map[string]interface{} // Attribute data
}

// Select returns the subset of properties named by keys. Keys match
// case-insensitively since dBASE field names are conventionally upper
// case. A nil keys slice selects everything.
func (f *Feature) Select(keys []string) map[string]interface{} {
	if keys == nil {
		return f.Properties
	}
	out := make(map[string]interface{}, len(keys))
	for name, v := range f.Properties {
		for _, k := range keys {
			if strings.EqualFold(name, k) {
				out[name] = v
				break
			}
		}
	}
	return out
}

// Extent returns the feature's bounding box, or an empty extent when it has
// no geometry.
func (f *Feature) Extent() Extent {
	if f.Range == nil {
		return EmptyExtent()
	}
	return f.Range.Extent()
}
