package domain

import "time"

// Common SRID constants.
const (
	SRIDWGS84        = 4326  // WGS 84
	SRIDWebMercator  = 3857  // Web Mercator
	SRIDETRS89UTM32N = 25832 // ETRS89 / UTM zone 32N
	SRIDETRS89UTM33N = 25833 // ETRS89 / UTM zone 33N
)

// Layer is a registered shapefile.
type Layer struct {
	ID           string    // Unique identifier (derived from the file name)
	Name         string    // Display name
	Path         string    // Path of the .shp file
	Size         int64     // File size in bytes
	ShapeType    ShapeType // Shapefile geometry type
	SourceSRID   int       // SRID the coordinates were read in
	FeatureCount int64     // Number of records
	Extent       Extent    // Bounding box in WGS84 degrees
	Fields       []string  // Attribute names
	Indexed      bool      // Spatial index built?
	LoadedAt     time.Time // Load timestamp
	LastQueried  time.Time // Last query timestamp
}

// IsReady returns true if the layer is indexed and can be queried.
func (l *Layer) IsReady() bool {
	return l.Indexed
}

// FeatureType returns the geometric category of the layer's shapes.
func (l *Layer) FeatureType() FeatureType {
	return l.ShapeType.FeatureType()
}

// IsPointLayer returns true if the layer contains point geometries.
func (l *Layer) IsPointLayer() bool { return l.FeatureType() == FeaturePoint }

// IsLineLayer returns true if the layer contains line geometries.
func (l *Layer) IsLineLayer() bool { return l.FeatureType() == FeatureLine }

// IsPolygonLayer returns true if the layer contains polygon geometries.
func (l *Layer) IsPolygonLayer() bool { return l.FeatureType() == FeaturePolygon }

// HasField reports whether the layer carries the named attribute.
func (l *Layer) HasField(name string) bool {
	for _, f := range l.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// LayerStatus represents the lifecycle state of a layer.
type LayerStatus string

const (
	StatusLoading   LayerStatus = "loading"
	StatusIndexing  LayerStatus = "indexing"
	StatusReady     LayerStatus = "ready"
	StatusError     LayerStatus = "error"
	StatusUnloading LayerStatus = "unloading"
)

// QueryResult holds the features of one layer matching a query.
type QueryResult struct {
	LayerID    string        // Layer identifier
	LayerName  string        // Layer display name
	Features   []Feature     // Matching features
	Candidates int           // Features returned by the spatial index
	QueryTime  time.Duration // Query execution time
}

// FeatureCount returns the number of features in the result.
func (r *QueryResult) FeatureCount() int {
	return len(r.Features)
}

// HasFeatures returns true if features were found.
func (r *QueryResult) HasFeatures() bool {
	return len(r.Features) > 0
}

// QueryResponse is the full answer to a shape query.
type QueryResponse struct {
	Results        []QueryResult // Results per layer
	TotalFeatures  int           // Total feature count
	ProcessingTime time.Duration // Total processing time
	Position       Position      // Queried position, empty for range queries
}

// AddResult adds a layer result to the response.
func (r *QueryResponse) AddResult(result QueryResult) {
	r.Results = append(r.Results, result)
	r.TotalFeatures += result.FeatureCount()
}
