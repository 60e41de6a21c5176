package shapefile

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/jobrunner/meridian/internal/domain"
)

// webMercatorRadius is the sphere radius of EPSG:3857.
const webMercatorRadius = 6378137.0

// Transformer implements coordinate transformation to WGS84 using
// transverse mercator definitions for the UTM families.
type Transformer struct {
	funcs map[int]func(a, b, c float64) (a2, b2, c2 float64)
}

// NewTransformer registers WGS84 UTM (EPSG:326xx, 327xx) and ETRS89 UTM
// (EPSG:258xx) zones.
func NewTransformer() *Transformer {
	anywhere := wgs84.AreaFunc(func(lon, lat float64) bool { return true })
	wgs := wgs84.Datum{Spheroid: domain.WGS84, Area: anywhere}
	etrs := wgs84.Datum{Spheroid: domain.GRS80, Area: anywhere}

	epsg := wgs84.EPSG()
	var codes []int
	for zone := 1; zone <= 60; zone++ {
		lon0 := float64(zone)*6 - 183
		epsg.Add(32600+zone, wgs.TransverseMercator(lon0, 0, 0.9996, 500000, 0))
		epsg.Add(32700+zone, wgs.TransverseMercator(lon0, 0, 0.9996, 500000, 10000000))
		codes = append(codes, 32600+zone, 32700+zone)
	}
	for zone := 28; zone <= 38; zone++ {
		lon0 := float64(zone)*6 - 183
		epsg.Add(25800+zone, etrs.TransverseMercator(lon0, 0, 0.9996, 500000, 0))
		codes = append(codes, 25800+zone)
	}

	t := &Transformer{funcs: make(map[int]func(a, b, c float64) (a2, b2, c2 float64), len(codes))}
	lonLat := wgs84.WGS84().LonLat()
	for _, code := range codes {
		t.funcs[code] = wgs84.Transform(epsg.Code(code), lonLat)
	}
	return t
}

// ToWGS84 returns a function converting x/y in sourceSRID to WGS84
// longitude/latitude.
func (t *Transformer) ToWGS84(sourceSRID int) (func(x, y float64) (lon, lat float64), error) {
	switch sourceSRID {
	case domain.SRIDWGS84:
		return func(x, y float64) (float64, float64) { return x, y }, nil
	case domain.SRIDWebMercator:
		return fromWebMercator, nil
	}

	fn, ok := t.funcs[sourceSRID]
	if !ok {
		return nil, fmt.Errorf("%w: EPSG:%d", domain.ErrUnsupported, sourceSRID)
	}
	return func(x, y float64) (float64, float64) {
		lon, lat, _ := fn(x, y, 0)
		return lon, lat
	}, nil
}

// IsSupported checks if a source SRID can be transformed.
func (t *Transformer) IsSupported(sourceSRID int) bool {
	if sourceSRID == domain.SRIDWGS84 || sourceSRID == domain.SRIDWebMercator {
		return true
	}
	_, ok := t.funcs[sourceSRID]
	return ok
}

func fromWebMercator(x, y float64) (lon, lat float64) {
	lon = x / webMercatorRadius * 180 / math.Pi
	lat = math.Atan(math.Sinh(y/webMercatorRadius)) * 180 / math.Pi
	return lon, lat
}
