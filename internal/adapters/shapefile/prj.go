package shapefile

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

var (
	authorityRe = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	utmZoneRe   = regexp.MustCompile(`(?i)UTM[_ ]zone[_ ](\d{1,2})\s*([NS])`)
	mercatorRe  = regexp.MustCompile(`(?i)(pseudo[_ ]mercator|mercator[_ ]auxiliary[_ ]sphere|popular[_ ]visualisation)`)
	wgs84Re     = regexp.MustCompile(`(?i)(WGS[_ ]?(19)?84|ETRS[_ ]?(19)?89)`)
)

// readPRJ returns the EPSG code described by the .prj next to the
// shapefile at path. ok is false when there is no .prj or it names an
// unknown system.
func readPRJ(path string) (srid int, ok bool) {
	data, err := os.ReadFile(output.SiblingKey(path, ".prj"))
	if err != nil {
		return 0, false
	}
	return parsePRJ(string(data))
}

// parsePRJ maps an ESRI or OGC WKT coordinate system to an EPSG code. An
// explicit EPSG authority wins; ESRI files carry none, so the projection
// name is matched instead.
func parsePRJ(wkt string) (int, bool) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return 0, false
	}

	// The outermost authority comes last.
	if m := authorityRe.FindAllStringSubmatch(wkt, -1); len(m) > 0 {
		if code, err := strconv.Atoi(m[len(m)-1][1]); err == nil {
			return code, true
		}
	}

	upper := strings.ToUpper(wkt)
	switch {
	case strings.HasPrefix(upper, "PROJCS"):
		if m := utmZoneRe.FindStringSubmatch(wkt); m != nil {
			zone, _ := strconv.Atoi(m[1])
			north := strings.EqualFold(m[2], "N")
			if strings.Contains(upper, "ETRS") && north {
				return 25800 + zone, true
			}
			if north {
				return 32600 + zone, true
			}
			return 32700 + zone, true
		}
		if mercatorRe.MatchString(wkt) {
			return domain.SRIDWebMercator, true
		}
	case strings.HasPrefix(upper, "GEOGCS"):
		if wgs84Re.MatchString(wkt) {
			return domain.SRIDWGS84, true
		}
	}
	return 0, false
}
