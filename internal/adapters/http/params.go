package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/jobrunner/meridian/internal/domain"
)

// paramError is a malformed or missing query parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("%s: %s", e.name, e.msg)
}

// requestLocale picks the parsing locale from the "locale" parameter, then
// from Accept-Language.
func requestLocale(r *http.Request) domain.Locale {
	if tag := r.URL.Query().Get("locale"); tag != "" {
		return domain.LocaleFor(tag)
	}
	if al := r.Header.Get("Accept-Language"); al != "" {
		tag, _, _ := strings.Cut(al, ",")
		tag, _, _ = strings.Cut(tag, ";")
		return domain.LocaleFor(strings.TrimSpace(tag))
	}
	return domain.InvariantLocale
}

// floatParam reads a required number.
func floatParam(q url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, &paramError{name: name, msg: "parameter is required"}
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &paramError{name: name, msg: fmt.Sprintf("invalid number %q", raw)}
	}
	return v, nil
}

// optionalFloatParam reads a number, returning fallback when it is absent.
func optionalFloatParam(q url.Values, name string, fallback float64) (float64, error) {
	if strings.TrimSpace(q.Get(name)) == "" {
		return fallback, nil
	}
	return floatParam(q, name)
}

// int64Param converts a path or query value to int64.
func int64Param(name, raw string) (int64, error) {
	v, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, &paramError{name: name, msg: fmt.Sprintf("invalid integer %q", raw)}
	}
	return v, nil
}

// positionParam reads a position either from a combined parameter such as
// from=53.55,9.99 (parsed with the request locale, DMS accepted) or from a
// latName/lonName pair.
func positionParam(r *http.Request, combined, latName, lonName string) (domain.Position, error) {
	q := r.URL.Query()
	if raw := q.Get(combined); combined != "" && raw != "" {
		p, err := domain.ParsePosition(raw, requestLocale(r))
		if err != nil {
			return domain.InvalidPosition, &paramError{name: combined, msg: err.Error()}
		}
		return p, nil
	}

	lat, err := floatParam(q, latName)
	if err != nil {
		return domain.InvalidPosition, err
	}
	lon, err := floatParam(q, lonName)
	if err != nil {
		return domain.InvalidPosition, err
	}
	return domain.NewPosition(lat, lon), nil
}

// azimuthParam reads a bearing in degrees.
func azimuthParam(q url.Values, name string) (domain.Azimuth, error) {
	v, err := floatParam(q, name)
	if err != nil {
		return domain.InvalidAzimuth, err
	}
	return domain.Azimuth(v), nil
}

// unitParam reads a distance unit, falling back to def.
func unitParam(q url.Values, name, def string) (domain.DistanceUnit, error) {
	raw := q.Get(name)
	if raw == "" {
		raw = def
	}
	return domain.ParseDistanceUnit(raw)
}

// boolParam reads a flag; absent or malformed values are false.
func boolParam(q url.Values, name string) bool {
	return cast.ToBool(q.Get(name))
}

// renderParams reads the feature trimming flags: geometry=false drops
// geometries and properties=NAME,DEPTH keeps only the listed attributes.
// An empty properties value keeps none.
func renderParams(q url.Values) renderOptions {
	opts := renderOptions{omitGeometry: q.Has("geometry") && !boolParam(q, "geometry")}
	if q.Has("properties") {
		opts.properties = []string{}
		for _, name := range strings.Split(q.Get("properties"), ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.properties = append(opts.properties, name)
			}
		}
	}
	return opts
}
