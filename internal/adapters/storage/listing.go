package storage

import (
	"path"
	"sort"
	"strings"

	"github.com/jobrunner/meridian/internal/ports/output"
)

// fileSets reduces a flat listing to its .shp objects and records the
// companion files found next to each. Names are matched case-insensitively,
// so ROADS.SHP pairs with roads.dbf. The result is sorted by key.
func fileSets(entries []output.StorageObject) []output.StorageObject {
	var shps []output.StorageObject
	companions := make(map[string][]string)

	for _, e := range entries {
		if output.IsShapefile(e.Key) {
			shps = append(shps, e)
			continue
		}
		ext := path.Ext(e.Key)
		for _, sib := range output.Siblings {
			if strings.EqualFold(ext, sib.Ext) {
				base := baseKey(e.Key)
				companions[base] = append(companions[base], sib.Ext)
				break
			}
		}
	}

	for i := range shps {
		shps[i].Siblings = append([]string{}, companions[baseKey(shps[i].Key)]...)
		sort.Strings(shps[i].Siblings)
	}
	sort.Slice(shps, func(i, j int) bool { return shps[i].Key < shps[j].Key })
	return shps
}

func baseKey(key string) string {
	return strings.ToLower(strings.TrimSuffix(key, path.Ext(key)))
}
