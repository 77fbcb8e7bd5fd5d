package sapling

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ManifestFunc lists the resource ids a document references. It must be
// pure, deterministic and total over every document the caller passes.
type ManifestFunc[D any] func(D) []ResourceID

// UnionManifest returns the set of ids referenced by any of docs.
func UnionManifest[D any](docs []D, fn ManifestFunc[D]) map[ResourceID]struct{} {
	keep := make(map[ResourceID]struct{})
	for _, d := range docs {
		for _, id := range fn(d) {
			keep[id] = struct{}{}
		}
	}
	return keep
}

// JSONPathManifest returns a manifest that marshals the document to JSON and
// collects every string found under each gjson path. Arrays and objects
// selected by a path are walked recursively, so queries such as
//
//	rooms.#.events.#.fields.#(type=="file")#.data
//
// work unchanged. Documents that fail to marshal reference nothing.
func JSONPathManifest[D any](paths ...string) ManifestFunc[D] {
	return func(doc D) []ResourceID {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil
		}
		var ids []ResourceID
		seen := make(map[ResourceID]struct{})
		var walk func(r gjson.Result)
		walk = func(r gjson.Result) {
			switch {
			case r.IsArray() || r.IsObject():
				r.ForEach(func(_, v gjson.Result) bool {
					walk(v)
					return true
				})
			case r.Type == gjson.String:
				id := ResourceID(r.Str)
				if _, ok := seen[id]; !ok && id != "" {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		for _, p := range paths {
			walk(gjson.GetBytes(data, p))
		}
		return ids
	}
}
