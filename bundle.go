package sapling

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Bundle is the unit of persistence and transfer: a project document plus
// every resource it references.
type Bundle[D any] struct {
	Project   D              `json:"project"`
	Resources ResourceBundle `json:"resources"`
}

// ParseBundle decodes bundle JSON.
func ParseBundle[D any](data []byte) (Bundle[D], error) {
	var b Bundle[D]
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle[D]{}, fmt.Errorf("sapling: parse bundle: %w", err)
	}
	if b.Resources == nil {
		b.Resources = ResourceBundle{}
	}
	return b, nil
}

// ValidateBundle checks that every id manifest reports for the bundle's
// project has a resource entry. It returns a *MalformedBundleError listing
// the missing ids.
func ValidateBundle[D any](b Bundle[D], manifest ManifestFunc[D]) error {
	var missing []ResourceID
	seen := make(map[ResourceID]struct{})
	for _, id := range manifest(b.Project) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := b.Resources[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return &MalformedBundleError{Missing: missing}
	}
	return nil
}
