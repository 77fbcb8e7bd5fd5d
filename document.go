package sapling

// Document is a schemaless JSON project tree, for hosts that do not define a
// Go type for their project. Pair it with CloneDocument and JSONPathManifest.
type Document map[string]any

// CloneDocument deep-copies maps and slices. Scalars are shared, which is
// safe because JSON scalars are immutable.
func CloneDocument(d Document) Document {
	if d == nil {
		return nil
	}
	return cloneJSONValue(map[string]any(d)).(map[string]any)
}

func cloneJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneJSONValue(e)
		}
		return m
	case Document:
		return Document(cloneJSONValue(map[string]any(t)).(map[string]any))
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneJSONValue(e)
		}
		return s
	default:
		return v
	}
}

// CloneValue deep-copies a JSON-shaped value such as a field's data.
func CloneValue(v any) any {
	return cloneJSONValue(v)
}
