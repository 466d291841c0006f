package table

// Separator joins the keys of nested objects when they are flattened.
const Separator = "."

// Normalize flattens nested objects into dotted column names, so
// {"a": {"b": 1}} becomes {"a.b": 1}. Arrays are kept as cell values, and
// an empty nested object is kept as-is.
func Normalize(record map[string]any) Row {
	out := make(Row, len(record))
	flatten(out, "", record)
	return out
}

func flatten(out Row, prefix string, record map[string]any) {
	for k, v := range record {
		key := k
		if prefix != "" {
			key = prefix + Separator + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flatten(out, key, nested)
			continue
		}
		out[key] = v
	}
}
