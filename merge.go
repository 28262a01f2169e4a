package luzidos

// DeepMerge merges update into base and returns the result without mutating
// either argument. Nested maps are merged key by key; every other value,
// including lists, is replaced wholesale by the incoming one. This is the
// single merge function backing all partial document updates, so its
// precedence rules are load-bearing: last writer wins on scalar conflicts.
func DeepMerge(base, update map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		merged[k] = copyValue(v)
	}
	for k, incoming := range update {
		existing, ok := merged[k]
		if !ok {
			merged[k] = copyValue(incoming)
			continue
		}
		existingMap, existingIsMap := existing.(map[string]any)
		incomingMap, incomingIsMap := incoming.(map[string]any)
		if existingIsMap && incomingIsMap {
			merged[k] = DeepMerge(existingMap, incomingMap)
		} else {
			merged[k] = copyValue(incoming)
		}
	}
	return merged
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return DeepMerge(nil, value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
