package template

// Property accessors for the loosely typed maps a decoded template carries.
// All of them tolerate missing keys and wrong types by reporting !ok; the
// caller decides whether that is a skip or an error.

// StringProp returns a string-valued property.
func StringProp(props map[string]any, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MapProp returns a mapping-valued property.
func MapProp(props map[string]any, key string) (map[string]any, bool) {
	v, ok := props[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// SliceProp returns a sequence-valued property.
func SliceProp(props map[string]any, key string) ([]any, bool) {
	v, ok := props[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// StringMapProp returns a mapping-valued property with string values.
// Non-string values are dropped.
func StringMapProp(props map[string]any, key string) (map[string]string, bool) {
	m, ok := MapProp(props, key)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, isString := v.(string); isString {
			out[k] = s
		}
	}
	return out, true
}
