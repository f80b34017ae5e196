package execution

import (
	"regexp"

	"github.com/viant/toolbox"
)

var keyRef = regexp.MustCompile(`\$(?:\{([a-zA-Z_][a-zA-Z0-9_.]*)\}|([a-zA-Z_][a-zA-Z0-9_.]*))`)

// Expand resolves $key and ${key} references in value against the context.
// A string that is exactly one reference yields the referenced value with
// its type preserved; embedded references render as strings. Unknown keys
// and non-string values pass through unchanged. Maps and slices expand
// element-wise into copies.
func (c *Context) Expand(value interface{}) interface{} {
	switch actual := value.(type) {
	case string:
		return c.expandString(actual)
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(actual))
		for k, v := range actual {
			ret[k] = c.Expand(v)
		}
		return ret
	case []interface{}:
		ret := make([]interface{}, len(actual))
		for i, v := range actual {
			ret[i] = c.Expand(v)
		}
		return ret
	}
	return value
}

func (c *Context) expandString(text string) interface{} {
	match := keyRef.FindStringSubmatch(text)
	if match == nil {
		return text
	}
	if match[0] == text { // whole string is a single reference
		if resolved, ok := c.Lookup(refKey(match)); ok {
			return resolved
		}
		return text
	}
	return keyRef.ReplaceAllStringFunc(text, func(ref string) string {
		match := keyRef.FindStringSubmatch(ref)
		if resolved, ok := c.Lookup(refKey(match)); ok {
			return toolbox.AsString(resolved)
		}
		return ref
	})
}

func refKey(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}
