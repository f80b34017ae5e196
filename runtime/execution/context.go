package execution

import (
	"sort"

	"github.com/renderflow/renderflow/model/types"
	"github.com/viant/toolbox"
)

// Context is the mutable key/value state threaded through one workflow run.
// A run owns its context exclusively; a sub workflow borrows the same
// instance only when the invoking step explicitly shares it. Access is
// single goroutine per run, so no locking is needed here.
type Context struct {
	values map[string]interface{}
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{values: map[string]interface{}{}}
}

// NewContextWith creates a context seeded with the supplied values.
func NewContextWith(seed map[string]interface{}) *Context {
	ret := NewContext()
	for k, v := range seed {
		ret.values[k] = v
	}
	return ret
}

// Set stores value under key, replacing any previous value.
func (c *Context) Set(key string, value interface{}) {
	c.values[key] = value
}

// Lookup returns the value stored under key.
func (c *Context) Lookup(key string) (interface{}, bool) {
	value, ok := c.values[key]
	return value, ok
}

// GetRequired returns the value stored under key or a configuration error.
func (c *Context) GetRequired(key string) (interface{}, error) {
	value, ok := c.values[key]
	if !ok {
		return nil, types.NewMissingKeyError(key)
	}
	return value, nil
}

// Contains reports whether key has a value.
func (c *Context) Contains(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Remove deletes key from the context.
func (c *Context) Remove(key string) {
	delete(c.values, key)
}

// Keys returns all keys in lexical order.
func (c *Context) Keys() []string {
	ret := make([]string, 0, len(c.values))
	for k := range c.values {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Len returns the number of stored keys.
func (c *Context) Len() int {
	return len(c.values)
}

// Int returns the value under key as int. Numeric values widen or narrow,
// anything else is a type mismatch.
func (c *Context) Int(key string) (int, error) {
	value, err := c.GetRequired(key)
	if err != nil {
		return 0, err
	}
	if !isNumeric(value) {
		return 0, types.NewTypeMismatchError(key, "int", value)
	}
	return toolbox.AsInt(value), nil
}

// Float returns the value under key as float64. Numeric values widen,
// anything else is a type mismatch.
func (c *Context) Float(key string) (float64, error) {
	value, err := c.GetRequired(key)
	if err != nil {
		return 0, err
	}
	if !isNumeric(value) {
		return 0, types.NewTypeMismatchError(key, "float64", value)
	}
	return toolbox.AsFloat(value), nil
}

// Bool returns the value under key as bool.
func (c *Context) Bool(key string) (bool, error) {
	value, err := c.GetRequired(key)
	if err != nil {
		return false, err
	}
	actual, ok := value.(bool)
	if !ok {
		return false, types.NewTypeMismatchError(key, "bool", value)
	}
	return actual, nil
}

// String returns the value under key as string.
func (c *Context) String(key string) (string, error) {
	value, err := c.GetRequired(key)
	if err != nil {
		return "", err
	}
	actual, ok := value.(string)
	if !ok {
		return "", types.NewTypeMismatchError(key, "string", value)
	}
	return actual, nil
}

// Bytes returns the value under key as a byte sequence.
func (c *Context) Bytes(key string) ([]byte, error) {
	value, err := c.GetRequired(key)
	if err != nil {
		return nil, err
	}
	switch actual := value.(type) {
	case []byte:
		return actual, nil
	case string:
		return []byte(actual), nil
	}
	return nil, types.NewTypeMismatchError(key, "[]byte", value)
}

// Render returns an explicit string rendering of the scalar value under
// key. Unlike String this deliberately stringifies numbers and booleans;
// it backs branch discriminants and log formatting.
func (c *Context) Render(key string) (string, error) {
	value, err := c.GetRequired(key)
	if err != nil {
		return "", err
	}
	switch value.(type) {
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return toolbox.AsString(value), nil
	}
	return "", types.NewTypeMismatchError(key, "scalar", value)
}

func isNumeric(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
