// FILE: lixenwraith/pexconfig/type.go
package pexconfig

import (
	"fmt"
	"reflect"
)

// GetAs resolves path and converts its value to T using the same weak
// conversions as field assignment. Lists convert as slices, registries as
// their active key.
func GetAs[T any](c *Config, path string) (T, error) {
	var zero T
	val, err := c.Lookup(path)
	if err != nil {
		return zero, err
	}

	switch v := val.(type) {
	case *List:
		val = v.Items()
	case *Registry:
		name, ok := v.Name()
		if !ok {
			val = nil
		} else {
			val = name
		}
	}
	if val == nil {
		return zero, fmt.Errorf("value for path %s is None, cannot convert to %s", path, reflect.TypeFor[T]())
	}
	if typed, ok := val.(T); ok {
		return typed, nil
	}

	converted, err := wrapperFor(reflect.TypeFor[T]())(val)
	if err != nil {
		return zero, fmt.Errorf("path %s: %w", path, err)
	}
	return converted.(T), nil
}

// GetString retrieves a string value by path. Stringers are rendered with
// their String method; other values are converted weakly.
func (c *Config) GetString(path string) (string, error) {
	val, err := c.Lookup(path)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil // Treat None as empty string for convenience
	}
	if s, ok := val.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return GetAs[string](c, path)
}

// GetInt64 retrieves an int64 value by path
func (c *Config) GetInt64(path string) (int64, error) {
	return GetAs[int64](c, path)
}

// GetFloat64 retrieves a float64 value by path
func (c *Config) GetFloat64(path string) (float64, error) {
	return GetAs[float64](c, path)
}

// GetBool retrieves a boolean value by path. Numbers convert as non-zero = true.
func (c *Config) GetBool(path string) (bool, error) {
	return GetAs[bool](c, path)
}
