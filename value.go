// FILE: lixenwraith/pexconfig/value.go
package pexconfig

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// coercer converts a raw assigned value into the declared field type.
// A nil input always yields nil (the absent value).
type coercer func(value any) (any, error)

// wrapperCache maps a declared field type to its coercer. Entries are added
// when fields are constructed and only read afterwards; the first writer wins.
var wrapperCache = struct {
	sync.RWMutex
	m map[reflect.Type]coercer
}{m: make(map[reflect.Type]coercer)}

// wrapperFor returns the cached coercer for t, creating it on first use
func wrapperFor(t reflect.Type) coercer {
	wrapperCache.RLock()
	w, ok := wrapperCache.m[t]
	wrapperCache.RUnlock()
	if ok {
		return w
	}

	wrapperCache.Lock()
	defer wrapperCache.Unlock()
	if w, ok = wrapperCache.m[t]; ok {
		return w
	}
	w = newCoercer(t)
	wrapperCache.m[t] = w
	return w
}

func newCoercer(t reflect.Type) coercer {
	return func(value any) (any, error) {
		if value == nil {
			return nil, nil
		}
		vt := reflect.TypeOf(value)
		if vt == t {
			return value, nil
		}
		if t.Kind() == reflect.Interface {
			if vt.Implements(t) {
				return value, nil
			}
			return nil, fmt.Errorf("%w: %T does not implement %s", ErrInvalidValue, value, t)
		}

		out := reflect.New(t)
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           out.Interface(),
			WeaklyTypedInput: true,
			DecodeHook:       decodeHook(),
		})
		if err != nil {
			return nil, fmt.Errorf("decoder creation failed: %w", err)
		}
		if err := decoder.Decode(value); err != nil {
			return nil, fmt.Errorf("%w: cannot convert %v (%T) to %s: %v", ErrInvalidValue, value, value, t, err)
		}
		return out.Elem().Interface(), nil
	}
}

// isInstance reports whether a stored value matches the declared type
func isInstance(value any, t reflect.Type) bool {
	if value == nil {
		return true
	}
	vt := reflect.TypeOf(value)
	if t.Kind() == reflect.Interface {
		return vt.Implements(t)
	}
	return vt == t
}

// slot is one storage entry of a Config: the boxed payload plus its history.
// The payload is nil for the absent value, a *Config for config fields,
// a *List for list fields and a *Registry for registry fields.
type slot struct {
	payload any
	history *History
}
