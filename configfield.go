// FILE: lixenwraith/pexconfig/configfield.go
package pexconfig

import (
	"fmt"
	"reflect"
)

// ConfigField holds a nested config of a fixed type. The nested instance is
// owned by the field: assignments are applied onto the existing instance
// rather than replacing it, so its history carries over.
type ConfigField struct {
	*BasicField
	typ *Type
}

// NewConfigField creates a field holding a nested instance of typ.
// A required field without an explicit default starts with a default
// constructed instance.
func NewConfigField(doc string, typ *Type, opts ...FieldOption) (*ConfigField, error) {
	if typ == nil {
		return nil, fmt.Errorf("%w: config field requires a type", ErrNotConfigType)
	}

	o := collectOptions(opts)
	if !o.hasDefault && !o.optional {
		o.def = typ
	}

	f := &ConfigField{typ: typ}
	f.BasicField = newBasicField("ConfigField", doc, reflect.TypeFor[*Config](), o)
	f.self = f
	return f, nil
}

// ConfigType returns the declared nested type
func (f *ConfigField) ConfigType() *Type { return f.typ }

// set accepts an instance of the declared type (its values are copied in),
// the declared type itself (reset to defaults), a mapping (applied as an
// override), or nil and the empty mapping (clear to absent).
func (f *ConfigField) set(c *Config, value any, p Provenance) error {
	path := JoinNamePath(c.path, f.name, nil)
	s := c.slot(f.name)
	current, _ := s.payload.(*Config)

	var snapshot any
	switch v := value.(type) {
	case nil:
		return f.clear(s, p)

	case *Config:
		if v == nil {
			return f.clear(s, p)
		}
		if v.typ != f.typ {
			return fmt.Errorf("%w: ConfigField '%s' expects %s, got %s", ErrTypeMismatch, path, f.typ.name, v.typ.name)
		}
		if current == nil {
			fresh, err := f.typ.construct(path)
			if err != nil {
				return err
			}
			current = fresh
		}
		if v != current {
			if err := current.adopt(v, p); err != nil {
				return err
			}
		}
		snapshot = v.ToDict()

	case *Type:
		if v != f.typ {
			return fmt.Errorf("%w: ConfigField '%s' expects %s, got %s", ErrTypeMismatch, path, f.typ.name, v.name)
		}
		fresh, err := f.typ.construct(path)
		if err != nil {
			return err
		}
		if current == nil {
			current = fresh
		} else if err := current.adopt(fresh, p); err != nil {
			return err
		}
		snapshot = v.name

	default:
		m, ok := asMap(value)
		if !ok {
			return fmt.Errorf("%w: Cannot set ConfigField '%s' to '%v'", ErrInvalidValue, path, value)
		}
		if len(m) == 0 {
			return f.clear(s, p)
		}
		if current == nil {
			fresh, err := f.typ.construct(path)
			if err != nil {
				return err
			}
			current = fresh
		}
		if err := current.OverrideWith(m, p); err != nil {
			return err
		}
		snapshot = m
	}

	s.history.append(snapshot, p)
	s.payload = current
	return nil
}

func (f *ConfigField) clear(s *slot, p Provenance) error {
	s.history.append(nil, p)
	s.payload = nil
	return nil
}

// Validate applies the base checks and then validates the nested config
func (f *ConfigField) Validate(c *Config) error {
	if err := f.BasicField.Validate(c); err != nil {
		return err
	}
	if sub, ok := c.payload(f.name).(*Config); ok && sub != nil {
		return sub.Validate()
	}
	return nil
}

func (f *ConfigField) save(w *scriptWriter, c *Config) error {
	if sub, ok := c.payload(f.name).(*Config); ok && sub != nil {
		return sub.save(w)
	}
	return w.assign(JoinNamePath(c.path, f.name, nil), nil)
}

func (f *ConfigField) toDict(c *Config) any {
	if sub, ok := c.payload(f.name).(*Config); ok && sub != nil {
		return sub.ToDict()
	}
	return nil
}

func (f *ConfigField) rename(c *Config) {
	if sub, ok := c.payload(f.name).(*Config); ok && sub != nil {
		sub.rename(JoinNamePath(c.path, f.name, nil))
	}
}

func (f *ConfigField) equal(a, b *Config) bool {
	x, _ := a.payload(f.name).(*Config)
	y, _ := b.payload(f.name).(*Config)
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return x.Equal(y)
}
