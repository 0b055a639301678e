// FILE: lixenwraith/pexconfig/registry.go
package pexconfig

import (
	"fmt"
	"reflect"
)

// Registry is the stored value of a RegistryField: a map from string keys to
// nested configs, each key bound to one config type, plus an optional
// active selection. Entries are constructed lazily on first access.
type Registry struct {
	fullName   string
	base       *Type
	restricted bool
	types      map[string]*Type
	entries    map[string]*Config // a nil entry is an explicitly cleared key
	active     string
	selected   bool
	history    *History
}

func newRegistry(fullName string, base *Type, types map[string]*Type, restricted bool, history *History) *Registry {
	r := &Registry{
		fullName:   fullName,
		base:       base,
		restricted: restricted,
		types:      make(map[string]*Type, len(types)),
		entries:    make(map[string]*Config),
		history:    history,
	}
	for k, t := range types {
		r.types[k] = t
	}
	return r
}

// FullName returns the dotted path of the registry within its config tree
func (r *Registry) FullName() string { return r.fullName }

// Restricted reports whether the key set is fixed
func (r *Registry) Restricted() bool { return r.restricted }

// Base returns the type every entry must extend
func (r *Registry) Base() *Type { return r.base }

// Keys returns the bound keys in sorted order
func (r *Registry) Keys() []string { return sortedKeys(r.types) }

// Types returns a copy of the key to type bindings
func (r *Registry) Types() map[string]*Type {
	out := make(map[string]*Type, len(r.types))
	for k, t := range r.types {
		out[k] = t
	}
	return out
}

// Name returns the active key, if one is selected
func (r *Registry) Name() (string, bool) { return r.active, r.selected }

// History returns the selection history, oldest first
func (r *Registry) History() []Change { return r.history.Changes() }

// Get returns the entry for key, constructing a default instance of the
// bound type when the key has no entry yet or was cleared.
func (r *Registry) Get(key string) (*Config, error) {
	t, ok := r.types[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key '%s' in registry '%s'", ErrUnknownKey, key, r.fullName)
	}
	if e := r.entries[key]; e != nil {
		return e, nil
	}
	return r.materialize(key, t)
}

// peek returns the entry for key without storing a newly constructed one
func (r *Registry) peek(key string) (*Config, error) {
	if e := r.entries[key]; e != nil {
		return e, nil
	}
	t, ok := r.types[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key '%s' in registry '%s'", ErrUnknownKey, key, r.fullName)
	}
	return t.construct(JoinNamePath(r.fullName, "", key))
}

func (r *Registry) materialize(key string, t *Type) (*Config, error) {
	e, err := t.construct(JoinNamePath(r.fullName, "", key))
	if err != nil {
		return nil, err
	}
	r.entries[key] = e
	return e, nil
}

// Set assigns key. In an open registry an unbound key is bound to the type
// of value (a *Type, a *Config, or nil for the base type); a bound key never
// changes type. The value may be an instance of the bound type, the bound
// type itself (reset to defaults), a mapping (applied as an override) or nil.
func (r *Registry) Set(key string, value any) error {
	return r.set(key, value, Provenance{Source: SourceAssign})
}

// Delete clears the entry for key
func (r *Registry) Delete(key string) error {
	return r.set(key, nil, Provenance{Source: SourceAssign})
}

// Select makes key the active entry
func (r *Registry) Select(key string) error {
	return r.selectKey(key, Provenance{Source: SourceAssign})
}

// ClearSelection leaves the registry without an active entry
func (r *Registry) ClearSelection() {
	r.clearSelection(Provenance{Source: SourceAssign})
}

// Active returns the entry of the selected key, or nil when nothing is selected
func (r *Registry) Active() (*Config, error) {
	if !r.selected {
		return nil, nil
	}
	return r.Get(r.active)
}

// BindTypes binds additional keys. Rebinding a key to a different type is an
// error, as is any new key in a restricted registry.
func (r *Registry) BindTypes(types map[string]*Type) error {
	for _, k := range sortedKeys(types) {
		if err := r.bind(k, types[k]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) bind(key string, t *Type) error {
	if t == nil {
		return fmt.Errorf("%w: nil type for key '%s' in registry '%s'", ErrNotConfigType, key, r.fullName)
	}
	if bound, ok := r.types[key]; ok {
		if bound != t {
			return fmt.Errorf("%w: key '%s' in registry '%s' is bound to %s, cannot rebind to %s",
				ErrTypeMismatch, key, r.fullName, bound.name, t.name)
		}
		return nil
	}
	if r.restricted {
		return fmt.Errorf("%w: cannot register '%s' in restricted registry '%s'", ErrRestricted, key, r.fullName)
	}
	if !t.IsSubtypeOf(r.base) {
		return fmt.Errorf("%w: %s is not a %s, cannot register '%s' in registry '%s'",
			ErrTypeMismatch, t.name, r.base.name, key, r.fullName)
	}
	r.types[key] = t
	return nil
}

// boundType resolves the type of key, binding it from value in an open registry
func (r *Registry) boundType(key string, value any) (*Type, error) {
	if t, ok := r.types[key]; ok {
		switch v := value.(type) {
		case *Type:
			if v != t {
				return nil, fmt.Errorf("%w: key '%s' in registry '%s' is bound to %s, got %s",
					ErrTypeMismatch, key, r.fullName, t.name, v.name)
			}
		case *Config:
			if v != nil && v.typ != t {
				return nil, fmt.Errorf("%w: key '%s' in registry '%s' is bound to %s, got instance of %s",
					ErrTypeMismatch, key, r.fullName, t.name, v.typ.name)
			}
		}
		return t, nil
	}

	if r.restricted {
		return nil, fmt.Errorf("%w: cannot register '%s' in restricted registry '%s'", ErrRestricted, key, r.fullName)
	}

	var t *Type
	switch v := value.(type) {
	case nil:
		t = r.base
	case *Type:
		t = v
	case *Config:
		if v == nil {
			t = r.base
		} else {
			t = v.typ
		}
	default:
		return nil, fmt.Errorf("%w: cannot infer a type for key '%s' in registry '%s' from %T",
			ErrInvalidValue, key, r.fullName, value)
	}
	if err := r.bind(key, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) set(key string, value any, p Provenance) error {
	t, err := r.boundType(key, value)
	if err != nil {
		return err
	}
	name := JoinNamePath(r.fullName, "", key)
	current := r.entries[key]

	var source *Config
	switch v := value.(type) {
	case nil:
		r.entries[key] = nil
		return nil

	case *Config:
		if v == nil {
			r.entries[key] = nil
			return nil
		}
		source = v

	case *Type:
		fresh, err := t.construct(name)
		if err != nil {
			return err
		}
		source = fresh

	default:
		m, ok := asMap(value)
		if !ok {
			return fmt.Errorf("%w: registry entry '%s' must be of type %s, got %T", ErrInvalidValue, name, t.name, value)
		}
		if len(m) == 0 {
			r.entries[key] = nil
			return nil
		}
		if current == nil {
			if current, err = r.materialize(key, t); err != nil {
				return err
			}
		}
		return current.OverrideWith(m, p)
	}

	if current == nil {
		if current, err = r.materialize(key, t); err != nil {
			return err
		}
	}
	if source == current {
		return nil
	}
	return current.adopt(source, p)
}

func (r *Registry) selectKey(key string, p Provenance) error {
	if _, ok := r.types[key]; !ok {
		return fmt.Errorf("%w: unknown key '%s' in registry '%s'", ErrUnknownKey, key, r.fullName)
	}
	r.active, r.selected = key, true
	r.history.append(key, p)
	return nil
}

func (r *Registry) clearSelection(p Provenance) {
	r.active, r.selected = "", false
	r.history.append(nil, p)
}

func (r *Registry) rename(fullName string) {
	r.fullName = fullName
	for k, e := range r.entries {
		if e != nil {
			e.rename(JoinNamePath(fullName, "", k))
		}
	}
}

// RegistryField holds a Registry of nested configs with one active entry.
// Assigning a key to the field selects it; assigning nil clears the selection.
// Only the active entry takes part in validation and ToDict, while Save
// writes every materialized entry.
type RegistryField struct {
	*BasicField
	types      map[string]*Type
	restricted bool
	base       *Type
}

// Types declares the initial key to type bindings of a registry field
func Types(types map[string]*Type) FieldOption {
	return func(o *fieldOptions) { o.types = types }
}

// Restricted fixes the registry key set to the declared types
func Restricted() FieldOption {
	return func(o *fieldOptions) { o.restricted = true }
}

// Base sets the type every registry entry must extend. Defaults to BaseType.
func Base(t *Type) FieldOption {
	return func(o *fieldOptions) {
		o.base = t
		o.hasBase = true
	}
}

// NewRegistryField creates a registry field. The default, if given, is the
// initially selected key.
func NewRegistryField(doc string, opts ...FieldOption) (*RegistryField, error) {
	o := collectOptions(opts)
	if o.restricted && len(o.types) == 0 {
		return nil, ErrEmptyTypemap
	}

	base := BaseType
	if o.hasBase {
		if o.base == nil {
			return nil, fmt.Errorf("%w: registry base type is nil", ErrNotConfigType)
		}
		base = o.base
	}

	types := make(map[string]*Type, len(o.types))
	for _, k := range sortedKeys(o.types) {
		t := o.types[k]
		if t == nil || !t.IsSubtypeOf(base) {
			return nil, fmt.Errorf("%w: registry key '%s' must be a %s", ErrNotConfigType, k, base.name)
		}
		types[k] = t
	}

	f := &RegistryField{types: types, restricted: o.restricted, base: base}
	o.check = nil
	f.BasicField = newBasicField("RegistryField", doc, reflect.TypeFor[*Registry](), o)
	f.self = f
	return f, nil
}

// EntryBase returns the type every entry must extend
func (f *RegistryField) EntryBase() *Type { return f.base }

// Restricted reports whether the key set is fixed
func (f *RegistryField) Restricted() bool { return f.restricted }

// Registry returns the registry stored in c
func (f *RegistryField) Registry(c *Config) *Registry {
	r, _ := c.payload(f.name).(*Registry)
	return r
}

func (f *RegistryField) init(c *Config) error {
	s := c.slot(f.name)
	s.payload = newRegistry(JoinNamePath(c.path, f.name, nil), f.base, f.types, f.restricted, s.history)
	return f.set(c, f.def, Provenance{Source: SourceDefault})
}

// set selects the key given as value, or clears the selection for nil
func (f *RegistryField) set(c *Config, value any, p Provenance) error {
	r := f.Registry(c)
	switch v := value.(type) {
	case nil:
		r.clearSelection(p)
		return nil
	case string:
		return r.selectKey(v, p)
	default:
		return fmt.Errorf("%w: Cannot set RegistryField '%s' to '%v'", ErrInvalidValue, r.fullName, value)
	}
}

// Validate requires an active entry unless the field is optional and then
// validates that entry
func (f *RegistryField) Validate(c *Config) error {
	r := f.Registry(c)
	active, err := r.Active()
	if err != nil {
		return newValidationError(f, c, r.active, "%v", err)
	}
	if active == nil {
		if !f.optional {
			return newValidationError(f, c, nil, "Required field cannot be None")
		}
		return nil
	}
	return active.Validate()
}

// save writes the type bindings, every materialized entry, and the selection
func (f *RegistryField) save(w *scriptWriter, c *Config) error {
	r := f.Registry(c)
	types := make(map[string]any, len(r.types))
	for k, t := range r.types {
		w.importModule(t.Module())
		types[k] = t.name
	}
	if err := w.assign(r.fullName+".types", types); err != nil {
		return err
	}

	for _, k := range sortedKeys(r.entries) {
		e := r.entries[k]
		if e == nil {
			if err := w.assign(JoinNamePath(r.fullName, "", k), nil); err != nil {
				return err
			}
			continue
		}
		if err := e.save(w); err != nil {
			return err
		}
	}

	if !r.selected {
		return w.assign(r.fullName, nil)
	}
	return w.assign(r.fullName, r.active)
}

func (f *RegistryField) toDict(c *Config) any {
	active, err := f.Registry(c).Active()
	if err != nil || active == nil {
		return nil
	}
	return active.ToDict()
}

func (f *RegistryField) rename(c *Config) {
	f.Registry(c).rename(JoinNamePath(c.path, f.name, nil))
}

// copyFrom binds the source's types, copies its materialized entries and
// mirrors its selection
func (f *RegistryField) copyFrom(dst, src *Config, p Provenance) error {
	to, from := f.Registry(dst), f.Registry(src)
	if err := to.BindTypes(from.types); err != nil {
		return err
	}
	for _, k := range sortedKeys(from.entries) {
		e := from.entries[k]
		if e == nil {
			to.entries[k] = nil
			continue
		}
		if err := to.set(k, e, p); err != nil {
			return err
		}
	}
	if from.selected {
		return to.selectKey(from.active, p)
	}
	if to.selected {
		to.clearSelection(p)
	}
	return nil
}

// equal compares selections and entries. A key without an entry compares as
// a default instance of its bound type, since that is what Get would return.
func (f *RegistryField) equal(a, b *Config) bool {
	x, y := f.Registry(a), f.Registry(b)
	if x.selected != y.selected || x.active != y.active {
		return false
	}
	keys := make(map[string]bool, len(x.entries)+len(y.entries))
	for k := range x.entries {
		keys[k] = true
	}
	for k := range y.entries {
		keys[k] = true
	}
	for k := range keys {
		if x.entries[k] == nil && y.entries[k] == nil {
			continue
		}
		e, err := x.peek(k)
		if err != nil {
			return false
		}
		o, err := y.peek(k)
		if err != nil {
			return false
		}
		if !e.Equal(o) {
			return false
		}
	}
	return true
}
