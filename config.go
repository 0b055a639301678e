// FILE: lixenwraith/pexconfig/config.go
package pexconfig

import (
	"fmt"
	"sort"
)

// Config is an instance of a config Type: one storage slot per declared
// field, addressable by dotted and indexed paths. Nested configs are owned
// by the field that holds them and are never shared between containers.
// A Config is not safe for concurrent mutation.
type Config struct {
	typ     *Type
	path    string
	storage map[string]*slot
}

// Type returns the config's type
func (c *Config) Type() *Type { return c.typ }

// Path returns the dotted path of this config within its tree, "root" for a top-level instance
func (c *Config) Path() string { return c.path }

// Names returns the field names in declaration order
func (c *Config) Names() []string {
	names := make([]string, len(c.typ.fields))
	for i, f := range c.typ.fields {
		names[i] = f.Name()
	}
	return names
}

// Has reports whether the config declares a field called name
func (c *Config) Has(name string) bool {
	_, ok := c.typ.index[name]
	return ok
}

// Field returns the field declared under name
func (c *Config) Field(name string) (Field, bool) {
	return c.typ.Field(name)
}

// Get returns the stored value of the named field: a plain value, a *Config,
// a *List, a *Registry, or nil for the absent value.
func (c *Config) Get(name string) (any, error) {
	if !c.Has(name) {
		return nil, fmt.Errorf("%w: %s has no field '%s'", ErrUnknownField, c.typ.name, name)
	}
	return c.payload(name), nil
}

// Set assigns a value by path, e.g. "threshold", "sub.size" or "items[2]"
func (c *Config) Set(path string, value any) error {
	return c.SetWith(path, value, Provenance{Source: SourceAssign})
}

// SetWith assigns a value by path and records p as its provenance
func (c *Config) SetWith(path string, value any, p Provenance) error {
	return c.assign(path, value, p)
}

// Lookup resolves a path to its current value. An indexed path returns the
// registry entry or list item.
func (c *Config) Lookup(path string) (any, error) {
	t, err := c.getTarget(path, nil)
	if err != nil {
		return nil, err
	}
	value := t.cfg.payload(t.name)
	if !t.hasIndex {
		return value, nil
	}
	switch holder := value.(type) {
	case *Registry:
		return holder.Get(t.index.(string))
	case *List:
		i, err := listIndex(t.index)
		if err != nil {
			return nil, err
		}
		return holder.At(i)
	}
	return nil, fmt.Errorf("%w: '%s'", ErrNotIndexable, path)
}

// Override applies a possibly nested mapping of paths to values.
func (c *Config) Override(overrides map[string]any) error {
	return c.OverrideWith(overrides, Provenance{Source: SourceOverride})
}

// OverrideWith normalizes overrides into a flat path table and assigns every
// entry in sorted path order, recording p as provenance. The first failure
// aborts; entries already applied stay applied.
func (c *Config) OverrideWith(overrides map[string]any, p Provenance) error {
	norm, err := NormalizeDict(overrides)
	if err != nil {
		return err
	}
	for _, path := range sortedKeys(norm) {
		logger().Debug("applying override", "config", c.path, "path", path, "source", p.String())
		if err := c.assign(path, norm[path], p); err != nil {
			return fmt.Errorf("override '%s': %w", path, err)
		}
	}
	return nil
}

// Validate validates every field in declaration order and then runs the
// type's cross-field checks. The first failure is returned.
func (c *Config) Validate() error {
	for _, f := range c.typ.fields {
		if err := f.Validate(c); err != nil {
			return err
		}
	}
	for _, check := range c.typ.checks {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

// ToDict converts the config into a plain mapping of field name to value,
// recursing into nested configs and the active registry entries.
func (c *Config) ToDict() map[string]any {
	out := make(map[string]any, len(c.typ.fields))
	for _, f := range c.typ.fields {
		out[f.Name()] = f.toDict(c)
	}
	return out
}

// Equal reports whether other has the same type and equal stored values
func (c *Config) Equal(other *Config) bool {
	if other == nil || other.typ != c.typ {
		return false
	}
	for _, f := range c.typ.fields {
		if !f.equal(c, other) {
			return false
		}
	}
	return true
}

// String renders ToDict
func (c *Config) String() string {
	return fmt.Sprintf("%v", c.ToDict())
}

// History returns every field's recorded changes keyed by field name
func (c *Config) History() map[string][]Change {
	out := make(map[string][]Change, len(c.storage))
	for name, s := range c.storage {
		out[name] = s.history.Changes()
	}
	return out
}

// SetHistory replaces the recorded history of every field named in h.
// Unknown names are ignored. Lists and registries share the replaced log.
func (c *Config) SetHistory(h map[string][]Change) {
	for name, changes := range h {
		s, ok := c.storage[name]
		if !ok {
			continue
		}
		s.history.changes = append([]Change(nil), changes...)
	}
}

// rename moves the config to a new position in its tree, propagating to
// nested configs and registries
func (c *Config) rename(path string) {
	c.path = path
	for _, f := range c.typ.fields {
		f.rename(c)
	}
}

// adopt copies every field value of src, which must have the same type
func (c *Config) adopt(src *Config, p Provenance) error {
	if src.typ != c.typ {
		return fmt.Errorf("%w: cannot copy %s into %s", ErrTypeMismatch, src.typ.name, c.typ.name)
	}
	for _, f := range c.typ.fields {
		if err := f.copyFrom(c, src, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) slot(name string) *slot {
	s, ok := c.storage[name]
	if !ok {
		s = &slot{history: &History{}}
		c.storage[name] = s
	}
	return s
}

func (c *Config) payload(name string) any {
	if s, ok := c.storage[name]; ok {
		return s.payload
	}
	return nil
}

// target is the result of resolving a path: the config owning the final
// field, the field name and the optional index into the field's value
type target struct {
	cfg      *Config
	name     string
	index    any
	hasIndex bool
}

type pathStep struct {
	name    string
	index   any
	isIndex bool
}

// getTarget walks a parsed path. Names and string indices select fields of
// configs, string indices select registry entries and integer indices select
// list items. Only the final step may index into a field's value directly.
// When materialize is set, absent nested configs along the way are
// constructed with that provenance; otherwise they are an error.
func (c *Config) getTarget(path string, materialize *Provenance) (target, error) {
	parsed, err := ParsePath(path)
	if err != nil {
		return target{}, err
	}

	var steps []pathStep
	for _, seg := range parsed {
		steps = append(steps, pathStep{name: seg.Name})
		for _, idx := range seg.Indices {
			steps = append(steps, pathStep{index: idx, isIndex: true})
		}
	}

	var (
		cur   any = c
		owner *Config
		name  string
	)
	for k, st := range steps {
		last := k == len(steps)-1

		switch v := cur.(type) {
		case *Config:
			fname := st.name
			if st.isIndex {
				s, ok := st.index.(string)
				if !ok {
					return target{}, fmt.Errorf("%w: config '%s' cannot be indexed by %v in '%s'", ErrNotIndexable, v.path, st.index, path)
				}
				fname = s
			}
			f, ok := v.typ.Field(fname)
			if !ok {
				return target{}, fmt.Errorf("%w: %s has no field '%s' (resolving '%s')", ErrUnknownField, v.typ.name, fname, path)
			}
			if last {
				return target{cfg: v, name: fname}, nil
			}
			owner, name = v, fname
			next := v.payload(fname)
			if next == nil {
				cf, isConfigField := f.(*ConfigField)
				if !isConfigField || materialize == nil {
					return target{}, fmt.Errorf("%w: '%s' is None, cannot resolve '%s'", ErrNotIndexable, JoinNamePath(v.path, fname, nil), path)
				}
				if err := cf.set(v, cf.typ, *materialize); err != nil {
					return target{}, err
				}
				next = v.payload(fname)
			}
			cur = next

		case *Registry:
			if !st.isIndex {
				if st.name != "active" || last {
					return target{}, fmt.Errorf("%w: registry '%s' has no attribute '%s'", ErrUnknownField, v.fullName, st.name)
				}
				active, err := v.Active()
				if err != nil {
					return target{}, err
				}
				if active == nil {
					return target{}, fmt.Errorf("%w: registry '%s' has no active entry", ErrNotIndexable, v.fullName)
				}
				cur, owner = active, nil
				continue
			}
			key, ok := st.index.(string)
			if !ok {
				return target{}, fmt.Errorf("%w: registry '%s' keys are strings, got %v", ErrInvalidValue, v.fullName, st.index)
			}
			if last {
				if owner == nil {
					return target{}, fmt.Errorf("%w: '%s'", ErrNotIndexable, path)
				}
				return target{cfg: owner, name: name, index: key, hasIndex: true}, nil
			}
			entry, err := v.Get(key)
			if err != nil {
				return target{}, err
			}
			cur, owner = entry, nil

		case *List:
			if !st.isIndex {
				return target{}, fmt.Errorf("%w: list '%s' has no attribute '%s'", ErrUnknownField, v.path, st.name)
			}
			i, err := listIndex(st.index)
			if err != nil {
				return target{}, err
			}
			if last {
				if owner == nil {
					return target{}, fmt.Errorf("%w: '%s'", ErrNotIndexable, path)
				}
				return target{cfg: owner, name: name, index: i, hasIndex: true}, nil
			}
			item, err := v.At(i)
			if err != nil {
				return target{}, err
			}
			cur, owner = item, nil

		default:
			return target{}, fmt.Errorf("%w: cannot descend into %T while resolving '%s'", ErrNotIndexable, cur, path)
		}
	}
	return target{}, fmt.Errorf("%w: '%s'", ErrMalformedPath, path)
}

// assign resolves path and stores value at the field or indexed element
func (c *Config) assign(path string, value any, p Provenance) error {
	t, err := c.getTarget(path, &p)
	if err != nil {
		return err
	}
	f, _ := t.cfg.typ.Field(t.name)
	if !t.hasIndex {
		return f.set(t.cfg, value, p)
	}

	switch holder := t.cfg.payload(t.name).(type) {
	case *Registry:
		return holder.set(t.index.(string), value, p)
	case *List:
		return holder.setAt(t.index.(int), value, p)
	}
	return fmt.Errorf("%w: '%s'", ErrNotIndexable, path)
}

// leafPaths lists every addressable leaf path below c: plain fields, list
// fields as a whole, fields of nested configs, registry selections and the
// fields of every materialized registry entry
func (c *Config) leafPaths() []string {
	var out []string
	var walk func(cfg *Config, prefix string)
	walk = func(cfg *Config, prefix string) {
		for _, f := range cfg.typ.fields {
			p := JoinNamePath(prefix, f.Name(), nil)
			switch v := cfg.payload(f.Name()).(type) {
			case *Config:
				walk(v, p)
			case *Registry:
				out = append(out, p)
				for _, k := range sortedKeys(v.entries) {
					if e := v.entries[k]; e != nil {
						walk(e, JoinNamePath(p, "", k))
					}
				}
			default:
				out = append(out, p)
			}
		}
	}
	walk(c, "")
	sort.Strings(out)
	return out
}
