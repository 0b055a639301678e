// FILE: lixenwraith/pexconfig/field.go
package pexconfig

import (
	"fmt"
	"reflect"
)

// Field describes one named, typed, documented attribute of a config type.
// A Field is shared by every instance of the types that declare it and holds
// no instance data; values live in the owning Config's storage.
type Field interface {
	// Name returns the attribute name stamped when the owning type was defined
	Name() string
	// Doc returns the documentation string, including any generated suffix
	Doc() string
	// Kind returns the field kind used in error messages, e.g. "RangeField"
	Kind() string
	// Optional reports whether the absent value passes validation
	Optional() bool
	// Default returns the declared default value
	Default() any
	// Get returns the stored value of this field in c, or the field itself when c is nil
	Get(c *Config) any
	// Validate checks the stored value of this field in c
	Validate(c *Config) error
	// History returns the recorded changes of this field in c, oldest first
	History(c *Config) []Change

	bind(name string) error
	init(c *Config) error
	set(c *Config, value any, p Provenance) error
	save(w *scriptWriter, c *Config) error
	toDict(c *Config) any
	rename(c *Config)
	copyFrom(dst, src *Config, p Provenance) error
	equal(a, b *Config) bool
}

// FieldOption configures a field at construction
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	def        any
	hasDefault bool
	optional   bool
	check      func(any) bool

	length    *int
	minLength *int
	maxLength *int
	listCheck func(any) bool
	itemCheck func(any) bool

	types      map[string]*Type
	restricted bool
	base       *Type
	hasBase    bool
}

func collectOptions(opts []FieldOption) fieldOptions {
	var o fieldOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Default sets the value a new instance starts with
func Default(value any) FieldOption {
	return func(o *fieldOptions) {
		o.def = value
		o.hasDefault = true
	}
}

// Optional lets the field validate while absent
func Optional() FieldOption {
	return func(o *fieldOptions) {
		o.optional = true
	}
}

// Check adds a predicate the present value must satisfy
func Check[T any](fn func(T) bool) FieldOption {
	return func(o *fieldOptions) {
		o.check = func(v any) bool {
			t, ok := v.(T)
			return ok && fn(t)
		}
	}
}

// Must panics if err is non-nil and returns f otherwise.
// Intended for package-level field and type declarations.
func Must[F any](f F, err error) F {
	if err != nil {
		panic(fmt.Sprintf("pexconfig: %v", err))
	}
	return f
}

// BasicField is the plain typed field. The specialized field kinds embed it.
type BasicField struct {
	self     Field
	name     string
	doc      string
	kind     string
	dtype    reflect.Type
	wrap     coercer
	def      any
	check    func(any) bool
	optional bool
}

// NewField creates a field holding values of type T
func NewField[T any](doc string, opts ...FieldOption) *BasicField {
	o := collectOptions(opts)
	f := newBasicField("Field", doc, reflect.TypeFor[T](), o)
	f.self = f
	return f
}

func newBasicField(kind, doc string, dtype reflect.Type, o fieldOptions) *BasicField {
	return &BasicField{
		doc:      doc,
		kind:     kind,
		dtype:    dtype,
		wrap:     wrapperFor(dtype),
		def:      o.def,
		check:    o.check,
		optional: o.optional,
	}
}

// Name returns the field name
func (f *BasicField) Name() string { return f.name }

// Doc returns the field documentation
func (f *BasicField) Doc() string { return f.doc }

// Kind returns the field kind
func (f *BasicField) Kind() string { return f.kind }

// Optional reports whether the field may be absent
func (f *BasicField) Optional() bool { return f.optional }

// Default returns the declared default
func (f *BasicField) Default() any { return f.def }

// DType returns the declared value type
func (f *BasicField) DType() reflect.Type { return f.dtype }

// Get returns the stored value, or the field itself when c is nil
func (f *BasicField) Get(c *Config) any {
	if c == nil {
		return f.self
	}
	return c.payload(f.name)
}

// History returns the recorded changes of this field in c
func (f *BasicField) History(c *Config) []Change {
	if c == nil {
		return nil
	}
	if s, ok := c.storage[f.name]; ok {
		return s.history.Changes()
	}
	return nil
}

func (f *BasicField) bind(name string) error {
	if f.name != "" && f.name != name {
		return fmt.Errorf("%w: field '%s' cannot also be declared as '%s'", ErrFieldReuse, f.name, name)
	}
	f.name = name
	return nil
}

func (f *BasicField) init(c *Config) error {
	return f.self.set(c, f.def, Provenance{Source: SourceDefault})
}

// set coerces value into the declared type, records it and stores it
func (f *BasicField) set(c *Config, value any, p Provenance) error {
	v, err := f.wrap(value)
	if err != nil {
		return fmt.Errorf("cannot set %s: %w", JoinNamePath(c.path, f.name, nil), err)
	}
	s := c.slot(f.name)
	s.history.append(v, p)
	s.payload = v
	return nil
}

// Validate performs the checks shared by every field kind: required values
// must be present, present values must have the declared type and pass the
// user predicate.
func (f *BasicField) Validate(c *Config) error {
	value := c.payload(f.name)
	if value == nil {
		if !f.optional {
			return newValidationError(f.self, c, nil, "Required value cannot be None")
		}
		return nil
	}
	if !isInstance(value, f.dtype) {
		return newValidationError(f.self, c, value, "Expected type '%s', got '%T'", f.dtype, value)
	}
	if f.check != nil && !f.check(value) {
		return newValidationError(f.self, c, value, "%v is not a valid value", value)
	}
	return nil
}

func (f *BasicField) save(w *scriptWriter, c *Config) error {
	return w.assign(JoinNamePath(c.path, f.name, nil), c.payload(f.name))
}

func (f *BasicField) toDict(c *Config) any {
	return c.payload(f.name)
}

func (f *BasicField) rename(*Config) {}

func (f *BasicField) copyFrom(dst, src *Config, p Provenance) error {
	return f.self.set(dst, src.payload(f.name), p)
}

func (f *BasicField) equal(a, b *Config) bool {
	return reflect.DeepEqual(a.payload(f.name), b.payload(f.name))
}
