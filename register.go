// FILE: lixenwraith/pexconfig/register.go
package pexconfig

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Type is a config schema: a qualified name, a base type and an ordered
// field table. Types are defined once through DefineType and shared by every
// instance; they are never modified afterwards.
type Type struct {
	name   string
	doc    string
	base   *Type
	fields []Field
	index  map[string]int
	checks []func(*Config) error
}

// TypeOption configures a type definition
type TypeOption func(*typeDef)

type typeDef struct {
	base   *Type
	doc    string
	fields []namedField
	checks []func(*Config) error
}

type namedField struct {
	name  string
	field Field
}

// Extends sets the base type whose fields are inherited
func Extends(base *Type) TypeOption {
	return func(d *typeDef) { d.base = base }
}

// WithField declares a field. A name already declared by a base type
// replaces the inherited field at its position.
func WithField(name string, f Field) TypeOption {
	return func(d *typeDef) { d.fields = append(d.fields, namedField{name: name, field: f}) }
}

// WithCheck adds a cross-field check run by Validate after every field validated
func WithCheck(fn func(*Config) error) TypeOption {
	return func(d *typeDef) { d.checks = append(d.checks, fn) }
}

// WithDoc sets the type documentation
func WithDoc(doc string) TypeOption {
	return func(d *typeDef) { d.doc = doc }
}

// typeRegistry records every defined type by qualified name. Script loading
// resolves constructor and type references through it.
var typeRegistry = struct {
	sync.RWMutex
	types   map[string]*Type
	modules map[string]bool
}{types: make(map[string]*Type), modules: make(map[string]bool)}

// BaseType is the root config type every defined type extends. It has no
// fields and is registered directly rather than through DefineType.
var BaseType = registerBaseType()

func registerBaseType() *Type {
	t := &Type{name: "pexconfig.Config", doc: "Base class for config objects", index: make(map[string]int)}
	typeRegistry.types[t.name] = t
	typeRegistry.modules[t.Module()] = true
	return t
}

// DefineType builds and registers a config type. The name is qualified by
// its module, e.g. "isr.IsrConfig" or "lsst.ip.isr.IsrConfig"; it must be
// unique in the process. Every field is stamped with its declared name, and
// a probe instance is constructed so that defaults which cannot be coerced
// fail here rather than at first use.
func DefineType(name string, opts ...TypeOption) (*Type, error) {
	if err := validateTypeName(name); err != nil {
		return nil, err
	}

	var d typeDef
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}

	typeRegistry.Lock()
	defer typeRegistry.Unlock()

	if _, exists := typeRegistry.types[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}

	t := &Type{name: name, doc: d.doc, base: d.base, index: make(map[string]int)}
	if t.base == nil {
		t.base = BaseType
	}
	t.fields = append(t.fields, t.base.fields...)
	for i, f := range t.fields {
		t.index[f.Name()] = i
	}
	t.checks = append(t.checks, t.base.checks...)

	declared := make(map[string]bool, len(d.fields))
	for _, nf := range d.fields {
		if !isValidFieldName(nf.name) {
			return nil, fmt.Errorf("%w: '%s' in %s", ErrInvalidFieldName, nf.name, name)
		}
		if nf.field == nil {
			return nil, fmt.Errorf("%w: field '%s' of %s is nil", ErrDefinition, nf.name, name)
		}
		if declared[nf.name] {
			return nil, fmt.Errorf("%w: field '%s' declared twice in %s", ErrDefinition, nf.name, name)
		}
		declared[nf.name] = true

		if err := nf.field.bind(nf.name); err != nil {
			return nil, fmt.Errorf("defining %s: %w", name, err)
		}
		if i, ok := t.index[nf.name]; ok {
			t.fields[i] = nf.field
			continue
		}
		t.index[nf.name] = len(t.fields)
		t.fields = append(t.fields, nf.field)
	}
	for _, fn := range d.checks {
		if fn != nil {
			t.checks = append(t.checks, fn)
		}
	}

	if _, err := t.construct("root"); err != nil {
		return nil, fmt.Errorf("%w: defaults of %s: %v", ErrDefinition, name, err)
	}

	typeRegistry.types[name] = t
	typeRegistry.modules[t.Module()] = true
	logger().Debug("config type defined", "type", name, "fields", len(t.fields))
	return t, nil
}

// MustDefineType is like DefineType but panics on error.
// Intended for package-level type declarations.
func MustDefineType(name string, opts ...TypeOption) *Type {
	t, err := DefineType(name, opts...)
	if err != nil {
		panic(fmt.Sprintf("pexconfig: %v", err))
	}
	return t
}

// LookupType returns the registered type with the given qualified name
func LookupType(name string) (*Type, bool) {
	typeRegistry.RLock()
	defer typeRegistry.RUnlock()
	t, ok := typeRegistry.types[name]
	return t, ok
}

// moduleKnown reports whether any registered type lives in module
func moduleKnown(module string) bool {
	typeRegistry.RLock()
	defer typeRegistry.RUnlock()
	return typeRegistry.modules[module]
}

func validateTypeName(name string) error {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return fmt.Errorf("%w: type name '%s' must be qualified as module.Name", ErrDefinition, name)
	}
	for _, p := range parts {
		if !isValidFieldName(p) {
			return fmt.Errorf("%w: invalid segment '%s' in type name '%s'", ErrDefinition, p, name)
		}
	}
	return nil
}

// Name returns the qualified type name
func (t *Type) Name() string { return t.name }

// Module returns the module part of the qualified name
func (t *Type) Module() string { return t.name[:strings.LastIndexByte(t.name, '.')] }

// ShortName returns the unqualified type name
func (t *Type) ShortName() string { return t.name[strings.LastIndexByte(t.name, '.')+1:] }

// Doc returns the type documentation
func (t *Type) Doc() string { return t.doc }

// Base returns the type t extends, nil for BaseType
func (t *Type) Base() *Type { return t.base }

// String returns the qualified type name
func (t *Type) String() string { return t.name }

// Fields returns the field table in declaration order
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field returns the field declared under name
func (t *Type) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.fields[i], true
}

// IsSubtypeOf reports whether t is other or extends it
func (t *Type) IsSubtypeOf(other *Type) bool {
	for cur := t; cur != nil; cur = cur.base {
		if cur == other {
			return true
		}
	}
	return false
}

// New constructs an instance with every field at its default
func (t *Type) New() (*Config, error) {
	return t.construct("root")
}

// NewWith constructs an instance and applies overrides on top of the defaults
func (t *Type) NewWith(overrides map[string]any) (*Config, error) {
	c, err := t.construct("root")
	if err != nil {
		return nil, err
	}
	if err := c.Override(overrides); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is like New but panics on error
func (t *Type) MustNew() *Config {
	c, err := t.New()
	if err != nil {
		panic(fmt.Sprintf("pexconfig: %v", err))
	}
	return c
}

// construct allocates every storage slot first, so fields whose defaults
// reference siblings find them, then applies each default in table order
func (t *Type) construct(path string) (*Config, error) {
	c := &Config{typ: t, path: path, storage: make(map[string]*slot, len(t.fields))}
	for _, f := range t.fields {
		c.storage[f.Name()] = &slot{history: &History{}}
	}
	for _, f := range t.fields {
		if err := f.init(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefineStructType defines a type whose fields mirror the exported fields of
// a struct. Field names come from the `pex` tag (or the Go field name),
// docs from the `doc` tag, and defaults from the struct's values. Nested
// structs become config fields of an implicitly defined nested type.
func DefineStructType(name string, structWithDefaults any, opts ...TypeOption) (*Type, error) {
	v := reflect.ValueOf(structWithDefaults)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: DefineStructType requires a non-nil struct pointer or value", ErrDefinition)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: DefineStructType requires a struct or struct pointer, got %T", ErrDefinition, structWithDefaults)
	}

	var errs []string
	fieldOpts := structFields(v, name, &errs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: failed to define %d field(s): %s", ErrDefinition, len(errs), strings.Join(errs, "; "))
	}
	return DefineType(name, append(fieldOpts, opts...)...)
}

func structFields(v reflect.Value, typeName string, errs *[]string) []TypeOption {
	t := v.Type()
	var opts []TypeOption

	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		fv := v.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get("pex")
		if tag == "-" {
			continue
		}
		key := sf.Name
		if tag != "" {
			if parts := strings.Split(tag, ","); parts[0] != "" {
				key = parts[0]
			}
		}
		doc := sf.Tag.Get("doc")

		isPtrToStruct := fv.Kind() == reflect.Ptr && sf.Type.Elem().Kind() == reflect.Struct
		if fv.Kind() == reflect.Struct && !isSpecialStruct(sf.Type) || isPtrToStruct {
			nested := fv
			if isPtrToStruct {
				if fv.IsNil() {
					continue
				}
				nested = fv.Elem()
			}
			sub, err := DefineStructType(typeName+"_"+sf.Name, nested.Interface())
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("field %s: %v", sf.Name, err))
				continue
			}
			cf, err := NewConfigField(doc, sub)
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("field %s: %v", sf.Name, err))
				continue
			}
			opts = append(opts, WithField(key, cf))
			continue
		}

		f := newBasicField("Field", doc, sf.Type, fieldOptions{def: fv.Interface(), hasDefault: true})
		f.self = f
		opts = append(opts, WithField(key, f))
	}
	return opts
}

// isSpecialStruct reports struct types stored as plain values rather than
// nested configs
func isSpecialStruct(t reflect.Type) bool {
	switch t.PkgPath() + "." + t.Name() {
	case "time.Time", "net/url.URL":
		return true
	}
	return false
}
