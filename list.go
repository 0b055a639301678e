// FILE: lixenwraith/pexconfig/list.go
package pexconfig

import (
	"fmt"
	"reflect"
	"strconv"
)

// List is the stored value of a ListField: the items plus the field's
// append-only history. Every mutation records a snapshot of the whole list.
type List struct {
	items   []any
	wrap    coercer
	history *History
	path    string
}

// Len returns the number of items
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the items
func (l *List) Items() []any {
	out := make([]any, len(l.items))
	copy(out, l.items)
	return out
}

// At returns the item at index i; negative indices count from the end
func (l *List) At(i int) (any, error) {
	idx, err := l.normalize(i, false)
	if err != nil {
		return nil, err
	}
	return l.items[idx], nil
}

// Set replaces the item at index i
func (l *List) Set(i int, value any) error {
	return l.setAt(i, value, Provenance{Source: SourceAssign})
}

// Append adds items to the end of the list
func (l *List) Append(values ...any) error {
	items := make([]any, 0, len(values))
	for _, v := range values {
		item, err := l.coerce(len(l.items)+len(items), v)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	l.items = append(l.items, items...)
	l.record(Provenance{Source: SourceAssign})
	return nil
}

// Insert places value before index i
func (l *List) Insert(i int, value any) error {
	idx, err := l.normalize(i, true)
	if err != nil {
		return err
	}
	item, err := l.coerce(idx, value)
	if err != nil {
		return err
	}
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = item
	l.record(Provenance{Source: SourceAssign})
	return nil
}

// Delete removes the item at index i
func (l *List) Delete(i int) error {
	idx, err := l.normalize(i, false)
	if err != nil {
		return err
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	l.record(Provenance{Source: SourceAssign})
	return nil
}

// History returns the list's recorded snapshots, oldest first
func (l *List) History() []Change { return l.history.Changes() }

// String renders the items
func (l *List) String() string { return fmt.Sprintf("%v", l.items) }

func (l *List) setAt(i int, value any, p Provenance) error {
	idx, err := l.normalize(i, false)
	if err != nil {
		return err
	}
	item, err := l.coerce(idx, value)
	if err != nil {
		return err
	}
	l.items[idx] = item
	l.record(p)
	return nil
}

func (l *List) coerce(i int, value any) (any, error) {
	item, err := l.wrap(value)
	if err != nil {
		return nil, fmt.Errorf("%s[%d]: %w", l.path, i, err)
	}
	return item, nil
}

func (l *List) normalize(i int, insert bool) (int, error) {
	n := len(l.items)
	if i < 0 {
		i += n
	}
	limit := n
	if insert {
		limit = n + 1
	}
	if i < 0 || i >= limit {
		return 0, fmt.Errorf("%w: index %d out of range for %s (length %d)", ErrInvalidValue, i, l.path, n)
	}
	return i, nil
}

func (l *List) record(p Provenance) {
	l.history.append(l.Items(), p)
}

// listIndex accepts integer indices and their decimal string form, which is
// how mapping keys from TOML, YAML and JSON arrive
func listIndex(index any) (int, error) {
	switch v := index.(type) {
	case int:
		return v, nil
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: list index must be an integer, got %v", ErrNotIndexable, index)
}

// ListField holds a list of items of type T with optional length limits
// and whole-list and per-item predicates.
type ListField[T any] struct {
	*BasicField
	itemType  reflect.Type
	itemWrap  coercer
	length    *int
	minLength *int
	maxLength *int
	listCheck func(any) bool
	itemCheck func(any) bool
}

// Length requires the list to have exactly n items
func Length(n int) FieldOption {
	return func(o *fieldOptions) { o.length = &n }
}

// MinLength requires at least n items
func MinLength(n int) FieldOption {
	return func(o *fieldOptions) { o.minLength = &n }
}

// MaxLength allows at most n items
func MaxLength(n int) FieldOption {
	return func(o *fieldOptions) { o.maxLength = &n }
}

// ListCheck adds a predicate over the whole list
func ListCheck[T any](fn func([]T) bool) FieldOption {
	return func(o *fieldOptions) {
		o.listCheck = func(v any) bool {
			items, ok := v.([]any)
			if !ok {
				return false
			}
			typed := make([]T, len(items))
			for i, item := range items {
				t, ok := item.(T)
				if !ok {
					return false
				}
				typed[i] = t
			}
			return fn(typed)
		}
	}
}

// ItemCheck adds a predicate every item must satisfy
func ItemCheck[T any](fn func(T) bool) FieldOption {
	return func(o *fieldOptions) {
		o.itemCheck = func(v any) bool {
			t, ok := v.(T)
			return ok && fn(t)
		}
	}
}

// NewListField creates a field holding a list of T
func NewListField[T any](doc string, opts ...FieldOption) *ListField[T] {
	o := collectOptions(opts)
	itemType := reflect.TypeFor[T]()
	f := &ListField[T]{
		itemType:  itemType,
		itemWrap:  wrapperFor(itemType),
		length:    o.length,
		minLength: o.minLength,
		maxLength: o.maxLength,
		listCheck: o.listCheck,
		itemCheck: o.itemCheck,
	}
	o.check = nil
	f.BasicField = newBasicField("ListField", doc, reflect.TypeFor[*List](), o)
	f.self = f
	return f
}

// ItemType returns the declared item type
func (f *ListField[T]) ItemType() reflect.Type { return f.itemType }

// set accepts nil, a *List, any slice or array, or a comma-separated string
func (f *ListField[T]) set(c *Config, value any, p Provenance) error {
	path := JoinNamePath(c.path, f.name, nil)
	s := c.slot(f.name)

	if value == nil {
		s.history.append(nil, p)
		s.payload = nil
		return nil
	}

	raw, err := f.toItems(value)
	if err != nil {
		return fmt.Errorf("cannot set %s: %w", path, err)
	}

	l := &List{items: make([]any, 0, len(raw)), wrap: f.itemWrap, history: s.history, path: path}
	for i, v := range raw {
		item, err := l.coerce(i, v)
		if err != nil {
			return fmt.Errorf("cannot set %s: %w", path, err)
		}
		l.items = append(l.items, item)
	}
	s.history.append(l.Items(), p)
	s.payload = l
	return nil
}

func (f *ListField[T]) toItems(value any) ([]any, error) {
	switch v := value.(type) {
	case *List:
		return v.Items(), nil
	case []any:
		return v, nil
	case string:
		converted, err := wrapperFor(reflect.SliceOf(f.itemType))(v)
		if err != nil {
			return nil, err
		}
		value = converted
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected a list, got %T", ErrInvalidValue, value)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// Validate applies the base checks, then the length limits (exact length
// first), the list predicate, and finally each item's type and predicate.
func (f *ListField[T]) Validate(c *Config) error {
	if err := f.BasicField.Validate(c); err != nil {
		return err
	}
	l, ok := c.payload(f.name).(*List)
	if !ok {
		return nil
	}

	n := l.Len()
	switch {
	case f.length != nil && n != *f.length:
		return newValidationError(f, c, l.Items(), "Required list length=%d, got length=%d", *f.length, n)
	case f.length == nil && f.minLength != nil && n < *f.minLength:
		return newValidationError(f, c, l.Items(), "Minimum allowed list length=%d, got length=%d", *f.minLength, n)
	case f.length == nil && f.maxLength != nil && n > *f.maxLength:
		return newValidationError(f, c, l.Items(), "Maximum allowed list length=%d, got length=%d", *f.maxLength, n)
	case f.listCheck != nil && !f.listCheck(l.Items()):
		return newValidationError(f, c, l.Items(), "%v is not a valid value", l.items)
	}

	for i, item := range l.items {
		coerced, err := f.itemWrap(item)
		if err != nil || coerced == nil {
			return newValidationError(f, c, item, "Invalid value %v at position %d", item, i)
		}
		l.items[i] = coerced
		if f.itemCheck != nil && !f.itemCheck(coerced) {
			return newValidationError(f, c, item, "Invalid value %v at position %d", item, i)
		}
	}
	return nil
}

func (f *ListField[T]) save(w *scriptWriter, c *Config) error {
	path := JoinNamePath(c.path, f.name, nil)
	if l, ok := c.payload(f.name).(*List); ok {
		return w.assign(path, l.items)
	}
	return w.assign(path, nil)
}

func (f *ListField[T]) toDict(c *Config) any {
	if l, ok := c.payload(f.name).(*List); ok {
		return l.Items()
	}
	return nil
}

func (f *ListField[T]) equal(a, b *Config) bool {
	return reflect.DeepEqual(f.toDict(a), f.toDict(b))
}
