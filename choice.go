// FILE: lixenwraith/pexconfig/choice.go
package pexconfig

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// noneChoiceDoc describes the implicit None choice of an optional ChoiceField
const noneChoiceDoc = "Field is optional"

// ChoiceField restricts a value to a fixed set of allowed choices,
// each documented by a description.
type ChoiceField[T comparable] struct {
	*BasicField
	allowed map[T]string
}

// NewChoiceField creates a field whose value must be a key of allowed.
// An optional field also accepts None.
func NewChoiceField[T comparable](doc string, allowed map[T]string, opts ...FieldOption) (*ChoiceField[T], error) {
	if len(allowed) == 0 {
		return nil, ErrEmptyChoices
	}

	o := collectOptions(opts)
	dtype := reflect.TypeFor[T]()

	f := &ChoiceField[T]{allowed: make(map[T]string, len(allowed))}
	lines := make([]string, 0, len(allowed)+1)
	for choice, choiceDoc := range allowed {
		if dtype.Kind() != reflect.Interface && reflect.TypeOf(choice) != dtype {
			return nil, fmt.Errorf("%w: allowed choice %v is of type %T, expected %s", ErrDefinition, choice, choice, dtype)
		}
		f.allowed[choice] = choiceDoc
		lines = append(lines, fmt.Sprintf("\t%v\t%s\n", choice, choiceDoc))
	}
	sort.Strings(lines)
	if o.optional {
		lines = append(lines, "\tNone\t"+noneChoiceDoc+"\n")
	}

	f.BasicField = newBasicField("ChoiceField", doc+"\nAllowed values:\n"+strings.Join(lines, ""), dtype, o)
	f.self = f
	return f, nil
}

// Allowed returns a copy of the allowed choices and their descriptions
func (f *ChoiceField[T]) Allowed() map[T]string {
	out := make(map[T]string, len(f.allowed))
	for k, v := range f.allowed {
		out[k] = v
	}
	return out
}

// Validate applies the base checks and then membership in the allowed set
func (f *ChoiceField[T]) Validate(c *Config) error {
	if err := f.BasicField.Validate(c); err != nil {
		return err
	}
	value := c.payload(f.name)
	if value == nil {
		return nil
	}
	if _, ok := f.allowed[value.(T)]; !ok {
		return newValidationError(f, c, value, "Value ('%v') is not allowed", value)
	}
	return nil
}
