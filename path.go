// FILE: lixenwraith/pexconfig/path.go
package pexconfig

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// PathSegment is one dotted component of a field path with its bracket indices.
type PathSegment struct {
	Name    string
	Indices []any // int or string literals, outermost first
}

// Path is a parsed field path such as a.b[5].c["x"].
type Path []PathSegment

// String renders the path in canonical form.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Name)
		for _, idx := range seg.Indices {
			b.WriteString("[" + formatIndex(idx) + "]")
		}
	}
	return b.String()
}

// JoinNamePath builds the dotted name of a nested element.
// An empty name yields the prefix alone; a nil index adds no brackets.
func JoinNamePath(prefix, name string, index any) string {
	full := name
	switch {
	case name == "":
		full = prefix
	case prefix != "":
		full = prefix + "." + name
	}
	if index != nil {
		full += "[" + formatIndex(index) + "]"
	}
	return full
}

// formatIndex renders an index literal the way ParsePath reads it back
func formatIndex(index any) string {
	switch v := index.(type) {
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParsePath parses the dotted/bracket field path grammar:
//
//	path    := segment ("." segment)*
//	segment := ident ("[" literal "]")*
//	literal := integer | 'string' | "string"
//
// Only names and literal indices are understood.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}

	var path Path
	i := 0
	for {
		start := i
		for i < len(s) && isIdentChar(s[i], i == start) {
			i++
		}
		if i == start {
			return nil, fmt.Errorf("%w '%s': expected field name at offset %d", ErrMalformedPath, s, start)
		}
		seg := PathSegment{Name: s[start:i]}

		for i < len(s) && s[i] == '[' {
			idx, n, err := parseIndex(s[i:])
			if err != nil {
				return nil, fmt.Errorf("%w '%s': %v", ErrMalformedPath, s, err)
			}
			seg.Indices = append(seg.Indices, idx)
			i += n
		}
		path = append(path, seg)

		if i == len(s) {
			return path, nil
		}
		if s[i] != '.' {
			return nil, fmt.Errorf("%w '%s': unexpected %q at offset %d", ErrMalformedPath, s, s[i], i)
		}
		i++
		if i == len(s) {
			return nil, fmt.Errorf("%w '%s': trailing dot", ErrMalformedPath, s)
		}
	}
}

// parseIndex reads one "[literal]" group at the start of s and returns the
// literal and the number of bytes consumed
func parseIndex(s string) (any, int, error) {
	j := 1
	for j < len(s) && s[j] == ' ' {
		j++
	}
	if j >= len(s) {
		return nil, 0, fmt.Errorf("unbalanced brackets")
	}

	var value any
	if q := s[j]; q == '"' || q == '\'' {
		end := j + 1
		for end < len(s) && s[end] != q {
			if s[end] == '\\' {
				end++
			}
			end++
		}
		if end >= len(s) {
			return nil, 0, fmt.Errorf("unterminated string index")
		}
		raw := s[j : end+1]
		if q == '"' {
			unq, err := strconv.Unquote(raw)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid string index %s", raw)
			}
			value = unq
		} else {
			value = strings.ReplaceAll(raw[1:len(raw)-1], `\'`, `'`)
		}
		j = end + 1
	} else {
		end := j
		for end < len(s) && s[end] != ']' && s[end] != '[' && s[end] != ' ' {
			end++
		}
		token := s[j:end]
		n, err := strconv.Atoi(token)
		if err != nil {
			if token == "" {
				return nil, 0, fmt.Errorf("empty index")
			}
			return nil, 0, fmt.Errorf("index %q is not an integer or quoted string", token)
		}
		value = n
		j = end
	}

	for j < len(s) && s[j] == ' ' {
		j++
	}
	if j >= len(s) || s[j] != ']' {
		return nil, 0, fmt.Errorf("unbalanced brackets")
	}
	return value, j + 1, nil
}

func isIdentChar(c byte, first bool) bool {
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
	if first {
		return isLetter
	}
	return isLetter || (c >= '0' && c <= '9')
}

// isValidFieldName reports whether name is a bare identifier usable as a field name
func isValidFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isIdentChar(name[i], i == 0) {
			return false
		}
	}
	return true
}

// NormalizeDict flattens a nested override mapping into a flat table of
// path -> value. A non-empty nested mapping under key k contributes entries
// keyed k[subkey], recursively. Two entries where one path equals or is a
// prefix of the other are rejected as ambiguous.
func NormalizeDict(m map[string]any) (map[string]any, error) {
	norm := make(map[string]any)
	var seen []string

	add := func(key string, value any) error {
		canon := canonicalKey(key)
		for _, existing := range seen {
			if pathsOverlap(existing, canon) {
				return fmt.Errorf("%w: multiple values for %s", ErrAmbiguousOverride, key)
			}
		}
		seen = append(seen, canon)
		norm[key] = value
		return nil
	}

	for _, k := range sortedKeys(m) {
		v := m[k]
		sub, isMap := asMap(v)
		if !isMap || len(sub) == 0 {
			if err := add(k, v); err != nil {
				return nil, err
			}
			continue
		}

		flat, err := NormalizeDict(sub)
		if err != nil {
			return nil, err
		}
		for _, rel := range sortedKeys(flat) {
			if err := add(k+indexedSuffix(rel), flat[rel]); err != nil {
				return nil, err
			}
		}
	}
	return norm, nil
}

// indexedSuffix turns a relative normalized key into a bracket suffix:
// "A" -> ["A"], "A[\"x\"]" -> ["A"]["x"]. Keys that are already dotted
// paths keep their tail after the first bracketed component.
func indexedSuffix(rel string) string {
	head, tail := rel, ""
	if i := strings.IndexAny(rel, ".["); i > 0 {
		head, tail = rel[:i], rel[i:]
	}
	return "[" + strconv.Quote(head) + "]" + tail
}

// canonicalKey renders key in the single spelling used for conflict checks.
// Quoting and integer signs are normalized, and a string index that is a
// valid identifier becomes a dotted segment, so sub["size"], sub['size']
// and sub.size compare equal. Keys that do not parse are left as they are
// and fail later at resolution.
func canonicalKey(key string) string {
	p, err := ParsePath(key)
	if err != nil {
		return key
	}
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Name)
		for _, idx := range seg.Indices {
			if name, ok := idx.(string); ok && isValidFieldName(name) {
				b.WriteString("." + name)
				continue
			}
			b.WriteString("[" + formatIndex(idx) + "]")
		}
	}
	return b.String()
}

// pathsOverlap reports whether a equals b or one is a prefix of the other
// at a path boundary
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	if !strings.HasPrefix(b, a) {
		return false
	}
	next := b[len(a)]
	return next == '.' || next == '['
}

// asMap accepts the nested mapping shapes produced by the TOML, YAML and
// JSON decoders
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
