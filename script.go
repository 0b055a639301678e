// FILE: lixenwraith/pexconfig/script.go
package pexconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// A config script is a line-oriented text file that rebuilds a config tree:
//
//	import isr
//	root=isr.IsrConfig()
//	root.gain=1.5
//	root.stats=isr.StatsConfig()
//	root.stats.clip=3
//	root.algo.types={"median" = "isr.MedianConfig"}
//	root.algo["median"]=isr.MedianConfig()
//	root.algo["median"].window=5
//	root.algo="median"
//
// Values are TOML literals or None. Loading understands only import lines,
// constructor lines, `.types=` bindings and literal assignments.

const scriptRoot = "root"

var constructorPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+)\(\)$`)

// scriptWriter accumulates the import set and the body of a script
type scriptWriter struct {
	imports map[string]bool
	lines   []string
}

func newScriptWriter() *scriptWriter {
	return &scriptWriter{imports: make(map[string]bool)}
}

func (w *scriptWriter) importModule(module string) {
	w.imports[module] = true
}

func (w *scriptWriter) construct(path string, t *Type) {
	w.importModule(t.Module())
	w.lines = append(w.lines, path+"="+t.name+"()")
}

func (w *scriptWriter) assign(path string, value any) error {
	lit, err := encodeLiteral(value, false)
	if err != nil {
		return fmt.Errorf("%w: cannot write %s: %v", ErrScript, path, err)
	}
	w.lines = append(w.lines, path+"="+lit)
	return nil
}

func (w *scriptWriter) writeTo(out io.Writer) error {
	bw := bufio.NewWriter(out)
	for _, m := range sortedKeys(w.imports) {
		if _, err := bw.WriteString("import " + m + "\n"); err != nil {
			return err
		}
	}
	for _, line := range w.lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// save writes the constructor line of c followed by every field's lines
func (c *Config) save(w *scriptWriter) error {
	w.construct(c.path, c.typ)
	for _, f := range c.typ.fields {
		if err := f.save(w, c); err != nil {
			return err
		}
	}
	return nil
}

// encodeLiteral renders a stored value as a script literal. Scalars are
// encoded by the TOML encoder; maps become inline tables.
func encodeLiteral(value any, nested bool) (string, error) {
	switch v := value.(type) {
	case nil:
		if nested {
			return "", fmt.Errorf("None cannot appear inside a list or table")
		}
		return "None", nil
	case time.Duration:
		return encodeLiteral(v.String(), nested)
	case *url.URL:
		if v == nil {
			return encodeLiteral(nil, nested)
		}
		return encodeLiteral(v.String(), nested)
	case *List:
		if v == nil {
			return encodeLiteral(nil, nested)
		}
		return encodeLiteral(v.items, nested)
	}

	if m, ok := asMap(value); ok {
		parts := make([]string, 0, len(m))
		for _, k := range sortedKeys(m) {
			key, err := encodeLiteral(k, true)
			if err != nil {
				return "", err
			}
			lit, err := encodeLiteral(m[k], true)
			if err != nil {
				return "", err
			}
			parts = append(parts, key+" = "+lit)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}

	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || rv.Kind() == reflect.Array {
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return encodeLiteral(nil, nested)
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			lit, err := encodeLiteral(rv.Index(i).Interface(), true)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]any{"v": value}); err != nil {
		return "", err
	}
	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, "v = ") || strings.Contains(out, "\n") {
		return "", fmt.Errorf("value of type %T has no literal form", value)
	}
	return strings.TrimPrefix(out, "v = "), nil
}

// decodeLiteral parses the right-hand side of an assignment line
func decodeLiteral(s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "None" {
		return nil, nil
	}
	var doc map[string]any
	if _, err := toml.Decode("v = "+s, &doc); err != nil {
		return nil, fmt.Errorf("invalid literal %q: %v", s, err)
	}
	return doc["v"], nil
}

// splitAssignment splits a line at the first '=' outside brackets and quotes
func splitAssignment(line string) (string, string, bool) {
	var quote byte
	depth := 0
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			depth--
		case ch == '=' && depth == 0:
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
		}
	}
	return "", "", false
}

// scriptLoader evaluates a script line by line in a fresh scope
type scriptLoader struct {
	name    string
	imports map[string]bool
	root    *Config
}

func (l *scriptLoader) errorf(line int, format string, args ...any) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrScript, l.name, line, fmt.Sprintf(format, args...))
}

func (l *scriptLoader) run(r io.Reader) (*Config, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := l.exec(lineNo, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrScript, l.name, err)
	}
	if l.root == nil {
		return nil, fmt.Errorf("%w: %s does not bind '%s'", ErrScript, l.name, scriptRoot)
	}
	return l.root, nil
}

func (l *scriptLoader) exec(lineNo int, line string) error {
	if module, ok := strings.CutPrefix(line, "import "); ok {
		module = strings.TrimSpace(module)
		if !moduleKnown(module) {
			return l.errorf(lineNo, "no config types registered in module '%s'", module)
		}
		l.imports[module] = true
		return nil
	}

	lhs, rhs, ok := splitAssignment(line)
	if !ok || lhs == "" {
		return l.errorf(lineNo, "expected an assignment, got %q", line)
	}
	p := Provenance{Source: SourceScript, Label: fmt.Sprintf("%s:%d", l.name, lineNo)}

	if m := constructorPattern.FindStringSubmatch(rhs); m != nil {
		t, err := l.resolveType(lineNo, m[1])
		if err != nil {
			return err
		}
		if lhs == scriptRoot {
			root, err := t.construct(scriptRoot)
			if err != nil {
				return l.errorf(lineNo, "%v", err)
			}
			l.root = root
			return nil
		}
		return l.assign(lineNo, lhs, t, p)
	}

	if prefix, ok := strings.CutSuffix(lhs, ".types"); ok && l.root != nil {
		if rel, ok := l.relative(prefix); ok {
			if holder, err := l.root.Lookup(rel); err == nil {
				if reg, isRegistry := holder.(*Registry); isRegistry {
					return l.bindTypes(lineNo, reg, rhs)
				}
			}
		}
	}

	value, err := decodeLiteral(rhs)
	if err != nil {
		return l.errorf(lineNo, "%v", err)
	}
	return l.assign(lineNo, lhs, value, p)
}

func (l *scriptLoader) resolveType(lineNo int, name string) (*Type, error) {
	t, ok := LookupType(name)
	if !ok {
		return nil, l.errorf(lineNo, "unknown config type '%s'", name)
	}
	if !l.imports[t.Module()] {
		return nil, l.errorf(lineNo, "module '%s' is not imported", t.Module())
	}
	return t, nil
}

// relative strips the root prefix from a script path; "root" itself maps to ""
func (l *scriptLoader) relative(path string) (string, bool) {
	if path == scriptRoot {
		return "", true
	}
	return strings.CutPrefix(path, scriptRoot+".")
}

func (l *scriptLoader) assign(lineNo int, lhs string, value any, p Provenance) error {
	if l.root == nil {
		return l.errorf(lineNo, "'%s' is assigned before '%s' is bound", lhs, scriptRoot)
	}
	rel, ok := l.relative(lhs)
	if !ok || rel == "" {
		return l.errorf(lineNo, "assignment target '%s' is outside '%s'", lhs, scriptRoot)
	}
	if err := l.root.assign(rel, value, p); err != nil {
		return l.errorf(lineNo, "%v", err)
	}
	return nil
}

func (l *scriptLoader) bindTypes(lineNo int, reg *Registry, rhs string) error {
	value, err := decodeLiteral(rhs)
	if err != nil {
		return l.errorf(lineNo, "%v", err)
	}
	m, ok := asMap(value)
	if !ok {
		return l.errorf(lineNo, "types of '%s' must be a table, got %T", reg.fullName, value)
	}
	types := make(map[string]*Type, len(m))
	for _, k := range sortedKeys(m) {
		name, ok := m[k].(string)
		if !ok {
			return l.errorf(lineNo, "type of '%s' must be a type name, got %v", k, m[k])
		}
		t, err := l.resolveType(lineNo, name)
		if err != nil {
			return err
		}
		types[k] = t
	}
	if err := reg.BindTypes(types); err != nil {
		return l.errorf(lineNo, "%v", err)
	}
	return nil
}
