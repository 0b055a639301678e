// FILE: lixenwraith/pexconfig/history.go
package pexconfig

// Source identifies where a change to a field value came from
type Source string

const (
	// SourceDefault marks values applied from field defaults at construction
	SourceDefault Source = "default"
	// SourceAssign marks direct assignments through Set
	SourceAssign Source = "assign"
	// SourceOverride marks values applied through Override
	SourceOverride Source = "override"
	// SourceScript marks values applied while evaluating a config script
	SourceScript Source = "script"
	// SourceFile marks values loaded from a TOML, YAML or JSON override file
	SourceFile Source = "file"
	// SourceEnv marks values loaded from environment variables
	SourceEnv Source = "env"
	// SourceCLI marks values loaded from command-line arguments
	SourceCLI Source = "cli"
)

// Provenance describes a single mutation. Label is free-form, typically a
// file position, an env var name or a caller-chosen tag.
type Provenance struct {
	Source Source
	Label  string
}

// String renders the provenance as "source" or "source(label)".
func (p Provenance) String() string {
	if p.Label == "" {
		return string(p.Source)
	}
	return string(p.Source) + "(" + p.Label + ")"
}

// Change is one entry of a field history: the value snapshot and where it came from.
type Change struct {
	Value      any
	Provenance Provenance
}

// History is the append-only, oldest-first mutation log of one storage slot.
// Lists and registries share their slot's history, so element mutations
// land in the same log as whole-value assignments.
type History struct {
	changes []Change
}

func (h *History) append(value any, p Provenance) {
	h.changes = append(h.changes, Change{Value: value, Provenance: p})
}

// Changes returns a copy of the recorded changes, oldest first.
func (h *History) Changes() []Change {
	if h == nil {
		return nil
	}
	out := make([]Change, len(h.changes))
	copy(out, h.changes)
	return out
}

// Len returns the number of recorded changes.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.changes)
}

// Last returns the most recent change.
func (h *History) Last() (Change, bool) {
	if h == nil || len(h.changes) == 0 {
		return Change{}, false
	}
	return h.changes[len(h.changes)-1], true
}
