// FILE: lixenwraith/pexconfig/convenience.go
package pexconfig

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Quick creates a validated instance of typ with a single call, layering
// configFile, the environment under envPrefix and os.Args with the standard
// precedence: CLI > Env > File > Default
func Quick(typ *Type, envPrefix, configFile string) (*Config, error) {
	return NewBuilder(typ).
		WithEnvPrefix(envPrefix).
		WithFile(configFile).
		Build()
}

// MustQuick is like Quick but panics on error
func MustQuick(typ *Type, envPrefix, configFile string) *Config {
	return NewBuilder(typ).
		WithEnvPrefix(envPrefix).
		WithFile(configFile).
		MustBuild()
}

// GenerateFlags creates a string flag for every leaf path of c, defaulting
// to the current value. Paths the flag package cannot name, such as
// registry keys containing '=', are skipped; they remain settable through
// Set and Override.
func (c *Config) GenerateFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	for _, path := range c.leafPaths() {
		if strings.Contains(path, "=") || strings.HasPrefix(path, "-") {
			logger().Debug("no flag for path", "path", path)
			continue
		}
		current, err := c.Lookup(path)
		if err != nil {
			continue
		}
		usage := fmt.Sprintf("Config: %s", path)
		if t, err := c.getTarget(path, nil); err == nil {
			if f, ok := t.cfg.Field(t.name); ok && f.Doc() != "" {
				usage = f.Doc()
			}
		}
		fs.String(path, envString(plainValue(current)), usage)
	}

	return fs
}

// BindFlags applies every flag that was set on the command line
func (c *Config) BindFlags(fs *flag.FlagSet) error {
	var errs []error

	fs.Visit(func(f *flag.Flag) {
		p := Provenance{Source: SourceCLI, Label: "--" + f.Name}
		if err := c.SetWith(f.Name, parseValue(f.Value.String()), p); err != nil {
			errs = append(errs, fmt.Errorf("flag %s: %w", f.Name, err))
		}
	})

	if len(errs) > 0 {
		return fmt.Errorf("failed to bind %d flags: %w", len(errs), errs[0])
	}

	return nil
}

// RequireSet checks that each path was given a value by something other
// than its field default
func (c *Config) RequireSet(paths ...string) error {
	var missing []string

	for _, path := range paths {
		t, err := c.getTarget(path, nil)
		if err != nil {
			missing = append(missing, path+" (unknown)")
			continue
		}
		last, ok := t.cfg.slot(t.name).history.Last()
		if !ok || last.Provenance.Source == SourceDefault {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Debug returns a formatted listing of every leaf value and where its
// latest change came from
func (c *Config) Debug() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration Debug Info:\n")
	fmt.Fprintf(&b, "Type: %s\n", c.typ.name)
	fmt.Fprintf(&b, "Current values:\n")

	for _, path := range c.leafPaths() {
		current, err := c.Lookup(path)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "  %s:\n", path)
		fmt.Fprintf(&b, "    Current: %v\n", plainValue(current))

		t, err := c.getTarget(path, nil)
		if err != nil {
			continue
		}
		for _, change := range t.cfg.slot(t.name).history.Changes() {
			fmt.Fprintf(&b, "    %s: %v\n", change.Provenance, change.Value)
		}
	}

	return b.String()
}

// Dump writes the current values of c to w in TOML format. Unset values are
// omitted.
func (c *Config) Dump(w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	return toml.NewEncoder(w).Encode(omitNil(c.ToDict()))
}

// Clone creates a deep copy of c at the same path, histories included
func (c *Config) Clone() (*Config, error) {
	clone, err := c.typ.construct(c.path)
	if err != nil {
		return nil, err
	}
	if err := clone.adopt(c, Provenance{Source: SourceAssign, Label: "clone"}); err != nil {
		return nil, err
	}
	copyHistory(clone, c)
	return clone, nil
}

func copyHistory(dst, src *Config) {
	dst.SetHistory(src.History())
	for name := range src.storage {
		switch v := src.payload(name).(type) {
		case *Config:
			if d, ok := dst.payload(name).(*Config); ok {
				copyHistory(d, v)
			}
		case *Registry:
			d, ok := dst.payload(name).(*Registry)
			if !ok {
				continue
			}
			for key, entry := range v.entries {
				if de := d.entries[key]; entry != nil && de != nil {
					copyHistory(de, entry)
				}
			}
		}
	}
}

// plainValue unwraps lists to their items and registries to their selection
func plainValue(v any) any {
	switch val := v.(type) {
	case *List:
		return val.Items()
	case *Registry:
		if name, ok := val.Name(); ok {
			return name
		}
		return nil
	}
	return v
}

func omitNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = omitNil(val)
		default:
			out[k] = val
		}
	}
	return out
}
