// FILE: lixenwraith/pexconfig/builder.go
package pexconfig

import (
	"errors"
	"fmt"
	"os"
)

// ValidatorFunc validates a fully built config beyond its own field rules
type ValidatorFunc func(c *Config) error

// Builder assembles a config from its type defaults, an optional script, an
// override file, the environment and command-line arguments
type Builder struct {
	typ        *Type
	opts       LoadOptions
	script     string
	file       string
	args       []string
	overrides  []map[string]any
	validators []ValidatorFunc
	err        error
}

// NewBuilder creates a builder for instances of typ
func NewBuilder(typ *Type) *Builder {
	b := &Builder{
		typ:  typ,
		opts: DefaultLoadOptions(),
		args: os.Args[1:],
	}
	if typ == nil {
		b.err = fmt.Errorf("%w: builder requires a config type", ErrNotConfigType)
	}
	return b
}

// WithScript starts from a saved config script instead of the type defaults
func (b *Builder) WithScript(path string) *Builder {
	b.script = path
	return b
}

// WithFile sets the override file (TOML, YAML or JSON)
func (b *Builder) WithFile(path string) *Builder {
	b.file = path
	return b
}

// WithEnvPrefix sets the environment variable prefix
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.opts.EnvPrefix = prefix
	return b
}

// WithEnvTransform sets a custom environment variable transformer
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	b.opts.EnvTransform = fn
	return b
}

// WithEnvWhitelist limits which paths are checked for env vars
func (b *Builder) WithEnvWhitelist(paths ...string) *Builder {
	if b.opts.EnvWhitelist == nil {
		b.opts.EnvWhitelist = make(map[string]bool)
	}
	for _, path := range paths {
		b.opts.EnvWhitelist[path] = true
	}
	return b
}

// WithArgs sets the command-line arguments (default os.Args[1:])
func (b *Builder) WithArgs(args []string) *Builder {
	b.args = args
	return b
}

// WithSources sets the precedence order of override sources
func (b *Builder) WithSources(sources ...Source) *Builder {
	b.opts.Sources = sources
	return b
}

// WithSecurityOptions restricts which override files are accepted
func (b *Builder) WithSecurityOptions(sec SecurityOptions) *Builder {
	b.opts.Security = &sec
	return b
}

// WithOverrides adds an override mapping applied after every source
func (b *Builder) WithOverrides(overrides map[string]any) *Builder {
	if len(overrides) > 0 {
		b.overrides = append(b.overrides, overrides)
	}
	return b
}

// WithValidator adds a validation function that runs after the config validated.
// Multiple validators are executed in the order they are added.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build constructs the config: script or defaults first, then the sources
// from lowest to highest precedence, then explicit overrides, then
// validation. A missing script or override file is not fatal; the config is
// returned together with ErrConfigNotFound.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}

	var notFound []error

	cfg, err := b.base()
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		notFound = append(notFound, err)
		if cfg, err = b.typ.New(); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplySources(b.file, b.args, b.opts); err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
		notFound = append(notFound, err)
	}

	for _, o := range b.overrides {
		if err := cfg.OverrideWith(o, Provenance{Source: SourceOverride, Label: "builder"}); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, validator := range b.validators {
		if err := validator(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return cfg, errors.Join(notFound...)
}

// base returns the starting instance: the loaded script or the defaults
func (b *Builder) base() (*Config, error) {
	if b.script == "" {
		return b.typ.New()
	}
	cfg, err := Load(b.script)
	if err != nil {
		return nil, err
	}
	if cfg.typ != b.typ {
		return nil, fmt.Errorf("%w: script '%s' builds %s, expected %s", ErrTypeMismatch, b.script, cfg.typ.name, b.typ.name)
	}
	return cfg, nil
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		// A missing file is not fatal: the config still holds defaults and other sources
		if !errors.Is(err, ErrConfigNotFound) || cfg == nil {
			panic(fmt.Sprintf("config build failed: %v", err))
		}
	}
	return cfg
}

// BuildAndDecode builds the config and decodes it into target
func (b *Builder) BuildAndDecode(target any) (*Config, error) {
	cfg, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}
	if decodeErr := cfg.Decode(target); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode final config into target: %w", decodeErr)
	}
	return cfg, err
}
