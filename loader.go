// FILE: lixenwraith/pexconfig/loader.go
package pexconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MaxValueSize limits the length of a single value read from the environment
const MaxValueSize = 1024 * 1024

// EnvTransformFunc converts a config path to an environment variable name
type EnvTransformFunc func(path string) string

// SecurityOptions restricts which override files are accepted
type SecurityOptions struct {
	// PreventPathTraversal rejects relative paths escaping the working directory
	PreventPathTraversal bool

	// MaxFileSize rejects larger files (0 = unlimited)
	MaxFileSize int64

	// EnforceFileOwnership requires the file to be owned by the process user (Unix only)
	EnforceFileOwnership bool
}

// LoadOptions configures how overrides are layered from external sources
type LoadOptions struct {
	// Sources defines the precedence order (first = highest priority).
	// Sources are applied lowest first so that higher ones win.
	// Default: [SourceCLI, SourceEnv, SourceFile, SourceDefault]
	Sources []Source

	// EnvPrefix is prepended to environment variable names.
	// Example: "MYAPP_" maps "server.port" to "MYAPP_SERVER_PORT"
	EnvPrefix string

	// EnvTransform customizes how paths map to environment variables.
	// If nil, dots and brackets become underscores and the name is upper-cased.
	EnvTransform EnvTransformFunc

	// EnvWhitelist limits which paths are checked for env vars (nil = all)
	EnvWhitelist map[string]bool

	// Security applies to override files (nil = no restrictions)
	Security *SecurityOptions
}

// DefaultLoadOptions returns the standard load options
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Sources: []Source{SourceCLI, SourceEnv, SourceFile, SourceDefault},
	}
}

// ApplySources layers overrides from an override file, the environment and
// command-line arguments onto c in the precedence order of opts. A missing
// file is not fatal: the remaining sources are applied and ErrConfigNotFound
// is returned alongside.
func (c *Config) ApplySources(filePath string, args []string, opts LoadOptions) error {
	var loadErrors []error

	for i := len(opts.Sources) - 1; i >= 0; i-- {
		switch opts.Sources[i] {
		case SourceFile:
			if filePath == "" {
				continue
			}
			if err := c.overrideFile(filePath, opts.Security); err != nil {
				if !errors.Is(err, ErrConfigNotFound) {
					return err
				}
				loadErrors = append(loadErrors, err)
			}

		case SourceEnv:
			if err := c.overrideEnv(opts); err != nil {
				return err
			}

		case SourceCLI:
			if len(args) > 0 {
				if err := c.OverrideArgs(args); err != nil {
					return err
				}
			}

		default:
			// defaults are applied at construction, scripts by the builder
			continue
		}
	}

	return errors.Join(loadErrors...)
}

// OverrideFile applies a TOML, YAML or JSON document as an override mapping.
// The format is taken from the extension, falling back to content detection.
func (c *Config) OverrideFile(path string) error {
	return c.overrideFile(path, nil)
}

// OverrideEnv applies every environment variable named after a leaf path of
// c, e.g. "APP_ALGO_MEDIAN_WINDOW" for algo["median"].window with prefix "APP_"
func (c *Config) OverrideEnv(prefix string) error {
	opts := DefaultLoadOptions()
	opts.EnvPrefix = prefix
	return c.overrideEnv(opts)
}

// OverrideArgs applies command-line overrides of the form --path=value,
// --path value, or --flag for a boolean true
func (c *Config) OverrideArgs(args []string) error {
	parsed, err := parseArgs(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCLIParse, err)
	}
	if len(parsed) == 0 {
		return nil
	}
	logger().Info("applying command-line overrides", "count", len(parsed))
	return c.OverrideWith(parsed, Provenance{Source: SourceCLI, Label: "args"})
}

// overrideFile reads and parses an override file
func (c *Config) overrideFile(path string, sec *SecurityOptions) error {
	if sec != nil && sec.PreventPathTraversal {
		cleanPath := filepath.Clean(path)
		if strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) || cleanPath == ".." {
			return fmt.Errorf("potential path traversal detected in config path: %s", path)
		}
		if filepath.IsAbs(cleanPath) && !filepath.IsAbs(path) {
			return fmt.Errorf("potential path traversal detected in config path: %s", path)
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}

	if sec != nil && sec.MaxFileSize > 0 && fileInfo.Size() > sec.MaxFileSize {
		return fmt.Errorf("config file '%s' exceeds maximum size %d bytes", path, sec.MaxFileSize)
	}

	if sec != nil && sec.EnforceFileOwnership && runtime.GOOS != "windows" {
		if stat, ok := fileInfo.Sys().(*syscall.Stat_t); ok {
			if stat.Uid != uint32(os.Geteuid()) {
				return fmt.Errorf("config file '%s' is not owned by current user (file UID: %d, process UID: %d)",
					path, stat.Uid, os.Geteuid())
			}
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if sec != nil && sec.MaxFileSize > 0 {
		reader = io.LimitReader(file, sec.MaxFileSize)
	}

	fileData, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	overrides, err := parseOverrideDocument(path, fileData)
	if err != nil {
		return err
	}

	logger().Info("applying override file", "path", path, "keys", len(overrides))
	return c.OverrideWith(overrides, Provenance{Source: SourceFile, Label: path})
}

// parseOverrideDocument decodes file data into a nested override mapping
func parseOverrideDocument(path string, data []byte) (map[string]any, error) {
	format := detectFileFormat(path)
	if format == "" {
		format = detectFormatFromContent(data)
	}

	doc := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config file '%s': %w", path, err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // Preserve number precision
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file '%s': %w", path, err)
		}
		doc = resolveJSONNumbers(doc).(map[string]any)
	case "yaml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file '%s': %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unable to determine config format for file '%s'", path)
	}
	return doc, nil
}

// resolveJSONNumbers turns json.Number leaves into int64 where exact, float64 otherwise
func resolveJSONNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, val := range x {
			x[k] = resolveJSONNumbers(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = resolveJSONNumbers(val)
		}
		return x
	default:
		return v
	}
}

// overrideEnv assigns each leaf path whose environment variable is set
func (c *Config) overrideEnv(opts LoadOptions) error {
	transform := opts.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(opts.EnvPrefix)
	}

	applied := 0
	for _, path := range c.leafPaths() {
		if opts.EnvWhitelist != nil && !opts.EnvWhitelist[path] {
			continue
		}
		envVar := transform(path)
		value, exists := os.LookupEnv(envVar)
		if !exists {
			continue
		}
		if len(value) > MaxValueSize {
			return fmt.Errorf("%w: %s", ErrValueSize, envVar)
		}
		if err := c.SetWith(path, parseValue(value), Provenance{Source: SourceEnv, Label: envVar}); err != nil {
			return fmt.Errorf("environment variable %s: %w", envVar, err)
		}
		applied++
	}

	if applied > 0 {
		logger().Info("applied environment overrides", "prefix", opts.EnvPrefix, "count", applied)
	}
	return nil
}

// DiscoverEnv returns path -> env var name for every leaf path whose
// environment variable is currently set
func (c *Config) DiscoverEnv(prefix string) map[string]string {
	transform := defaultEnvTransform(prefix)
	discovered := make(map[string]string)
	for _, path := range c.leafPaths() {
		envVar := transform(path)
		if _, exists := os.LookupEnv(envVar); exists {
			discovered[path] = envVar
		}
	}
	return discovered
}

// ExportEnv renders env var -> value for every leaf whose value differs from
// a default constructed instance of the same type
func (c *Config) ExportEnv(prefix string) (map[string]string, error) {
	defaults, err := c.typ.construct(c.path)
	if err != nil {
		return nil, err
	}

	transform := defaultEnvTransform(prefix)
	exports := make(map[string]string)
	for _, path := range c.leafPaths() {
		current, err := c.Lookup(path)
		if err != nil {
			return nil, err
		}
		current = plainValue(current)
		if def, err := defaults.Lookup(path); err == nil && reflect.DeepEqual(current, plainValue(def)) {
			continue
		}
		exports[transform(path)] = envString(current)
	}
	return exports, nil
}

// envString renders a value the way OverrideEnv reads it back
func envString(v any) string {
	if items, ok := v.([]any); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	replacer := strings.NewReplacer(".", "_", "[", "_", "]", "", `"`, "", "'", "")
	return func(path string) string {
		env := strings.ToUpper(replacer.Replace(path))
		if prefix != "" {
			env = prefix + env
		}
		return env
	}
}

// parseValue strips one level of matching quotes. Further conversion is left
// to the field's coercion.
func parseValue(s string) any {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// parseArgs processes command-line arguments into a flat path -> value map
func parseArgs(args []string) (map[string]any, error) {
	result := make(map[string]any)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			// Skip non-flag arguments
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// Skip "--" argument if used as a separator
			i++
			continue
		}

		var keyPath string
		var valueStr string

		if k, v, found := strings.Cut(argContent, "="); found {
			keyPath, valueStr = k, v
			i++
		} else {
			keyPath = argContent
			// A boolean flag is followed by another flag or nothing
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if keyPath == "" {
			// Skip invalid flags like --=value
			continue
		}

		if _, err := ParsePath(keyPath); err != nil {
			return nil, fmt.Errorf("invalid command-line key %q: %w", keyPath, err)
		}

		result[keyPath] = parseValue(valueStr)
	}

	return result, nil
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) string {
	// Try JSON first (strict format)
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	// YAML accepts almost anything, so it is tried last
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	return ""
}
