// FILE: lixenwraith/pexconfig/discovery.go
package pexconfig

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DiscoveryOptions tells Discover where a program keeps its config script
// and its override file.
type DiscoveryOptions struct {
	// App is the base file name shared by both files, e.g. "isr" for
	// isr.cfg and isr.toml
	App string

	// ScriptExts are tried in order for the config script
	ScriptExts []string

	// OverrideExts are tried in order for the override file
	OverrideExts []string

	// Dirs are searched before the working and XDG directories
	Dirs []string

	// EnvVar may name either file explicitly
	EnvVar string

	// Flag may name either file explicitly on the command line,
	// as "--config path" or "--config=path"
	Flag string

	WorkingDir bool
	XDG        bool
}

// DefaultDiscoveryOptions searches for app.cfg / app.py scripts and
// app.toml / app.yaml / app.yml / app.json overrides
func DefaultDiscoveryOptions(app string) DiscoveryOptions {
	return DiscoveryOptions{
		App:          app,
		ScriptExts:   []string{".cfg", ".py"},
		OverrideExts: []string{".toml", ".yaml", ".yml", ".json"},
		EnvVar:       strings.ToUpper(app) + "_CONFIG",
		Flag:         "--config",
		WorkingDir:   true,
		XDG:          true,
	}
}

// Discovered holds the files found by Discover. Either may be empty.
type Discovered struct {
	Script   string
	Override string
}

// Discover locates the config script and the override file. An explicit
// path from the flag (first) or the env var fills the slot its extension
// belongs to; directory search fills whatever is still empty, taking the
// first directory that holds a file of each kind.
func Discover(opts DiscoveryOptions, args []string) Discovered {
	var found Discovered

	for _, explicit := range []string{flagValue(args, opts.Flag), envValue(opts.EnvVar)} {
		if explicit == "" {
			continue
		}
		if opts.isScript(explicit) {
			if found.Script == "" {
				found.Script = explicit
			}
		} else if found.Override == "" {
			found.Override = explicit
		}
	}

	for _, dir := range searchDirs(opts) {
		if found.Script == "" {
			found.Script = firstExisting(dir, opts.App, opts.ScriptExts)
		}
		if found.Override == "" {
			found.Override = firstExisting(dir, opts.App, opts.OverrideExts)
		}
		if found.Script != "" && found.Override != "" {
			break
		}
	}

	if found.Script != "" || found.Override != "" {
		logger().Debug("discovered config files", "script", found.Script, "override", found.Override)
	}
	return found
}

// WithDiscovery fills the script and override file not already given with
// WithScript or WithFile. The discovery flag is removed from the builder's
// arguments so it is not read as a field override.
func (b *Builder) WithDiscovery(opts DiscoveryOptions) *Builder {
	found := Discover(opts, b.args)
	if b.script == "" {
		b.script = found.Script
	}
	if b.file == "" {
		b.file = found.Override
	}
	b.args = withoutFlag(b.args, opts.Flag)
	return b
}

func (o DiscoveryOptions) isScript(path string) bool {
	return slices.Contains(o.ScriptExts, strings.ToLower(filepath.Ext(path)))
}

func firstExisting(dir, app string, exts []string) string {
	for _, ext := range exts {
		candidate := filepath.Join(dir, app+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// searchDirs lists the custom dirs, then the working directory, then
// $XDG_CONFIG_HOME/app (or ~/.config/app) and each $XDG_CONFIG_DIRS/app
// (or /etc/xdg/app)
func searchDirs(opts DiscoveryOptions) []string {
	dirs := slices.Clone(opts.Dirs)
	if opts.WorkingDir {
		if wd, err := os.Getwd(); err == nil {
			dirs = append(dirs, wd)
		}
	}
	if !opts.XDG {
		return dirs
	}

	home := os.Getenv("XDG_CONFIG_HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(h, ".config")
		}
	}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, opts.App))
	}

	system := filepath.SplitList(os.Getenv("XDG_CONFIG_DIRS"))
	if len(system) == 0 {
		system = []string{"/etc/xdg"}
	}
	for _, d := range system {
		dirs = append(dirs, filepath.Join(d, opts.App))
	}
	return dirs
}

func envValue(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// flagValue returns the path given with flag in args
func flagValue(args []string, flag string) string {
	if flag == "" {
		return ""
	}
	for i, arg := range args {
		if v, ok := strings.CutPrefix(arg, flag+"="); ok {
			return v
		}
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// withoutFlag drops every occurrence of flag and its value from args
func withoutFlag(args []string, flag string) []string {
	if flag == "" {
		return args
	}
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == flag:
			i++
		case strings.HasPrefix(args[i], flag+"="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}
