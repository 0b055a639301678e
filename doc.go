// FILE: lixenwraith/pexconfig/doc.go

// Package pexconfig provides typed, self-validating configuration trees for Go
// applications, with provenance tracking on every value and a script format
// that saves and reloads a whole tree.
//
// Features:
//   - Config types built from typed fields: plain, range, choice, list,
//     nested config and polymorphic registry fields
//   - Dotted and indexed paths for assignment (a.b[2], algo["median"].window)
//   - Nested override mappings, applied in a deterministic order
//   - Per-field history recording every value and where it came from
//   - Validation with field-level rules and type-level cross-field checks
//   - Save/Load of a config script that rebuilds the tree
//   - Overrides from TOML, YAML or JSON files, environment variables and
//     command-line arguments with configurable precedence
//   - Struct-based type definitions and decoding back into structs
//
// Quick Start:
//
//	var Server = pexconfig.MustDefineType("myapp.Server",
//	    pexconfig.WithField("host", pexconfig.NewField[string]("Listen host", pexconfig.Default("localhost"))),
//	    pexconfig.WithField("port", pexconfig.NewRangeField("Listen port", pexconfig.Between[int64](1, 65536), pexconfig.Default(int64(8080)))),
//	)
//
//	cfg, err := pexconfig.Quick(Server, "MYAPP_", "config.toml")
//	if err != nil && !errors.Is(err, pexconfig.ErrConfigNotFound) {
//	    log.Fatal(err)
//	}
//
//	port, _ := cfg.GetInt64("port")
//
// Default Precedence (highest to lowest):
//  1. Command-line arguments (--port=9090)
//  2. Environment variables (MYAPP_PORT=9090)
//  3. Override file (config.toml)
//  4. Script or field defaults
//
// Config Script Format:
//
//	import myapp
//	root=myapp.Server()
//	root.host="localhost"
//	root.port=8080
//
// Values are TOML literals or None. Save writes a script, Load evaluates one.
package pexconfig
