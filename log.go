// FILE: lixenwraith/pexconfig/log.go
package pexconfig

import (
	"io"
	"log/slog"
	"sync/atomic"
)

var (
	pkgLogger atomic.Pointer[slog.Logger]
	nopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// SetLogger routes the package's diagnostics (type definitions, overrides,
// loads and saves) to l. A nil logger silences them again.
func SetLogger(l *slog.Logger) {
	pkgLogger.Store(l)
}

// logger is safe to call during package initialization, before any logger is set
func logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return nopLogger
}
