// FILE: lixenwraith/pexconfig/io.go
package pexconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Save writes a script that reproduces c to path. The file is replaced
// atomically. For the duration of the call the config is renamed to "root";
// its previous name is restored on every exit.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := c.SaveTo(&buf); err != nil {
		return err
	}
	if err := atomicWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save config to '%s': %w", path, err)
	}
	logger().Info("config saved", "path", path, "type", c.typ.name)
	return nil
}

// SaveTo writes the script for c to out
func (c *Config) SaveTo(out io.Writer) error {
	previous := c.path
	c.rename(scriptRoot)
	defer c.rename(previous)

	w := newScriptWriter()
	if err := c.save(w); err != nil {
		return err
	}
	return w.writeTo(out)
}

// Load evaluates the script at path and returns the config it binds to
// "root". A missing file reports ErrConfigNotFound.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to open config script '%s': %w", path, err)
	}
	defer f.Close()

	c, err := LoadFrom(f, path)
	if err != nil {
		return nil, err
	}
	logger().Info("config loaded", "path", path, "type", c.typ.name)
	return c, nil
}

// LoadFrom evaluates a script read from r. name labels provenance records
// and error messages.
func LoadFrom(r io.Reader, name string) (*Config, error) {
	l := &scriptLoader{name: name, imports: make(map[string]bool)}
	return l.run(r)
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // no-op after a successful rename

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
