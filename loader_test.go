// FILE: lixenwraith/pexconfig/loader_test.go
package pexconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestOverrideFile tests TOML, YAML and JSON override files
func TestOverrideFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("TOML", func(t *testing.T) {
		path := writeFile(t, tmpDir, "override.toml", `
threshold = 7
mode = "slow"

[sub]
size = 11
values = [4, 5]

[algo.median]
window = 4
`)
		c := rootType.MustNew()
		require.NoError(t, c.OverrideFile(path))

		d := c.ToDict()
		assert.Equal(t, int64(7), d["threshold"])
		assert.Equal(t, "slow", d["mode"])
		assert.Equal(t, 11, d["sub"].(map[string]any)["size"])
		assert.Equal(t, []any{4, 5}, d["sub"].(map[string]any)["values"])
		assert.Equal(t, int64(4), d["algo"].(map[string]any)["window"])

		last := c.History()["threshold"][1]
		assert.Equal(t, Provenance{Source: SourceFile, Label: path}, last.Provenance)
	})

	t.Run("YAML", func(t *testing.T) {
		path := writeFile(t, tmpDir, "override.yaml", `
threshold: 8
items: [7, 8, 9]
sub:
  name: yamlsub
`)
		c := rootType.MustNew()
		require.NoError(t, c.OverrideFile(path))

		d := c.ToDict()
		assert.Equal(t, int64(8), d["threshold"])
		assert.Equal(t, []any{int64(7), int64(8), int64(9)}, d["items"])
		assert.Equal(t, "yamlsub", d["sub"].(map[string]any)["name"])
	})

	t.Run("JSON", func(t *testing.T) {
		path := writeFile(t, tmpDir, "override.json", `{"threshold": 6, "algo": {"mean": {"clip": 1.5}}, "verbose": true}`)
		c := rootType.MustNew()
		require.NoError(t, c.OverrideFile(path))
		require.NoError(t, c.Set("algo", "mean"))

		d := c.ToDict()
		assert.Equal(t, int64(6), d["threshold"])
		assert.Equal(t, true, d["verbose"])
		assert.Equal(t, 1.5, d["algo"].(map[string]any)["clip"])
	})

	t.Run("ContentDetection", func(t *testing.T) {
		jsonPath := writeFile(t, tmpDir, "override.conf", `{"threshold": 3}`)
		c := rootType.MustNew()
		require.NoError(t, c.OverrideFile(jsonPath))
		assert.Equal(t, int64(3), c.ToDict()["threshold"])

		tomlPath := writeFile(t, tmpDir, "override.cfg", "threshold = 2\n")
		require.NoError(t, c.OverrideFile(tomlPath))
		assert.Equal(t, int64(2), c.ToDict()["threshold"])
	})

	t.Run("MissingFile", func(t *testing.T) {
		c := rootType.MustNew()
		err := c.OverrideFile(filepath.Join(tmpDir, "missing.toml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("InvalidContent", func(t *testing.T) {
		path := writeFile(t, tmpDir, "broken.toml", "threshold = [\n")
		c := rootType.MustNew()
		assert.Error(t, c.OverrideFile(path))
	})

	t.Run("UnknownKey", func(t *testing.T) {
		path := writeFile(t, tmpDir, "unknown.toml", "nope = 1\n")
		c := rootType.MustNew()
		assert.ErrorIs(t, c.OverrideFile(path), ErrUnknownField)
	})

	t.Run("SecurityOptions", func(t *testing.T) {
		path := writeFile(t, tmpDir, "large.toml", "threshold = 1\n"+strings.Repeat("# padding\n", 20))
		c := rootType.MustNew()
		err := c.overrideFile(path, &SecurityOptions{MaxFileSize: 16})
		assert.ErrorContains(t, err, "exceeds maximum size")

		err = c.overrideFile("../outside.toml", &SecurityOptions{PreventPathTraversal: true})
		assert.ErrorContains(t, err, "path traversal")

		require.NoError(t, c.overrideFile(path, &SecurityOptions{MaxFileSize: 1024, EnforceFileOwnership: true}))
		assert.Equal(t, int64(1), c.ToDict()["threshold"])
	})
}

// TestOverrideEnv tests environment variable overrides
func TestOverrideEnv(t *testing.T) {
	t.Run("LeafPaths", func(t *testing.T) {
		t.Setenv("PEXT_THRESHOLD", "4")
		t.Setenv("PEXT_SUB_SIZE", "12")
		t.Setenv("PEXT_ITEMS", "4,5,6")
		t.Setenv("PEXT_LABEL", `"quoted"`)
		t.Setenv("PEXT_ALGO_MEDIAN_WINDOW", "2")

		c := rootType.MustNew()
		require.NoError(t, c.Validate()) // materializes the active registry entry
		require.NoError(t, c.OverrideEnv("PEXT_"))

		d := c.ToDict()
		assert.Equal(t, int64(4), d["threshold"])
		assert.Equal(t, 12, d["sub"].(map[string]any)["size"])
		assert.Equal(t, []any{int64(4), int64(5), int64(6)}, d["items"])
		assert.Equal(t, "quoted", d["label"])
		assert.Equal(t, int64(2), d["algo"].(map[string]any)["window"])

		h := c.History()["threshold"]
		assert.Equal(t, Provenance{Source: SourceEnv, Label: "PEXT_THRESHOLD"}, h[len(h)-1].Provenance)
	})

	t.Run("RegistrySelection", func(t *testing.T) {
		t.Setenv("PEXS_ALGO", "mean")
		c := rootType.MustNew()
		require.NoError(t, c.OverrideEnv("PEXS_"))
		algo, err := c.GetString("algo")
		require.NoError(t, err)
		assert.Equal(t, "mean", algo)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		t.Setenv("PEXI_THRESHOLD", "lots")
		c := rootType.MustNew()
		err := c.OverrideEnv("PEXI_")
		assert.ErrorIs(t, err, ErrInvalidValue)
		assert.ErrorContains(t, err, "PEXI_THRESHOLD")
	})

	t.Run("ValueSizeLimit", func(t *testing.T) {
		t.Setenv("PEXL_LABEL", strings.Repeat("x", MaxValueSize+1))
		c := rootType.MustNew()
		assert.ErrorIs(t, c.OverrideEnv("PEXL_"), ErrValueSize)
	})

	t.Run("CustomTransformAndWhitelist", func(t *testing.T) {
		t.Setenv("custom.threshold", "3")
		t.Setenv("custom.mode", "slow")
		opts := LoadOptions{
			EnvTransform: func(path string) string { return "custom." + path },
			EnvWhitelist: map[string]bool{"threshold": true},
		}
		c := rootType.MustNew()
		require.NoError(t, c.overrideEnv(opts))
		assert.Equal(t, int64(3), c.ToDict()["threshold"])
		assert.Equal(t, "fast", c.ToDict()["mode"])
	})

	t.Run("DiscoverEnv", func(t *testing.T) {
		t.Setenv("PEXD_MODE", "slow")
		t.Setenv("PEXD_SUB_NAME", "x")
		c := rootType.MustNew()
		assert.Equal(t, map[string]string{
			"mode":     "PEXD_MODE",
			"sub.name": "PEXD_SUB_NAME",
		}, c.DiscoverEnv("PEXD_"))
	})

	t.Run("ExportEnv", func(t *testing.T) {
		c := rootType.MustNew()
		require.NoError(t, c.Set("threshold", 7))
		require.NoError(t, c.Set("items", []int64{7, 8, 9}))
		require.NoError(t, c.Set("algo", "mean"))

		exports, err := c.ExportEnv("APP_")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{
			"APP_THRESHOLD": "7",
			"APP_ITEMS":     "7,8,9",
			"APP_ALGO":      "mean",
		}, exports)
	})
}

// TestOverrideArgs tests command-line overrides
func TestOverrideArgs(t *testing.T) {
	t.Run("Forms", func(t *testing.T) {
		c := rootType.MustNew()
		require.NoError(t, c.OverrideArgs([]string{
			"positional",
			"--threshold=3",
			"--sub.size", "8",
			"--verbose",
			"--",
			"--items=4,5,6",
			`--label="with spaces"`,
		}))

		d := c.ToDict()
		assert.Equal(t, int64(3), d["threshold"])
		assert.Equal(t, 8, d["sub"].(map[string]any)["size"])
		assert.Equal(t, true, d["verbose"])
		assert.Equal(t, []any{int64(4), int64(5), int64(6)}, d["items"])
		assert.Equal(t, "with spaces", d["label"])

		h := c.History()["threshold"]
		assert.Equal(t, Provenance{Source: SourceCLI, Label: "args"}, h[len(h)-1].Provenance)
	})

	t.Run("IndexedKeys", func(t *testing.T) {
		c := rootType.MustNew()
		require.NoError(t, c.OverrideArgs([]string{`--algo["median"].window=6`, "--items[0]=9"}))
		d := c.ToDict()
		assert.Equal(t, int64(6), d["algo"].(map[string]any)["window"])
		assert.Equal(t, []any{int64(9), int64(2), int64(3)}, d["items"])
	})

	t.Run("MalformedKey", func(t *testing.T) {
		c := rootType.MustNew()
		err := c.OverrideArgs([]string{"--1bad=3"})
		assert.ErrorIs(t, err, ErrCLIParse)
		assert.ErrorIs(t, err, ErrMalformedPath)
	})

	t.Run("AmbiguousKeys", func(t *testing.T) {
		c := rootType.MustNew()
		err := c.OverrideArgs([]string{"--sub=x", "--sub.size=1"})
		assert.ErrorIs(t, err, ErrAmbiguousOverride)
	})
}

// TestApplySources tests source precedence
func TestApplySources(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "app.toml", "threshold = 7\nmode = \"slow\"\nlabel = \"file\"\n")
	t.Setenv("PEXP_THRESHOLD", "8")
	t.Setenv("PEXP_MODE", "fast")
	args := []string{"--threshold=9"}

	t.Run("DefaultPrecedence", func(t *testing.T) {
		c := rootType.MustNew()
		opts := DefaultLoadOptions()
		opts.EnvPrefix = "PEXP_"
		require.NoError(t, c.ApplySources(path, args, opts))

		d := c.ToDict()
		assert.Equal(t, int64(9), d["threshold"])
		assert.Equal(t, "fast", d["mode"])
		assert.Equal(t, "file", d["label"])
	})

	t.Run("EnvAboveCLI", func(t *testing.T) {
		c := rootType.MustNew()
		opts := LoadOptions{Sources: []Source{SourceEnv, SourceCLI, SourceFile, SourceDefault}, EnvPrefix: "PEXP_"}
		require.NoError(t, c.ApplySources(path, args, opts))
		assert.Equal(t, int64(8), c.ToDict()["threshold"])
	})

	t.Run("FileOnly", func(t *testing.T) {
		c := rootType.MustNew()
		opts := LoadOptions{Sources: []Source{SourceFile}}
		require.NoError(t, c.ApplySources(path, args, opts))
		assert.Equal(t, int64(7), c.ToDict()["threshold"])
		assert.Equal(t, "slow", c.ToDict()["mode"])
	})

	t.Run("MissingFileIsNotFatal", func(t *testing.T) {
		c := rootType.MustNew()
		opts := DefaultLoadOptions()
		opts.EnvPrefix = "PEXP_"
		err := c.ApplySources(filepath.Join(tmpDir, "missing.toml"), args, opts)
		assert.ErrorIs(t, err, ErrConfigNotFound)
		assert.Equal(t, int64(9), c.ToDict()["threshold"])
	})
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "toml", detectFileFormat("a.toml"))
	assert.Equal(t, "yaml", detectFileFormat("a.YML"))
	assert.Equal(t, "json", detectFileFormat("a.json"))
	assert.Equal(t, "", detectFileFormat("a.cfg"))

	assert.Equal(t, "json", detectFormatFromContent([]byte(`{"a": 1}`)))
	assert.Equal(t, "toml", detectFormatFromContent([]byte("a = 1\n[b]\nc = 2\n")))
	assert.Equal(t, "yaml", detectFormatFromContent([]byte("a: 1\nb:\n  c: 2\n")))
}
