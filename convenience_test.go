// FILE: lixenwraith/pexconfig/convenience_test.go
package pexconfig

import (
	"bytes"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQuickFunctions tests the convenience constructors
func TestQuickFunctions(t *testing.T) {
	file := writeFile(t, t.TempDir(), "quick.toml", "threshold = 2\n")
	t.Setenv("PEXQ_MODE", "slow")

	c, err := Quick(rootType, "PEXQ_", file)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.ToDict()["threshold"])
	assert.Equal(t, "slow", c.ToDict()["mode"])

	c, err = Quick(rootType, "PEXQ_", filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
	require.NotNil(t, c)

	assert.NotPanics(t, func() { MustQuick(rootType, "PEXQ_", file) })
	assert.Panics(t, func() { MustQuick(nil, "", "") })
}

func TestFlags(t *testing.T) {
	c := rootType.MustNew()
	fs := c.GenerateFlags()

	f := fs.Lookup("threshold")
	require.NotNil(t, f)
	assert.Equal(t, "5", f.DefValue)
	assert.True(t, strings.HasPrefix(f.Usage, "Threshold"))

	f = fs.Lookup("items")
	require.NotNil(t, f)
	assert.Equal(t, "1,2,3", f.DefValue)

	f = fs.Lookup("algo")
	require.NotNil(t, f)
	assert.Equal(t, "median", f.DefValue)

	require.NotNil(t, fs.Lookup("sub.size"))

	require.NoError(t, fs.Parse([]string{"-threshold=3", "-items=4,5,6", "-algo", "mean"}))
	require.NoError(t, c.BindFlags(fs))

	d := c.ToDict()
	assert.Equal(t, int64(3), d["threshold"])
	assert.Equal(t, []any{int64(4), int64(5), int64(6)}, d["items"])
	assert.Equal(t, map[string]any{"clip": 3.0}, d["algo"])
	assert.Equal(t, int64(5), c.History()["threshold"][0].Value, "unset flags must not be applied")

	h := c.History()["threshold"]
	assert.Equal(t, Provenance{Source: SourceCLI, Label: "--threshold"}, h[len(h)-1].Provenance)

	t.Run("UnnameablePathsSkipped", func(t *testing.T) {
		c := rootType.MustNew()
		r := registryOf(t, c, "plugins")
		require.NoError(t, r.Set("a=b", medianType))
		_, err := r.Get("a=b")
		require.NoError(t, err)
		require.Contains(t, c.leafPaths(), `plugins["a=b"].window`)

		var fs *flag.FlagSet
		require.NotPanics(t, func() { fs = c.GenerateFlags() })
		assert.Nil(t, fs.Lookup(`plugins["a=b"].window`))
		assert.NotNil(t, fs.Lookup("plugins"))
		assert.NotNil(t, fs.Lookup("threshold"))
	})

	t.Run("InvalidFlagValue", func(t *testing.T) {
		c := rootType.MustNew()
		fs := c.GenerateFlags()
		require.NoError(t, fs.Parse([]string{"-threshold=many"}))
		err := c.BindFlags(fs)
		assert.ErrorIs(t, err, ErrInvalidValue)
		assert.Contains(t, err.Error(), "flag threshold")
	})
}

func TestRequireSet(t *testing.T) {
	c := rootType.MustNew()

	err := c.RequireSet("threshold", "sub.size")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold, sub.size")

	require.NoError(t, c.Set("threshold", 1))
	require.NoError(t, c.Set("sub.size", 1))
	assert.NoError(t, c.RequireSet("threshold", "sub.size"))

	err = c.RequireSet("nope")
	assert.ErrorContains(t, err, "nope (unknown)")

	assert.Error(t, c.RequireSet("algo"))
	require.NoError(t, c.Set("algo", "mean"))
	assert.NoError(t, c.RequireSet("algo"))
}

func TestDebug(t *testing.T) {
	c := rootType.MustNew()
	require.NoError(t, c.SetWith("threshold", 8, Provenance{Source: SourceEnv, Label: "APP_THRESHOLD"}))

	out := c.Debug()
	assert.True(t, strings.HasPrefix(out, "Configuration Debug Info:\n"))
	assert.Contains(t, out, "Type: pextest.Root\n")
	assert.Contains(t, out, "  threshold:\n    Current: 8\n    default: 5\n    env(APP_THRESHOLD): 8\n")
	assert.Contains(t, out, "  sub.name:\n")
}

func TestDump(t *testing.T) {
	c := rootType.MustNew()
	var buf bytes.Buffer
	require.NoError(t, c.Dump(&buf))

	out := buf.String()
	assert.Contains(t, out, "threshold = 5")
	assert.Contains(t, out, `mode = "fast"`)
	assert.Contains(t, out, "[sub]")
	assert.NotContains(t, out, "label")
	assert.NotContains(t, out, "plugins")
}

func TestClone(t *testing.T) {
	c := rootType.MustNew()
	require.NoError(t, c.Set("threshold", 7))
	require.NoError(t, c.Set("sub.name", "orig"))
	require.NoError(t, c.Set(`algo["mean"].clip`, 1.5))

	clone, err := c.Clone()
	require.NoError(t, err)
	assert.True(t, c.Equal(clone))
	assert.Equal(t, c.Path(), clone.Path())
	assert.Equal(t, c.History(), clone.History())

	sub, _ := clone.Get("sub")
	assert.Equal(t, c.History()["sub"], clone.History()["sub"])
	assert.Len(t, sub.(*Config).History()["name"], 2)

	require.NoError(t, clone.Set("threshold", 1))
	require.NoError(t, clone.Set("sub.name", "copy"))
	assert.Equal(t, int64(7), c.ToDict()["threshold"])
	assert.Equal(t, "orig", c.ToDict()["sub"].(map[string]any)["name"])
	assert.False(t, c.Equal(clone))
}
