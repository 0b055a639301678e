// FILE: lixenwraith/pexconfig/register_test.go
package pexconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineType(t *testing.T) {
	t.Run("Names", func(t *testing.T) {
		assert.Equal(t, "pextest.Root", rootType.Name())
		assert.Equal(t, "pextest", rootType.Module())
		assert.Equal(t, "Root", rootType.ShortName())
		assert.Equal(t, "Test root", rootType.Doc())
		assert.Equal(t, "pextest.Root", rootType.String())
		assert.Same(t, BaseType, rootType.Base())

		found, ok := LookupType("pextest.Root")
		require.True(t, ok)
		assert.Same(t, rootType, found)
		_, ok = LookupType("pextest.Missing")
		assert.False(t, ok)
	})

	t.Run("UnqualifiedName", func(t *testing.T) {
		_, err := DefineType("Unqualified")
		assert.ErrorIs(t, err, ErrDefinition)
		_, err = DefineType("pextest.9bad")
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := DefineType("pextest.Root")
		assert.ErrorIs(t, err, ErrDuplicateType)
	})

	t.Run("InvalidFieldName", func(t *testing.T) {
		_, err := DefineType("pextest.BadName", WithField("1bad", NewField[int]("")))
		assert.ErrorIs(t, err, ErrInvalidFieldName)
		_, ok := LookupType("pextest.BadName")
		assert.False(t, ok)
	})

	t.Run("NilField", func(t *testing.T) {
		_, err := DefineType("pextest.NilField", WithField("a", nil))
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("DeclaredTwice", func(t *testing.T) {
		_, err := DefineType("pextest.Twice",
			WithField("a", NewField[int]("")),
			WithField("a", NewField[int]("")),
		)
		assert.ErrorIs(t, err, ErrDefinition)
	})

	t.Run("FieldReuse", func(t *testing.T) {
		f := NewField[int]("")
		_, err := DefineType("pextest.Reuse", WithField("a", f), WithField("b", f))
		assert.ErrorIs(t, err, ErrFieldReuse)
	})

	t.Run("UncoercibleDefault", func(t *testing.T) {
		_, err := DefineType("pextest.BadDefault", WithField("n", NewField[int]("", Default("many"))))
		assert.ErrorIs(t, err, ErrDefinition)
		_, ok := LookupType("pextest.BadDefault")
		assert.False(t, ok)
	})

	t.Run("MustDefineTypePanics", func(t *testing.T) {
		assert.Panics(t, func() { MustDefineType("pextest.Root") })
	})

	t.Run("Inheritance", func(t *testing.T) {
		names := make([]string, 0)
		for _, f := range medianPlusType.Fields() {
			names = append(names, f.Name())
		}
		assert.Equal(t, []string{"window", "extra"}, names)
		assert.True(t, medianPlusType.IsSubtypeOf(medianType))
		assert.True(t, medianPlusType.IsSubtypeOf(BaseType))
		assert.False(t, medianType.IsSubtypeOf(medianPlusType))

		c := medianPlusType.MustNew()
		assert.Equal(t, map[string]any{"window": int64(3), "extra": "x"}, c.ToDict())
	})
}

func TestDefineStructType(t *testing.T) {
	t.Run("Fields", func(t *testing.T) {
		c := serverType.MustNew()
		assert.Equal(t, []string{"host", "port", "timeout", "tags", "tls"}, c.Names())
		assert.Equal(t, map[string]any{
			"host":    "localhost",
			"port":    8080,
			"timeout": time.Second,
			"tags":    []string{"a", "b"},
			"tls":     map[string]any{"enabled": false, "cert": ""},
		}, c.ToDict())

		f, ok := serverType.Field("host")
		require.True(t, ok)
		assert.Equal(t, "Listen host", f.Doc())

		tls, ok := LookupType("pextest.Server_TLS")
		require.True(t, ok)
		tlsField, _ := serverType.Field("tls")
		assert.Same(t, tls, tlsField.(*ConfigField).ConfigType())
	})

	t.Run("Overrides", func(t *testing.T) {
		c := serverType.MustNew()
		require.NoError(t, c.Override(map[string]any{
			"port":    "9090",
			"timeout": "5s",
			"tls":     map[string]any{"enabled": true},
		}))
		assert.NoError(t, c.Validate())
		d := c.ToDict()
		assert.Equal(t, 9090, d["port"])
		assert.Equal(t, 5*time.Second, d["timeout"])
		assert.Equal(t, true, d["tls"].(map[string]any)["enabled"])
	})

	t.Run("RejectsNonStruct", func(t *testing.T) {
		_, err := DefineStructType("pextest.NotStruct", 5)
		assert.ErrorIs(t, err, ErrDefinition)

		var nilPtr *serverDefaults
		_, err = DefineStructType("pextest.NilStruct", nilPtr)
		assert.ErrorIs(t, err, ErrDefinition)
	})
}
