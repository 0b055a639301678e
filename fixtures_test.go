// FILE: lixenwraith/pexconfig/fixtures_test.go
package pexconfig

import "time"

// Types shared by the tests. The type registry is process-wide, so every
// type is defined once at package level.
var (
	subType = MustDefineType("pextest.Sub",
		WithField("size", NewField[int]("Size", Default(3))),
		WithField("name", NewField[string]("Name", Default("sub"))),
		WithField("values", NewListField[int]("Values", Default([]int{1, 2, 3}))),
	)

	medianType = MustDefineType("pextest.Median",
		WithField("window", NewRangeField("Window", Between[int64](1, 10), Default(int64(3)))),
	)

	meanType = MustDefineType("pextest.Mean",
		WithField("clip", NewField[float64]("Clip", Default(3.0))),
	)

	medianPlusType = MustDefineType("pextest.MedianPlus",
		Extends(medianType),
		WithField("extra", NewField[string]("Extra", Default("x"))),
	)

	rootType = MustDefineType("pextest.Root",
		WithDoc("Test root"),
		WithField("threshold", NewRangeField("Threshold", Between[int64](0, 10), Default(int64(5)))),
		WithField("mode", Must(NewChoiceField("Mode", map[string]string{"fast": "Fast path", "slow": "Slow path"}, Default("fast")))),
		WithField("label", NewField[string]("Label", Optional())),
		WithField("verbose", NewField[bool]("Verbose output", Default(false))),
		WithField("items", NewListField[int64]("Items", Length(3), Default([]int64{1, 2, 3}))),
		WithField("sub", Must(NewConfigField("Nested", subType))),
		WithField("algo", Must(NewRegistryField("Algorithm",
			Types(map[string]*Type{"median": medianType, "mean": meanType}),
			Restricted(),
			Default("median"),
		))),
		WithField("plugins", Must(NewRegistryField("Plugins", Optional()))),
	)

	choicesType = MustDefineType("pextest.Choices",
		WithField("opt", Must(NewChoiceField("Optional choice", map[string]string{"a": "A", "b": "B"}, Optional()))),
		WithField("req", Must(NewChoiceField("Required choice", map[string]string{"a": "A", "b": "B"}, Default("a")))),
	)

	listsType = MustDefineType("pextest.Lists",
		WithField("bounded", NewListField[int]("Bounded", MinLength(1), MaxLength(3), Default([]int{1}))),
		WithField("positive", NewListField[int]("Positive", ItemCheck(func(v int) bool { return v > 0 }), Optional())),
		WithField("sorted", NewListField[int]("Sorted", ListCheck(func(v []int) bool {
			for i := 1; i < len(v); i++ {
				if v[i] < v[i-1] {
					return false
				}
			}
			return true
		}), Optional())),
		WithField("names", NewListField[string]("Names", Optional())),
	)

	pairType = MustDefineType("pextest.Pair",
		WithField("lo", NewField[int]("Low", Default(1))),
		WithField("hi", NewField[int]("High", Default(2), Check(func(v int) bool { return v < 100 }))),
		WithCheck(func(c *Config) error {
			lo, _ := GetAs[int](c, "lo")
			hi, _ := GetAs[int](c, "hi")
			if lo > hi {
				return &FieldValidationError{Kind: "Config", Path: c.Path(), Message: "lo must not exceed hi"}
			}
			return nil
		}),
	)

	hostType = MustDefineType("pextest.Host",
		WithField("smoother", Must(NewRegistryField("Median family", Base(medianType), Optional()))),
		WithField("optional_sub", Must(NewConfigField("Optional nested", subType, Optional()))),
	)

	serverType = Must(DefineStructType("pextest.Server", serverDefaults{
		Host:    "localhost",
		Port:    8080,
		Timeout: time.Second,
		Tags:    []string{"a", "b"},
	}))
)

type serverDefaults struct {
	Host    string        `pex:"host" doc:"Listen host"`
	Port    int           `pex:"port" doc:"Listen port"`
	Timeout time.Duration `pex:"timeout"`
	Tags    []string      `pex:"tags"`
	Secret  string        `pex:"-"`
	TLS     struct {
		Enabled bool   `pex:"enabled"`
		Cert    string `pex:"cert"`
	} `pex:"tls"`
}
