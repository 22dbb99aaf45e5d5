package inference

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"cameo/internal/classify"
)

func TestProperty_LengthMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, policy := range []LengthPolicy{WideLadder, NarrowLadder} {
		policy := policy
		properties.Property(policy.Name+": length after N rows >= length after any prefix", prop.ForAll(
			func(lengths []int) bool {
				in := New([]string{"c"}, policy)
				prev := in.Schema()[0].Length
				for _, n := range lengths {
					in.Observe([]string{strings.Repeat("x", n)})
					cur := in.Schema()[0].Length
					if cur < prev || cur < n {
						return false
					}
					prev = cur
				}
				return true
			},
			gen.SliceOf(gen.IntRange(0, 7000)),
		))
	}

	properties.TestingRun(t)
}

func TestProperty_TypeLock(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	values := gen.OneConstOf("", "", "1/2/14", "12/31/2014", "Acme Co", "40.5", "13/40/2014", "a/b/c")

	properties.Property("type follows the first non-empty value only", prop.ForAll(
		func(vals []string) bool {
			in := New([]string{"c"}, WideLadder)
			for _, v := range vals {
				in.Observe([]string{v})
			}
			got := in.Schema()[0]

			want := TypeText
			locked := false
			for _, v := range vals {
				if v == "" {
					continue
				}
				if ok, _ := classify.IsDate(v); ok {
					want = TypeDate
				}
				locked = true
				break
			}
			return got.Type == want && got.TypeLocked == locked
		},
		gen.SliceOf(values, reflect.TypeOf("")),
	))

	properties.TestingRun(t)
}
