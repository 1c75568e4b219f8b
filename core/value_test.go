package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhissng/cortex/core"
)

func TestValueKinds(t *testing.T) {
	s := core.StringValue("abc")
	assert.False(t, s.IsNumeric())
	assert.Equal(t, "abc", s.Str())
	assert.Equal(t, "abc", s.String())
	assert.Equal(t, any("abc"), s.Raw())

	n := core.IntValue(42)
	assert.True(t, n.IsNumeric())
	assert.Equal(t, int64(42), n.Int())
	assert.Equal(t, "42", n.String())
	assert.Equal(t, any(int64(42)), n.Raw())
}

func TestValueComparable(t *testing.T) {
	assert.Equal(t, core.StringValue("a"), core.StringValue("a"))
	assert.NotEqual(t, core.StringValue("1"), core.IntValue(1))

	m := map[core.Value]int{core.IntValue(1): 10}
	assert.Equal(t, 10, m[core.IntValue(1)])
}

func TestValueSet(t *testing.T) {
	set := core.NewValueSet(core.StringValue("a"), core.IntValue(2))

	assert.True(t, set.Contains(core.StringValue("a")))
	assert.True(t, set.Contains(core.IntValue(2)))
	assert.False(t, set.Contains(core.StringValue("b")))
	assert.ElementsMatch(t,
		[]core.Value{core.StringValue("a"), core.IntValue(2)},
		set.Values())
}

func TestExtractField(t *testing.T) {
	descriptors := []map[string]core.Value{
		{"externalId": core.StringValue("a")},
		{"id": core.IntValue(1)},
		{"externalId": core.StringValue("b")},
	}

	assert.Equal(t,
		[]core.Value{core.StringValue("a"), core.StringValue("b")},
		core.ExtractField(descriptors, "externalId"))
	assert.Nil(t, core.ExtractField(descriptors, "legacyName"))
}
