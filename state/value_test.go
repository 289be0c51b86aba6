package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"null", Null(), KindNull},
		{"bool", Bool(true), KindBool},
		{"int", Int(42), KindInt},
		{"float", Float(3.5), KindFloat},
		{"string", String("hello"), KindString},
		{"array", Array(Int(1), Int(2)), KindArray},
		{"object", Object(map[string]Value{"a": Int(1)}), KindObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
		})
	}
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
}

func TestIntFloatDistinct(t *testing.T) {
	// An integer 1 and a float 1.0 are different values
	assert.False(t, Int(1).Equal(Float(1)))

	// And they survive a JSON round trip as themselves
	for _, tt := range []struct {
		v    Value
		kind Kind
	}{
		{Int(1), KindInt},
		{Float(1), KindFloat},
		{Int(440), KindInt},
		{Float(440.5), KindFloat},
	} {
		data, err := json.Marshal(tt.v)
		require.NoError(t, err)

		var back Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, tt.kind, back.Kind(), "round trip of %s", data)
		assert.True(t, tt.v.Equal(back))
	}
}

func TestValueRoundTrip(t *testing.T) {
	v := Object(map[string]Value{
		"frequency": Float(440.0),
		"steps":     Int(16),
		"name":      String("osc"),
		"enabled":   Bool(true),
		"nothing":   Null(),
		"envelope":  Array(Float(0.0), Float(0.5), Float(1.0)),
		"nested": Object(map[string]Value{
			"depth": Int(2),
		}),
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, v.Equal(back), "round trip should preserve the value exactly")
}

func TestObjectKeysSorted(t *testing.T) {
	v := Object(map[string]Value{"b": Int(2), "a": Int(1), "c": Int(3)})
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2,"c":3}`, string(data))

	// Serialization is deterministic
	again, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestAccessors(t *testing.T) {
	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	i, ok := Int(7).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	// Int converts to float on demand
	f, ok := Int(7).AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)

	_, ok = String("x").AsInt()
	assert.False(t, ok)

	field, ok := Object(map[string]Value{"x": Int(1)}).Field("x")
	assert.True(t, ok)
	assert.True(t, field.Equal(Int(1)))

	_, ok = Object(map[string]Value{}).Field("missing")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nulls", Null(), Null(), true},
		{"bools", Bool(true), Bool(true), true},
		{"bool mismatch", Bool(true), Bool(false), false},
		{"strings", String("a"), String("a"), true},
		{"arrays", Array(Int(1)), Array(Int(1)), true},
		{"array length", Array(Int(1)), Array(Int(1), Int(2)), false},
		{"array element", Array(Int(1)), Array(Int(2)), false},
		{"objects", Object(map[string]Value{"a": Int(1)}), Object(map[string]Value{"a": Int(1)}), true},
		{"object key", Object(map[string]Value{"a": Int(1)}), Object(map[string]Value{"b": Int(1)}), false},
		{"kind mismatch", Int(0), Null(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"count": 3,
		"ratio": 0.5,
		"tags":  []any{"a", "b"},
		"on":    true,
	})
	require.NoError(t, err)

	count, _ := v.Field("count")
	assert.Equal(t, KindInt, count.Kind())
	ratio, _ := v.Field("ratio")
	assert.Equal(t, KindFloat, ratio.Kind())
	tags, _ := v.Field("tags")
	assert.Equal(t, KindArray, tags.Kind())

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestToAny(t *testing.T) {
	v := Object(map[string]Value{"n": Int(1), "s": String("x")})
	raw := v.ToAny()
	m, ok := raw.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), m["n"])
	assert.Equal(t, "x", m["s"])
}

func TestMarshalNonFiniteFloat(t *testing.T) {
	_, err := json.Marshal(Float(1.0 / zero()))
	assert.Error(t, err)
}

func zero() float64 { return 0 }

func TestUnmarshalInvalid(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte("{broken"), &v))
}
