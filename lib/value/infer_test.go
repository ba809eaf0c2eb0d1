package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfer(t *testing.T) {
	scenarios := []struct {
		cell     string
		expected Value
	}{
		{"", Nil},
		{"768805383", Int(768805383)},
		{"-4", Int(-4)},
		{"1.5", Double(1.5)},
		{"1e3", Double(1000)},
		{"true", Bool(true)},
		{"FALSE", Bool(false)},
		{"Existing Customer", String("Existing Customer")},
		{"0x10", String("0x10")},
		{"$60K - $80K", String("$60K - $80K")},
	}
	for _, scenario := range scenarios {
		assert.Equal(t, scenario.expected, Infer(scenario.cell), scenario.cell)
	}
	f, ok := Infer("NaN").(Double)
	assert.True(t, ok)
	assert.True(t, math.IsNaN(float64(f)))
}

func TestWiden(t *testing.T) {
	assert.Equal(t, Types.Int, Widen(Types.Nil, Types.Int))
	assert.Equal(t, Types.Int, Widen(Types.Int, Types.Nil))
	assert.Equal(t, Types.Double, Widen(Types.Int, Types.Double))
	assert.Equal(t, Types.Double, Widen(Types.Double, Types.Int))
	assert.Equal(t, Types.String, Widen(Types.Bool, Types.Int))
	assert.Equal(t, Types.String, Widen(Types.String, Types.Double))
	assert.Equal(t, Types.Bool, Widen(Types.Bool, Types.Bool))
}

func TestCoerce(t *testing.T) {
	v, err := Coerce("3", Types.Double)
	assert.NoError(t, err)
	assert.Equal(t, Double(3), v)

	v, err = Coerce("", Types.Int)
	assert.NoError(t, err)
	assert.Equal(t, Nil, v)

	v, err = Coerce("True", Types.Bool)
	assert.NoError(t, err)
	assert.Equal(t, Bool(true), v)

	v, err = Coerce("42", Types.String)
	assert.NoError(t, err)
	assert.Equal(t, String("42"), v)

	_, err = Coerce("x", Types.Int)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	scenarios := []struct {
		v        Value
		expected string
	}{
		{Nil, ""},
		{Int(768805383), "768805383"},
		{Double(1), "1.0"},
		{Double(0.25), "0.25"},
		{Double(0), "0.0"},
		{Double(1e7), "1.0E7"},
		{Double(1.5e-4), "1.5E-4"},
		{Double(math.Inf(-1)), "-Infinity"},
		{Bool(true), "true"},
		{String("a,b"), "a,b"},
	}
	for _, scenario := range scenarios {
		s, err := Format(scenario.v)
		assert.NoError(t, err)
		assert.Equal(t, scenario.expected, s)
	}
	_, err := Format(Vector{1})
	assert.Error(t, err)
}
