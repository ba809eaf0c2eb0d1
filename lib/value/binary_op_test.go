package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func verifyOp(t *testing.T, left, right, expected Value, op string) {
	ret, err := left.Op(op, right)
	assert.NoError(t, err)
	assert.Equal(t, expected, ret)
}

func TestUnsupportedOperators(t *testing.T) {
	for _, op := range []string{"+", "-", "*", "/", "!=", "<", ">=", "and", "%", "in"} {
		_, err := Int(2).Op(op, Int(2))
		assert.Error(t, err, op)
	}
}

func TestEqualityCrossesNumericTypes(t *testing.T) {
	verifyOp(t, Double(1.0), Int(1), Bool(true), "==")
	verifyOp(t, Int(1), Double(1.0), Bool(true), "==")
	verifyOp(t, Double(0.0), Int(1), Bool(false), "==")
	verifyOp(t, String("1"), Int(1), Bool(false), "==")
	verifyOp(t, String("x"), String("x"), Bool(true), "==")
	verifyOp(t, Bool(true), Bool(true), Bool(true), "==")
	verifyOp(t, Vector{1, 2}, Vector{1, 2}, Bool(true), "==")
}

func TestNilPropagates(t *testing.T) {
	verifyOp(t, Nil, Int(1), Nil, "==")
	verifyOp(t, Int(1), Nil, Nil, "==")
	verifyOp(t, Nil, Nil, Nil, "==")
}
