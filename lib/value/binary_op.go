package value

import (
	"fmt"
)

// route evaluates a binary operator. Equality is the only operator rows are
// filtered with.
func route(l Value, opt string, other Value) (Value, error) {
	switch opt {
	case "==":
		return eq(l, other)
	}
	return nil, fmt.Errorf("unsupported operator: '%s'", opt)
}

// numeric returns the float64 form of Int and Double values.
func numeric(v Value) (float64, bool) {
	switch v := v.(type) {
	case Int:
		return float64(v), true
	case Double:
		return float64(v), true
	}
	return 0, false
}

// AsFloat converts numeric and boolean cells to float64.
func AsFloat(v Value) (float64, error) {
	if f, ok := numeric(v); ok {
		return f, nil
	}
	if b, ok := v.(Bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected a number but got: '%s'", v)
}

func eq(left Value, right Value) (Value, error) {
	if IsNil(left) || IsNil(right) {
		return Nil, nil
	}
	if l, ok := numeric(left); ok {
		if r, ok := numeric(right); ok {
			return Bool(l == r), nil
		}
	}
	return Bool(left.Equal(right)), nil
}
