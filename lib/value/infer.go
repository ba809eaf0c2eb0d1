package value

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Infer parses a delimited-text cell into the most specific value it can
// hold. Empty cells are Nil.
func Infer(cell string) Value {
	if cell == "" {
		return Nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return Int(i)
	}
	if f, ok := parseDouble(cell); ok {
		return Double(f)
	}
	switch strings.ToLower(cell) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(cell)
}

func parseDouble(cell string) (float64, bool) {
	switch cell {
	case "NaN":
		return math.NaN(), true
	case "Inf", "Infinity", "+Inf", "+Infinity":
		return math.Inf(1), true
	case "-Inf", "-Infinity":
		return math.Inf(-1), true
	}
	// only plain decimal and exponent forms count as numbers
	for _, r := range cell {
		if !strings.ContainsRune("0123456789.-+eE", r) {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(cell, 64)
	return f, err == nil
}

// Widen returns the narrowest type able to hold cells of both a and b:
// Nil widens to anything, Int and Double widen to Double, every other mix
// widens to String.
func Widen(a, b reflect.Type) reflect.Type {
	switch {
	case a == b:
		return a
	case a == Types.Nil:
		return b
	case b == Types.Nil:
		return a
	case (a == Types.Int && b == Types.Double) || (a == Types.Double && b == Types.Int):
		return Types.Double
	default:
		return Types.String
	}
}

// Coerce parses a cell as type t. Columns that only ever held empty cells
// are read as String.
func Coerce(cell string, t reflect.Type) (Value, error) {
	if cell == "" {
		return Nil, nil
	}
	switch t {
	case Types.Int:
		i, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("can not parse '%s' as Int: %w", cell, err)
		}
		return Int(i), nil
	case Types.Double:
		f, ok := parseDouble(cell)
		if !ok {
			return nil, fmt.Errorf("can not parse '%s' as Double", cell)
		}
		return Double(f), nil
	case Types.Bool:
		b, err := strconv.ParseBool(strings.ToLower(cell))
		if err != nil {
			return nil, fmt.Errorf("can not parse '%s' as Bool: %w", cell, err)
		}
		return Bool(b), nil
	case Types.String, Types.Nil:
		return String(cell), nil
	default:
		return nil, fmt.Errorf("can not read delimited cell as %s", Types.ToString(t))
	}
}
