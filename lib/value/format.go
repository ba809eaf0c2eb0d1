package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format renders a scalar cell for delimited output. Missing cells become
// empty fields; doubles follow the engine's float notation ("1.0", "1.0E7").
func Format(v Value) (string, error) {
	switch v := v.(type) {
	case nil, nil_:
		return "", nil
	case Int:
		return strconv.FormatInt(int64(v), 10), nil
	case Double:
		return formatDouble(float64(v)), nil
	case Bool:
		return strconv.FormatBool(bool(v)), nil
	case String:
		return string(v), nil
	default:
		return "", fmt.Errorf("delimited output does not support %s cells", Types.ToString(TypeOf(v)))
	}
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, 64)
	parts := strings.SplitN(s, "E", 2)
	mantissa, exp := parts[0], parts[1]
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	exp = strings.TrimPrefix(exp, "+")
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(strings.TrimPrefix(exp, "-"), "0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}
