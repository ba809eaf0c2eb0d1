package value

import (
	"fmt"
	"strings"
)

// Value is a single runtime-typed cell. Schemas are discovered while reading
// data, so cells carry their type with them instead of relying on Go types.
type Value interface {
	isValue()
	Equal(v Value) bool
	Op(opt string, other Value) (Value, error)
	String() string
	Clone() Value
}

var _ Value = Int(0)
var _ Value = Double(0)
var _ Value = Bool(true)
var _ Value = String("")
var _ Value = Vector{1, 2}
var _ Value = List([]Value{Int(0), Bool(true)})
var _ Value = Dict(map[string]Value{"hi": Int(0), "bye": Bool(true)})
var _ Value = nil_{}

type Int int64

func (I Int) isValue() {}
func (I Int) Equal(v Value) bool {
	switch v := v.(type) {
	case Int:
		return v == I
	default:
		return false
	}
}
func (I Int) String() string {
	return fmt.Sprintf("Int(%d)", int64(I))
}
func (I Int) Clone() Value {
	return Int(I)
}
func (I Int) Op(opt string, other Value) (Value, error) {
	return route(I, opt, other)
}

type Double float64

func (d Double) isValue() {}
func (d Double) Equal(v Value) bool {
	switch v := v.(type) {
	case Double:
		return v == d
	default:
		return false
	}
}
func (d Double) String() string {
	return fmt.Sprintf("Double(%v)", float64(d))
}
func (d Double) Clone() Value {
	return Double(d)
}
func (d Double) Op(opt string, other Value) (Value, error) {
	return route(d, opt, other)
}

type Bool bool

func (b Bool) isValue() {}
func (b Bool) Equal(v Value) bool {
	switch v := v.(type) {
	case Bool:
		return v == b
	default:
		return false
	}
}
func (b Bool) String() string {
	return fmt.Sprintf("Bool(%v)", bool(b))
}
func (b Bool) Clone() Value {
	return Bool(b)
}
func (b Bool) Op(opt string, other Value) (Value, error) {
	return route(b, opt, other)
}

type String string

func (s String) isValue() {}
func (s String) Equal(v Value) bool {
	switch v := v.(type) {
	case String:
		return v == s
	default:
		return false
	}
}
func (s String) String() string {
	return fmt.Sprintf("String(%s)", string(s))
}
func (s String) Clone() Value {
	return String(s)
}
func (s String) Op(opt string, other Value) (Value, error) {
	return route(s, opt, other)
}

type nil_ struct{}

// Nil is the missing cell. Comparisons against it yield Nil rather than a
// boolean, so predicates never select rows with missing values.
var Nil = nil_{}

func (n nil_) isValue() {}
func (n nil_) Equal(v Value) bool {
	_, ok := v.(nil_)
	return ok
}
func (n nil_) String() string {
	return "Nil"
}
func (n nil_) Clone() Value {
	return Nil
}
func (n nil_) Op(opt string, other Value) (Value, error) {
	return route(n, opt, other)
}

// IsNil reports whether v is missing.
func IsNil(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(nil_)
	return ok
}

// Vector is a dense feature vector produced by assemblers and consumed by
// model stages.
type Vector []float64

func (vec Vector) isValue() {}
func (vec Vector) Equal(v Value) bool {
	other, ok := v.(Vector)
	if !ok || len(other) != len(vec) {
		return false
	}
	for i := range vec {
		if vec[i] != other[i] {
			return false
		}
	}
	return true
}
func (vec Vector) String() string {
	sb := strings.Builder{}
	sb.WriteString("Vector[")
	for i, f := range vec {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%v", f))
	}
	sb.WriteString("]")
	return sb.String()
}
func (vec Vector) Clone() Value {
	clone := make(Vector, len(vec))
	copy(clone, vec)
	return clone
}
func (vec Vector) Op(opt string, other Value) (Value, error) {
	return route(vec, opt, other)
}

type List []Value

func NewList(values ...Value) List {
	ret := make([]Value, 0, len(values))
	ret = append(ret, values...)
	return ret
}

func (l List) isValue() {}
func (l List) Equal(right Value) bool {
	r, ok := right.(List)
	if !ok || len(r) != len(l) {
		return false
	}
	for i, lv := range l {
		if !lv.Equal(r[i]) {
			return false
		}
	}
	return true
}
func (l List) String() string {
	sb := strings.Builder{}
	sb.WriteString("[")
	for _, v := range l {
		sb.WriteString(fmt.Sprintf("%v, ", v.String()))
	}
	sb.WriteString("]")
	return sb.String()
}
func (l List) Clone() Value {
	clone := make([]Value, 0, len(l))
	for _, v := range l {
		clone = append(clone, v.Clone())
	}
	return List(clone)
}
func (l List) Op(opt string, other Value) (Value, error) {
	return route(l, opt, other)
}

type Dict map[string]Value

func (d Dict) isValue() {}
func (d Dict) Equal(v Value) bool {
	right, ok := v.(Dict)
	if !ok || len(right) != len(d) {
		return false
	}
	for k, lv := range d {
		if rv, ok := right[k]; !(ok && lv.Equal(rv)) {
			return false
		}
	}
	return true
}
func (d Dict) String() string {
	sb := strings.Builder{}
	sb.WriteString("{")
	for k, v := range d {
		sb.WriteString(fmt.Sprintf("%s: %v, ", k, v.String()))
	}
	sb.WriteString("}")
	return sb.String()
}
func (d Dict) Clone() Value {
	clone := make(map[string]Value, len(d))
	for k, v := range d {
		clone[k] = v.Clone()
	}
	return Dict(clone)
}
func (d Dict) Op(opt string, other Value) (Value, error) {
	return route(d, opt, other)
}

// Get returns the value under key, or Nil when absent.
func (d Dict) Get(key string) Value {
	if v, ok := d[key]; ok {
		return v
	}
	return Nil
}
