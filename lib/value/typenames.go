package value

import "reflect"

type _types struct {
	Nil    reflect.Type
	Int    reflect.Type
	Double reflect.Type
	String reflect.Type
	Bool   reflect.Type
	Vector reflect.Type
	List   reflect.Type
	Dict   reflect.Type
	Any    reflect.Type
}

var Types _types

func init() {
	Types = _types{
		Nil:    reflect.TypeOf(Nil),
		Int:    reflect.TypeOf(Int(1)),
		String: reflect.TypeOf(String("hi")),
		Bool:   reflect.TypeOf(Bool(true)),
		Double: reflect.TypeOf(Double(1.0)),
		Vector: reflect.TypeOf(Vector{}),
		List:   reflect.TypeOf(List{Int(1), Double(3.4)}),
		Dict:   reflect.TypeOf(Dict{}),
		Any:    reflect.TypeOf((*Value)(nil)).Elem(),
	}
}

func (ts _types) ToString(t reflect.Type) string {
	switch t {
	case Types.Nil:
		return "Nil"
	case Types.Bool:
		return "Bool"
	case Types.Int:
		return "Int"
	case Types.Double:
		return "Double"
	case Types.String:
		return "String"
	case Types.Vector:
		return "Vector"
	case Types.List:
		return "List"
	case Types.Dict:
		return "Dict"
	case Types.Any:
		return "Any"
	default:
		return "Unknown"
	}
}

// IsNumeric reports whether cells of type t can be used as features.
func (ts _types) IsNumeric(t reflect.Type) bool {
	return t == Types.Int || t == Types.Double || t == Types.Bool
}

// TypeOf returns the runtime type of v, mapping a nil interface to Nil.
func TypeOf(v Value) reflect.Type {
	if v == nil {
		return Types.Nil
	}
	return reflect.TypeOf(v)
}
