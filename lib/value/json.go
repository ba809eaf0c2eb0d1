package value

import (
	"fmt"

	"github.com/buger/jsonparser"
)

func FromJSON(data []byte) (Value, error) {
	vdata, vtype, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, err
	}
	val, err := parseJSON(vdata, vtype)
	if err != nil {
		return nil, err
	}
	return val, nil
}

func parseJSON(vdata []byte, vtype jsonparser.ValueType) (Value, error) {
	switch vtype {
	case jsonparser.Boolean:
		v, err := jsonparser.ParseBoolean(vdata)
		if err != nil {
			return nil, err
		}
		return Bool(v), nil
	case jsonparser.Number:
		if v, err := jsonparser.ParseInt(vdata); err == nil {
			return Int(v), nil
		} else if v, err := jsonparser.ParseFloat(vdata); err == nil {
			return Double(v), nil
		} else {
			return nil, err
		}
	case jsonparser.String:
		v, err := jsonparser.ParseString(vdata)
		if err != nil {
			return nil, err
		}
		return String(v), nil
	case jsonparser.Array:
		ret := List{}
		var errors []error
		handler := func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
			if err != nil {
				errors = append(errors, err)
				return
			}
			v, err := parseJSON(value, dataType)
			if err != nil {
				errors = append(errors, err)
			} else {
				ret = append(ret, v)
			}
		}
		if _, err := jsonparser.ArrayEach(vdata, handler); err != nil {
			return nil, err
		}
		if len(errors) != 0 {
			return nil, errors[0]
		}
		return ret, nil
	case jsonparser.Object:
		ret := make(Dict)
		handler := func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
			k, err := jsonparser.ParseString(key)
			if err != nil {
				return err
			}
			v, err := parseJSON(value, dataType)
			if err != nil {
				return err
			}
			ret[k] = v
			return nil
		}
		if err := jsonparser.ObjectEach(vdata, handler); err != nil {
			return nil, err
		}
		return ret, nil
	case jsonparser.Null:
		return Nil, nil
	default:
		return nil, fmt.Errorf("unknown type")
	}
}
