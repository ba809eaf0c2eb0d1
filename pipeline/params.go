package pipeline

import (
	"fmt"

	"churn/lib/value"
)

// dict gives typed access to decoded JSON objects: stage parameters and
// stage model data.
type dict value.Dict

func (d dict) has(key string) bool {
	v, ok := d[key]
	return ok && !value.IsNil(v)
}

func (d dict) get(key string) (value.Value, error) {
	if !d.has(key) {
		return nil, fmt.Errorf("missing '%s'", key)
	}
	return d[key], nil
}

func (d dict) str(key string) (string, error) {
	v, err := d.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(value.String)
	if !ok {
		return "", fmt.Errorf("'%s' must be a string but was %s", key, v)
	}
	return string(s), nil
}

func (d dict) strOr(key, def string) (string, error) {
	if !d.has(key) {
		return def, nil
	}
	return d.str(key)
}

func (d dict) boolOr(key string, def bool) (bool, error) {
	if !d.has(key) {
		return def, nil
	}
	b, ok := d[key].(value.Bool)
	if !ok {
		return false, fmt.Errorf("'%s' must be a bool but was %s", key, d[key])
	}
	return bool(b), nil
}

func (d dict) number(key string) (float64, error) {
	v, err := d.get(key)
	if err != nil {
		return 0, err
	}
	return asFloat(key, v)
}

func (d dict) numberOr(key string, def float64) (float64, error) {
	if !d.has(key) {
		return def, nil
	}
	return d.number(key)
}

func (d dict) integer(key string) (int, error) {
	v, err := d.get(key)
	if err != nil {
		return 0, err
	}
	i, ok := v.(value.Int)
	if !ok {
		return 0, fmt.Errorf("'%s' must be an integer but was %s", key, v)
	}
	return int(i), nil
}

func (d dict) list(key string) (value.List, error) {
	v, err := d.get(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.(value.List)
	if !ok {
		return nil, fmt.Errorf("'%s' must be a list but was %s", key, v)
	}
	return l, nil
}

func (d dict) floats(key string) ([]float64, error) {
	l, err := d.list(key)
	if err != nil {
		return nil, err
	}
	return asFloats(key, l)
}

func (d dict) ints(key string) ([]int, error) {
	l, err := d.list(key)
	if err != nil {
		return nil, err
	}
	ret := make([]int, len(l))
	for i, v := range l {
		n, ok := v.(value.Int)
		if !ok {
			return nil, fmt.Errorf("'%s' must hold integers but found %s", key, v)
		}
		ret[i] = int(n)
	}
	return ret, nil
}

func (d dict) strs(key string) ([]string, error) {
	l, err := d.list(key)
	if err != nil {
		return nil, err
	}
	return asStrings(key, l)
}

func (d dict) object(key string) (dict, error) {
	v, err := d.get(key)
	if err != nil {
		return nil, err
	}
	m, ok := v.(value.Dict)
	if !ok {
		return nil, fmt.Errorf("'%s' must be an object but was %s", key, v)
	}
	return dict(m), nil
}

// columns reads a stage's single-column param or, when present, its
// multi-column variant.
func (d dict) columns(single, multi string) ([]string, error) {
	if d.has(multi) {
		return d.strs(multi)
	}
	c, err := d.str(single)
	if err != nil {
		return nil, err
	}
	return []string{c}, nil
}

func asFloat(key string, v value.Value) (float64, error) {
	switch v := v.(type) {
	case value.Int:
		return float64(v), nil
	case value.Double:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("'%s' must be a number but was %s", key, v)
	}
}

func asFloats(key string, l value.List) ([]float64, error) {
	ret := make([]float64, len(l))
	for i, v := range l {
		f, err := asFloat(key, v)
		if err != nil {
			return nil, err
		}
		ret[i] = f
	}
	return ret, nil
}

func asStrings(key string, l value.List) ([]string, error) {
	ret := make([]string, len(l))
	for i, v := range l {
		s, ok := v.(value.String)
		if !ok {
			return nil, fmt.Errorf("'%s' must hold strings but found %s", key, v)
		}
		ret[i] = string(s)
	}
	return ret, nil
}
